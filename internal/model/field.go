package model

import "slices"

// Field names one extractable attribute of a document record. The string
// value is the JSON key used in model output and in results.
type Field string

// Record fields, the union of the invoice and receipt schemas.
const (
	FieldDocumentType        Field = "document_type"
	FieldInvoiceNumber       Field = "invoice_number"
	FieldInvoiceDate         Field = "invoice_date"
	FieldDueDate             Field = "due_date"
	FieldDate                Field = "date"
	FieldCurrency            Field = "currency"
	FieldTotalAmount         Field = "total_amount"
	FieldSubtotalAmount      Field = "subtotal_amount"
	FieldTaxAmount           Field = "tax_amount"
	FieldTaxRate             Field = "tax_rate"
	FieldTaxType             Field = "tax_type"
	FieldVendorName          Field = "vendor_name"
	FieldVendorAddress       Field = "vendor_address"
	FieldCustomerName        Field = "customer_name"
	FieldCustomerAddress     Field = "customer_address"
	FieldStoreName           Field = "store_name"
	FieldWebsite             Field = "website"
	FieldEmail               Field = "email"
	FieldPaymentMethod       Field = "payment_method"
	FieldPaymentInstructions Field = "payment_instructions"
	FieldCashierName         Field = "cashier_name"
	FieldRegisterNumber      Field = "register_number"
	FieldNotes               Field = "notes"
	FieldLanguage            Field = "language"
	FieldLineItems           Field = "line_items"
)

// FieldKind groups fields by the validity rules that apply to them.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindAmount
	KindRate
	KindCurrency
	KindItems
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindAmount:
		return "amount"
	case KindRate:
		return "rate"
	case KindCurrency:
		return "currency"
	case KindItems:
		return "items"
	default:
		return "unknown"
	}
}

// Numeric reports whether values of this kind are stored as numbers.
func (k FieldKind) Numeric() bool {
	return k == KindAmount || k == KindRate
}

// allFields lists every field in declaration order.
var allFields = []Field{
	FieldDocumentType,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldDueDate,
	FieldDate,
	FieldCurrency,
	FieldTotalAmount,
	FieldSubtotalAmount,
	FieldTaxAmount,
	FieldTaxRate,
	FieldTaxType,
	FieldVendorName,
	FieldVendorAddress,
	FieldCustomerName,
	FieldCustomerAddress,
	FieldStoreName,
	FieldWebsite,
	FieldEmail,
	FieldPaymentMethod,
	FieldPaymentInstructions,
	FieldCashierName,
	FieldRegisterNumber,
	FieldNotes,
	FieldLanguage,
	FieldLineItems,
}

// Fields returns all known fields in declaration order.
func Fields() []Field {
	return slices.Clone(allFields)
}

// ParseField resolves a JSON key to a Field.
func ParseField(s string) (Field, bool) {
	f := Field(s)
	_, ok := accessors[f]
	return f, ok
}

// Kind returns the field's kind. Unknown fields are treated as text.
func (f Field) Kind() FieldKind {
	if a, ok := accessors[f]; ok {
		return a.kind
	}
	return KindText
}

func (f Field) String() string {
	return string(f)
}

// IsDate reports whether the field holds an ISO date.
func (f Field) IsDate() bool { return f.Kind() == KindDate }

// IsMoney reports whether the field holds a monetary amount.
func (f Field) IsMoney() bool { return f.Kind() == KindAmount }

// IsTax reports whether the field describes tax.
func (f Field) IsTax() bool {
	return f == FieldTaxAmount || f == FieldTaxRate || f == FieldTaxType
}
