package model

import (
	"slices"
	"strconv"
	"strings"
)

// LineItem is one row of an invoice or receipt.
type LineItem struct {
	Description *string  `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	TotalPrice  *float64 `json:"total_price,omitempty"`
}

// Record is a candidate extraction. Every scalar is independently nullable.
//
// Records are treated as immutable values: With returns a modified copy and
// pointees are never written through. Two records may safely share pointers.
type Record struct {
	DocumentType        *string    `json:"document_type,omitempty"`
	InvoiceNumber       *string    `json:"invoice_number,omitempty"`
	InvoiceDate         *string    `json:"invoice_date,omitempty"`
	DueDate             *string    `json:"due_date,omitempty"`
	Date                *string    `json:"date,omitempty"`
	Currency            *string    `json:"currency,omitempty"`
	TotalAmount         *float64   `json:"total_amount,omitempty"`
	SubtotalAmount      *float64   `json:"subtotal_amount,omitempty"`
	TaxAmount           *float64   `json:"tax_amount,omitempty"`
	TaxRate             *float64   `json:"tax_rate,omitempty"`
	TaxType             *string    `json:"tax_type,omitempty"`
	VendorName          *string    `json:"vendor_name,omitempty"`
	VendorAddress       *string    `json:"vendor_address,omitempty"`
	CustomerName        *string    `json:"customer_name,omitempty"`
	CustomerAddress     *string    `json:"customer_address,omitempty"`
	StoreName           *string    `json:"store_name,omitempty"`
	Website             *string    `json:"website,omitempty"`
	Email               *string    `json:"email,omitempty"`
	PaymentMethod       *string    `json:"payment_method,omitempty"`
	PaymentInstructions *string    `json:"payment_instructions,omitempty"`
	CashierName         *string    `json:"cashier_name,omitempty"`
	RegisterNumber      *string    `json:"register_number,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	Language            *string    `json:"language,omitempty"`
	LineItems           []LineItem `json:"line_items,omitempty"`
}

// Value is a field value of any kind. Exactly one of Text, Number or Items
// is meaningful, selected by the field's kind. A zero Value means absent.
type Value struct {
	Text   *string
	Number *float64
	Items  []LineItem
}

// TextValue wraps a string.
func TextValue(s string) Value { return Value{Text: &s} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{Number: &n} }

// ItemsValue wraps line items.
func ItemsValue(items []LineItem) Value { return Value{Items: slices.Clone(items)} }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool {
	switch {
	case v.Number != nil:
		return false
	case v.Text != nil:
		return strings.TrimSpace(*v.Text) == ""
	default:
		return len(v.Items) == 0
	}
}

// String renders the value for logs and reports.
func (v Value) String() string {
	switch {
	case v.Number != nil:
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case v.Text != nil:
		return *v.Text
	case len(v.Items) > 0:
		return strconv.Itoa(len(v.Items)) + " items"
	default:
		return ""
	}
}

// accessor binds a Field to its storage in Record.
type accessor struct {
	kind   FieldKind
	text   func(*Record) **string
	number func(*Record) **float64
}

func textField(kind FieldKind, fn func(*Record) **string) accessor {
	return accessor{kind: kind, text: fn}
}

func numberField(kind FieldKind, fn func(*Record) **float64) accessor {
	return accessor{kind: kind, number: fn}
}

var accessors = map[Field]accessor{
	FieldDocumentType:        textField(KindText, func(r *Record) **string { return &r.DocumentType }),
	FieldInvoiceNumber:       textField(KindText, func(r *Record) **string { return &r.InvoiceNumber }),
	FieldInvoiceDate:         textField(KindDate, func(r *Record) **string { return &r.InvoiceDate }),
	FieldDueDate:             textField(KindDate, func(r *Record) **string { return &r.DueDate }),
	FieldDate:                textField(KindDate, func(r *Record) **string { return &r.Date }),
	FieldCurrency:            textField(KindCurrency, func(r *Record) **string { return &r.Currency }),
	FieldTotalAmount:         numberField(KindAmount, func(r *Record) **float64 { return &r.TotalAmount }),
	FieldSubtotalAmount:      numberField(KindAmount, func(r *Record) **float64 { return &r.SubtotalAmount }),
	FieldTaxAmount:           numberField(KindAmount, func(r *Record) **float64 { return &r.TaxAmount }),
	FieldTaxRate:             numberField(KindRate, func(r *Record) **float64 { return &r.TaxRate }),
	FieldTaxType:             textField(KindText, func(r *Record) **string { return &r.TaxType }),
	FieldVendorName:          textField(KindText, func(r *Record) **string { return &r.VendorName }),
	FieldVendorAddress:       textField(KindText, func(r *Record) **string { return &r.VendorAddress }),
	FieldCustomerName:        textField(KindText, func(r *Record) **string { return &r.CustomerName }),
	FieldCustomerAddress:     textField(KindText, func(r *Record) **string { return &r.CustomerAddress }),
	FieldStoreName:           textField(KindText, func(r *Record) **string { return &r.StoreName }),
	FieldWebsite:             textField(KindText, func(r *Record) **string { return &r.Website }),
	FieldEmail:               textField(KindText, func(r *Record) **string { return &r.Email }),
	FieldPaymentMethod:       textField(KindText, func(r *Record) **string { return &r.PaymentMethod }),
	FieldPaymentInstructions: textField(KindText, func(r *Record) **string { return &r.PaymentInstructions }),
	FieldCashierName:         textField(KindText, func(r *Record) **string { return &r.CashierName }),
	FieldRegisterNumber:      textField(KindText, func(r *Record) **string { return &r.RegisterNumber }),
	FieldNotes:               textField(KindText, func(r *Record) **string { return &r.Notes }),
	FieldLanguage:            textField(KindText, func(r *Record) **string { return &r.Language }),
	FieldLineItems:           {kind: KindItems},
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	out.LineItems = slices.Clone(r.LineItems)
	return out
}

// Get returns the value stored for f. Unknown fields yield a zero Value.
func (r Record) Get(f Field) Value {
	a, ok := accessors[f]
	if !ok {
		return Value{}
	}
	switch {
	case a.text != nil:
		return Value{Text: *a.text(&r)}
	case a.number != nil:
		return Value{Number: *a.number(&r)}
	default:
		return Value{Items: r.LineItems}
	}
}

// Has reports whether f holds a non-empty value.
func (r Record) Has(f Field) bool {
	return !r.Get(f).IsZero()
}

// Text returns the string value of f, or "" when absent.
func (r Record) Text(f Field) string {
	if v := r.Get(f); v.Text != nil {
		return strings.TrimSpace(*v.Text)
	}
	return ""
}

// Number returns the numeric value of f and whether it is set.
func (r Record) Number(f Field) (float64, bool) {
	if v := r.Get(f); v.Number != nil {
		return *v.Number, true
	}
	return 0, false
}

// With returns a copy of r with f set to v. Setting a zero Value clears f.
// Values of the wrong kind for f are ignored.
func (r Record) With(f Field, v Value) Record {
	out := r.Clone()
	a, ok := accessors[f]
	if !ok {
		return out
	}
	switch {
	case a.text != nil:
		if v.Text == nil && v.Number == nil && len(v.Items) == 0 {
			*a.text(&out) = nil
		} else if v.Text != nil {
			s := *v.Text
			*a.text(&out) = &s
		}
	case a.number != nil:
		if v.Text == nil && v.Number == nil && len(v.Items) == 0 {
			*a.number(&out) = nil
		} else if v.Number != nil {
			n := *v.Number
			*a.number(&out) = &n
		}
	default:
		out.LineItems = slices.Clone(v.Items)
	}
	return out
}

// Present returns the fields that hold a value, in declaration order.
func (r Record) Present() []Field {
	var out []Field
	for _, f := range allFields {
		if r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
