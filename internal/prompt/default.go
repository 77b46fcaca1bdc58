package prompt

import (
	"fmt"
	"strings"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/format"
	"github.com/sells-group/docextract/internal/model"
)

// Default is the built-in Factory. Classes other than invoice and receipt
// get the invoice wording with their own field list.
type Default struct{}

// NewDefault returns the built-in Factory.
func NewDefault() *Default { return &Default{} }

type classText struct {
	base, examples, cot, rules, errors string
}

var texts = map[string]classText{
	"invoice": {
		base: "You are a multilingual document parser that extracts structured data from invoices.",
		examples: `EXAMPLES OF CORRECT EXTRACTION:

Document shows: header "ACME Corporation Ltd", "Invoice #: INV-2024-001", "Date: 15/03/2024",
"Subtotal: $1,250.00", "Tax (20%): $250.00", "Amount Due: $1,500.00"
Extract: vendor_name "ACME Corporation Ltd", invoice_number "INV-2024-001",
invoice_date "2024-03-15", subtotal_amount 1250.00, tax_amount 250.00, tax_rate 20,
total_amount 1500.00, currency "USD"

Document shows: "Total: 1.234,56 EUR", "MwSt (19%): 197,12 EUR"
Extract: total_amount 1234.56, tax_amount 197.12, tax_rate 19, currency "EUR"`,
		cot: `EXTRACTION PROCESS, STEP BY STEP:
1. Identify the layout: where the issuer, the customer and the totals are.
2. Extract the issuer: legal name from the header or letterhead, address, email, website.
3. Extract invoice metadata: number, issue date, due date. Convert dates to YYYY-MM-DD.
4. Extract the customer from "Bill To" or "Customer" sections.
5. Extract amounts: line items, subtotal, tax amount and rate, final total, currency.
6. Check your work: subtotal + tax should equal the total within 0.01.`,
		rules: `FIELD-SPECIFIC RULES:
- INVOICE NUMBER: keep prefixes, suffixes, dashes and slashes exactly as printed.
- AMOUNTS: total_amount is the final amount due after tax, not a subtotal.
- DATES: convert DD/MM/YYYY, MM-DD-YYYY and DD.MM.YYYY to YYYY-MM-DD.
- VENDOR: the legal name of the issuer, not a brand or division.
- CURRENCY: ISO 4217 code derived from symbols or text.
- WEBSITE: root domain only, without protocol, www prefix or path.`,
		errors: `COMMON ERRORS TO AVOID:
- Mixing up vendor and customer.
- Returning a subtotal or a partial payment as the total.
- Confusing order, PO or reference numbers with the invoice number.`,
	},
	"receipt": {
		base: "You are a multilingual document parser that extracts structured data from retail receipts and point-of-sale slips.",
		examples: `EXAMPLES OF CORRECT EXTRACTION:

Document shows: "CORNER CAFE", "03/05/2024 12:41", "2x Latte 9.00", "Subtotal 9.00",
"Sales Tax 8.875% 0.80", "TOTAL 9.80", "VISA ****1234"
Extract: store_name "Corner Cafe", date "2024-03-05", subtotal_amount 9.00, tax_amount 0.80,
tax_rate 8.875, total_amount 9.80, currency "USD", payment_method "card"`,
		cot: `EXTRACTION PROCESS, STEP BY STEP:
1. Find the store name at the top of the receipt.
2. Find the transaction date and convert it to YYYY-MM-DD.
3. List the purchased items with quantities and prices.
4. Find subtotal, tax and the final total; determine the currency.
5. Find the payment method, cashier and register if printed.
6. Check your work: subtotal + tax should equal the total within 0.01.`,
		rules: `FIELD-SPECIFIC RULES:
- STORE: the merchant name as printed at the top, without store numbers.
- DATE: the transaction date, not a return-by date.
- AMOUNTS: total_amount is the amount charged including tax.
- PAYMENT METHOD: one of cash, card, mobile, or other.`,
		errors: `COMMON ERRORS TO AVOID:
- Returning the change given or the amount tendered as the total.
- Reading a loyalty or order number as an amount.`,
	},
}

func textFor(class string) classText {
	if t, ok := texts[class]; ok {
		return t
	}
	return texts["invoice"]
}

// Build returns the prompt components for class.
func (d *Default) Build(class docclass.Config, opts Options) Components {
	t := textFor(class.Name)
	c := Components{
		Base:           t.base,
		Examples:       t.examples,
		ChainOfThought: t.cot,
		Context:        contextSection(class, opts),
		Requirements:   requirements(class),
		FieldRules:     t.rules,
		Accuracy: `ACCURACY GUIDELINES:
- Documents may be in any language; international tax terms include VAT, IVA, TVA, MwSt and GST.
- Both 1,234.56 and 1.234,56 number formats occur. Always return plain numbers.
- Use null for anything not present. Never guess.`,
		CommonErrors: t.errors,
		Validation:   validation(class),
	}
	return c
}

func contextSection(class docclass.Config, opts Options) string {
	var parts []string
	if opts.CompanyName != "" {
		party := "vendor_name"
		if class.NameField != "" {
			party = class.NameField.String()
		}
		parts = append(parts, fmt.Sprintf(
			"CRITICAL CONTEXT: %q is the RECIPIENT of this document. Never set %s to %q.",
			opts.CompanyName, party, opts.CompanyName))
	}
	if opts.Format != nil {
		if hints := format.Hints(*opts.Format); len(hints) > 0 {
			parts = append(parts, "DETECTED FORMAT:\n- "+strings.Join(hints, "\n- "))
		}
	}
	return strings.Join(parts, "\n\n")
}

func requirements(class docclass.Config) string {
	var b strings.Builder
	b.WriteString("EXTRACTION REQUIREMENTS:\nReturn one JSON object with these keys (null when absent):\n")
	for i, f := range class.Fields {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, f, describeKind(f.Kind()))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeKind(k model.FieldKind) string {
	switch k {
	case model.KindDate:
		return "date, YYYY-MM-DD"
	case model.KindAmount:
		return "number"
	case model.KindRate:
		return "percentage number, 20 for 20%"
	case model.KindCurrency:
		return "ISO 4217 code"
	case model.KindItems:
		return "array of {description, quantity, unit_price, total_price}"
	default:
		return "string"
	}
}

func validation(class docclass.Config) string {
	crit := make([]string, 0, len(class.Critical))
	for _, cf := range class.Critical {
		crit = append(crit, cf.Field.String())
	}
	return "VALIDATION REQUIREMENTS:\n" +
		"- Critical fields: " + strings.Join(crit, ", ") + ".\n" +
		"- Amounts are non-negative numbers and dates are YYYY-MM-DD.\n" +
		"- Currency codes are three upper-case letters.\n" +
		"- subtotal_amount + tax_amount should equal total_amount within 0.01."
}
