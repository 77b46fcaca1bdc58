package prompt

import (
	"fmt"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

var fieldInstructions = map[model.Field]string{
	model.FieldTotalAmount: `Extract ONLY the total amount.
- The final amount due after all taxes and fees, labeled "Total", "Amount Due" or "Grand Total".
- Return a number without currency symbols: "$1,500.00" becomes 1500.00.`,
	model.FieldCurrency: `Extract ONLY the currency.
- Convert symbols to ISO codes: $ is USD, € is EUR, £ is GBP.
- Return the three-letter upper-case code.`,
	model.FieldInvoiceNumber: `Extract ONLY the invoice number.
- Look for "Invoice #", "INV", "No.", "Number" or "Ref".
- Keep all prefixes, suffixes, dashes and slashes exactly as printed.`,
	model.FieldInvoiceDate: `Extract ONLY the issue date of the invoice.
- Usually near the invoice number or in the header.
- Return YYYY-MM-DD.`,
	model.FieldDueDate: `Extract ONLY the payment due date.
- Usually in the payment terms section.
- Return YYYY-MM-DD.`,
	model.FieldDate: `Extract ONLY the transaction date.
- Return YYYY-MM-DD.`,
	model.FieldTaxAmount: `Extract ONLY the tax amount, not the rate.
- Return a number without currency symbols.`,
	model.FieldTaxRate: `Extract ONLY the tax rate.
- Return the percentage as a number: 20 for 20%, not 0.20.`,
	model.FieldSubtotalAmount: `Extract ONLY the subtotal before tax.
- Return a number without currency symbols.`,
	model.FieldVendorName: `Extract ONLY the name of the company that issued this document.
- Look at the header, letterhead or "From" section.
- Return the complete legal name including suffixes such as Inc., Ltd, LLC or GmbH.`,
	model.FieldStoreName: `Extract ONLY the store or merchant name printed at the top of the receipt.`,
}

// ForField returns a narrow prompt asking for a single field. The model is
// asked for a JSON object holding only that key.
func (d *Default) ForField(class docclass.Config, field model.Field, companyName string) string {
	instr, ok := fieldInstructions[field]
	if !ok {
		instr = fmt.Sprintf("Extract ONLY the %s field from this %s.", field, class.Name)
	}
	if companyName != "" {
		instr += fmt.Sprintf("\n- %q is the recipient, never the issuer.", companyName)
	}
	return fmt.Sprintf("%s\n\nReturn a JSON object of the form {%q: <value or null>}. "+
		"Focus only on this field. Be precise.", instr, field.String())
}
