package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/format"
	"github.com/sells-group/docextract/internal/model"
)

func TestCompose_Order(t *testing.T) {
	t.Parallel()

	c := Components{
		Base: "BASE", Examples: "EX", ChainOfThought: "COT", Context: "CTX",
		Requirements: "REQ", FieldRules: "RULES", Accuracy: "ACC",
		CommonErrors: "ERR", Validation: "VAL",
	}

	with := Compose(c, true)
	order := []string{"BASE", instructionLine, "EX", "COT", "CTX", "REQ", "RULES", "ACC", "ERR", "VAL"}
	last := -1
	for _, s := range order {
		i := strings.Index(with, s)
		assert.Greater(t, i, last, "section %q out of order", s)
		last = i
	}

	without := Compose(c, false)
	assert.NotContains(t, without, "COT")
	assert.Contains(t, without, "CTX")
}

func TestCompose_SkipsEmptyContext(t *testing.T) {
	t.Parallel()

	got := Compose(Components{Base: "B", Examples: "E", Requirements: "R"}, true)
	assert.True(t, strings.HasPrefix(got, "B\n"+instructionLine+"\n\nE\n\nR\n"), got)
}

func TestDefault_Build(t *testing.T) {
	t.Parallel()

	f := NewDefault()
	inv := f.Build(docclass.Invoice(), Options{CompanyName: "Globex"})
	assert.Contains(t, inv.Base, "invoices")
	assert.Contains(t, inv.Context, `"Globex" is the RECIPIENT`)
	assert.Contains(t, inv.Context, "vendor_name")
	assert.Contains(t, inv.Requirements, "total_amount (number)")
	assert.Contains(t, inv.Requirements, "invoice_date (date, YYYY-MM-DD)")
	assert.Contains(t, inv.Validation, "total_amount, currency, vendor_name, invoice_date")

	rec := f.Build(docclass.Receipt(), Options{})
	assert.Contains(t, rec.Base, "receipts")
	assert.Empty(t, rec.Context)
	assert.NotContains(t, rec.Requirements, "invoice_number")
}

func TestDefault_BuildWithFormat(t *testing.T) {
	t.Parallel()

	df := format.Detect(model.Record{Currency: model.Ptr("EUR"), Language: model.Ptr("de")})
	c := NewDefault().Build(docclass.Invoice(), Options{Format: &df, ChainOfThought: true})
	assert.Contains(t, c.Context, format.HintDecimalComma)
	assert.Contains(t, c.Context, format.HintVAT)
	assert.NotEmpty(t, c.ChainOfThought)
}

func TestDefault_UnknownClassUsesInvoiceWording(t *testing.T) {
	t.Parallel()

	cfg := docclass.Invoice()
	cfg.Name = "credit_note"
	c := NewDefault().Build(cfg, Options{})
	assert.Equal(t, texts["invoice"].base, c.Base)
}

func TestDefault_ForField(t *testing.T) {
	t.Parallel()

	f := NewDefault()
	p := f.ForField(docclass.Invoice(), model.FieldTaxRate, "")
	assert.Contains(t, p, "20 for 20%")
	assert.Contains(t, p, `{"tax_rate": <value or null>}`)

	p = f.ForField(docclass.Invoice(), model.FieldVendorName, "Globex")
	assert.Contains(t, p, "issued this document")
	assert.Contains(t, p, `"Globex" is the recipient`)

	p = f.ForField(docclass.Receipt(), model.FieldCashierName, "")
	assert.Contains(t, p, "Extract ONLY the cashier_name field from this receipt.")
}

func TestWithTextFallbackAndHints(t *testing.T) {
	t.Parallel()

	assert.True(t, strings.HasSuffix(WithTextFallback("P"), TextFallbackNote))
	assert.Equal(t, "P", WithHints("P", nil))
	assert.Equal(t, "P\n\nFORMAT HINTS:\n- a\n- b", WithHints("P", []string{"a", "b"}))
}
