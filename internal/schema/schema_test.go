package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

func TestForClass(t *testing.T) {
	t.Parallel()

	s := ForClass(docclass.Invoice())
	assert.Equal(t, "object", s["type"])
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, len(docclass.Invoice().Fields))

	total := props["total_amount"].(map[string]any)
	assert.Equal(t, []string{"number", "null"}, total["type"])

	items := props["line_items"].(map[string]any)
	assert.Equal(t, []string{"array", "null"}, items["type"])
	assert.NotNil(t, items["items"])

	_, hasStore := props["store_name"]
	assert.False(t, hasStore)
	assert.Nil(t, s["required"])
}

func TestForFields(t *testing.T) {
	t.Parallel()

	s := ForFields(model.FieldTaxRate)
	props := s["properties"].(map[string]any)
	assert.Len(t, props, 1)
	assert.Contains(t, props, "tax_rate")
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1500", 1500, true},
		{"1500.00", 1500, true},
		{"$1,250.00", 1250, true},
		{"1.234,56", 1234.56, true},
		{"EUR 1.234,56", 1234.56, true},
		{"1 234,56 €", 1234.56, true},
		{"1'234.50", 1234.5, true},
		{"12,5", 12.5, true},
		{"1,250", 1250, true},
		{"1.234.567", 1234567, true},
		{"20%", 20, true},
		{"-42.10", -42.10, true},
		{"(15.00)", -15, true},
		{"", 0, false},
		{"abc", 0, false},
		{".", 0, false},
		{"12#4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", "Here is the data: {\"a\":1} Hope it helps.", `{"a":1}`},
		{"no object", "sorry", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestDecode_Invoice(t *testing.T) {
	t.Parallel()

	text := "```json\n" + `{
		"vendor_name": " ACME Corporation Ltd ",
		"invoice_number": 1042,
		"invoice_date": "2026-03-15",
		"currency": "eur",
		"total_amount": "1.234,56",
		"subtotal_amount": "$1,037.44",
		"tax_amount": 197.12,
		"tax_rate": "19%",
		"customer_name": null,
		"notes": "N/A",
		"confidence": 0.9,
		"line_items": [
			{"description": "Widget", "quantity": "2", "unit_price": 518.72, "total_price": "1.037,44"},
			"garbage"
		]
	}` + "\n```"

	rec, err := Decode(text, docclass.Invoice())
	require.NoError(t, err)

	assert.Equal(t, "ACME Corporation Ltd", *rec.VendorName)
	assert.Equal(t, "1042", *rec.InvoiceNumber)
	assert.Equal(t, "EUR", *rec.Currency)
	assert.InDelta(t, 1234.56, *rec.TotalAmount, 1e-9)
	assert.InDelta(t, 1037.44, *rec.SubtotalAmount, 1e-9)
	assert.InDelta(t, 197.12, *rec.TaxAmount, 1e-9)
	assert.InDelta(t, 19.0, *rec.TaxRate, 1e-9)
	assert.Nil(t, rec.CustomerName)
	assert.Nil(t, rec.Notes)

	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "Widget", *rec.LineItems[0].Description)
	assert.InDelta(t, 2.0, *rec.LineItems[0].Quantity, 1e-9)
	assert.InDelta(t, 1037.44, *rec.LineItems[0].TotalPrice, 1e-9)
}

func TestDecode_ReceiptAliases(t *testing.T) {
	t.Parallel()

	rec, err := Decode(`{"merchant": "Corner Cafe", "total": "9.80", "items": [{"description": "Latte", "total_price": 9}]}`,
		docclass.Receipt())
	require.NoError(t, err)
	assert.Equal(t, "Corner Cafe", *rec.StoreName)
	assert.InDelta(t, 9.80, *rec.TotalAmount, 1e-9)
	assert.Len(t, rec.LineItems, 1)
}

func TestDecode_CanonicalKeyBeatsAlias(t *testing.T) {
	t.Parallel()

	rec, err := Decode(`{"total": 1, "total_amount": 2}`, docclass.Receipt())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, *rec.TotalAmount, 1e-9)
}

func TestDecode_IgnoresFieldsOutsideClass(t *testing.T) {
	t.Parallel()

	rec, err := Decode(`{"store_name": "Shop", "total_amount": 5}`, docclass.Invoice())
	require.NoError(t, err)
	assert.Nil(t, rec.StoreName)
	assert.NotNil(t, rec.TotalAmount)
}

func TestDecode_DropsUnparseableNumbers(t *testing.T) {
	t.Parallel()

	rec, err := Decode(`{"total_amount": "see attached", "tax_amount": true, "currency": "USD"}`, docclass.Invoice())
	require.NoError(t, err)
	assert.Nil(t, rec.TotalAmount)
	assert.Nil(t, rec.TaxAmount)
	assert.Equal(t, "USD", *rec.Currency)
}

func TestDecode_MalformedIsPermanent(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"I could not read this document.",
		`{"total_amount": 12,,}`,
		"```json\n[1, 2, 3]\n```",
	} {
		_, err := Decode(text, docclass.Invoice())
		require.Error(t, err, text)

		var pe *resilience.PermanentError
		require.True(t, errors.As(err, &pe), text)
		assert.Equal(t, ReasonSchema, pe.Reason)
		assert.False(t, resilience.IsTransient(err))
	}
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	v, err := NewValidator(docclass.Invoice())
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]byte(`{"total_amount": 10, "currency": null, "extra": {"x": 1}}`)))
	assert.Error(t, v.Validate([]byte(`{"total_amount": "10"}`)))
	assert.Error(t, v.Validate([]byte(`{"line_items": {"description": "x"}}`)))
	assert.Error(t, v.Validate([]byte(`not json`)))
}

func TestDecode_CachesValidators(t *testing.T) {
	t.Parallel()

	cfg := docclass.Receipt()
	a, err := validators.get(cfg)
	require.NoError(t, err)
	b, err := validators.get(cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
