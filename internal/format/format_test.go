package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/docextract/internal/model"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  model.Record
		want model.DocumentFormat
	}{
		{
			name: "empty record",
			rec:  model.Record{},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatISO, TaxTerm: model.TaxTermUnknown},
		},
		{
			name: "german euro invoice",
			rec:  model.Record{Currency: model.Ptr("EUR"), Language: model.Ptr("de")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatEuropean, DateFormat: model.DateFormatEuropean, TaxTerm: model.TaxTermVAT, Language: "de", Currency: "EUR"},
		},
		{
			name: "us receipt",
			rec:  model.Record{Currency: model.Ptr("USD"), Language: model.Ptr("en-US")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatUS, TaxTerm: model.TaxTermSalesTax, Language: "en", Currency: "USD"},
		},
		{
			name: "british english uses day first",
			rec:  model.Record{Currency: model.Ptr("GBP"), Language: model.Ptr("en_GB")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatEuropean, TaxTerm: model.TaxTermVAT, Language: "en", Currency: "GBP"},
		},
		{
			name: "australian gst",
			rec:  model.Record{Currency: model.Ptr("AUD")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatISO, TaxTerm: model.TaxTermGST, Currency: "AUD"},
		},
		{
			name: "explicit tax type wins over currency",
			rec:  model.Record{Currency: model.Ptr("USD"), TaxType: model.Ptr("VAT")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatISO, TaxTerm: model.TaxTermVAT, Currency: "USD"},
		},
		{
			name: "language name and no currency",
			rec:  model.Record{Language: model.Ptr("French")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatEuropean, DateFormat: model.DateFormatEuropean, TaxTerm: model.TaxTermVAT, Language: "fr"},
		},
		{
			name: "japanese yen",
			rec:  model.Record{Currency: model.Ptr("JPY"), Language: model.Ptr("ja")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatISO, TaxTerm: model.TaxTermUnknown, Language: "ja", Currency: "JPY"},
		},
		{
			name: "brazilian real",
			rec:  model.Record{Currency: model.Ptr("BRL")},
			want: model.DocumentFormat{NumberFormat: model.NumberFormatEuropean, DateFormat: model.DateFormatISO, TaxTerm: model.TaxTermUnknown, Currency: "BRL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Detect(tt.rec))
		})
	}
}

func TestDetect_DoesNotMutate(t *testing.T) {
	t.Parallel()

	rec := model.Record{Currency: model.Ptr("eur"), Language: model.Ptr(" de ")}
	before := rec.Clone()
	f := Detect(rec)

	assert.Equal(t, "EUR", f.Currency)
	assert.Equal(t, before, rec)
}

func TestHintsForField(t *testing.T) {
	t.Parallel()

	eu := model.DocumentFormat{NumberFormat: model.NumberFormatEuropean, DateFormat: model.DateFormatEuropean, TaxTerm: model.TaxTermVAT}
	assert.Equal(t, []string{HintDecimalComma}, HintsForField(model.FieldTotalAmount, eu))
	assert.Equal(t, []string{HintDecimalComma, HintVAT}, HintsForField(model.FieldTaxAmount, eu))
	assert.Equal(t, []string{HintDecimalComma, HintVAT}, HintsForField(model.FieldTaxRate, eu))
	assert.Equal(t, []string{HintDayFirst}, HintsForField(model.FieldInvoiceDate, eu))
	assert.Empty(t, HintsForField(model.FieldVendorName, eu))

	gst := model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatISO, TaxTerm: model.TaxTermGST}
	assert.Equal(t, []string{HintGST}, HintsForField(model.FieldTaxType, gst))
	assert.Empty(t, HintsForField(model.FieldTotalAmount, gst))
}

func TestHints(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Hints(model.DocumentFormat{NumberFormat: model.NumberFormatUS, DateFormat: model.DateFormatUS, TaxTerm: model.TaxTermSalesTax}))
	assert.Len(t, Hints(model.DocumentFormat{NumberFormat: model.NumberFormatEuropean, DateFormat: model.DateFormatEuropean, TaxTerm: model.TaxTermGST}), 3)
}
