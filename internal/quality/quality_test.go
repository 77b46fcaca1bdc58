package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

var fixedNow = time.Date(2026, 6, 15, 13, 45, 0, 0, time.UTC)

func testScorer() Scorer {
	return Scorer{Now: func() time.Time { return fixedNow }}
}

func goodInvoice() model.Record {
	return model.Record{
		InvoiceNumber:  model.Ptr("INV-2026-001"),
		InvoiceDate:    model.Ptr("2026-05-01"),
		DueDate:        model.Ptr("2026-06-01"),
		Currency:       model.Ptr("EUR"),
		TotalAmount:    model.Ptr(1500.0),
		SubtotalAmount: model.Ptr(1250.0),
		TaxAmount:      model.Ptr(250.0),
		TaxRate:        model.Ptr(20.0),
		VendorName:     model.Ptr("ACME Corporation"),
	}
}

func goodReceipt() model.Record {
	return model.Record{
		Date:           model.Ptr("2026-06-01"),
		Currency:       model.Ptr("USD"),
		TotalAmount:    model.Ptr(10.8),
		SubtotalAmount: model.Ptr(10.0),
		TaxAmount:      model.Ptr(0.8),
		StoreName:      model.Ptr("Corner Cafe"),
	}
}

func TestValidCurrency(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidCurrency("EUR"))
	assert.True(t, ValidCurrency("SEK"))
	assert.False(t, ValidCurrency("eur"))
	assert.False(t, ValidCurrency("EURO"))
	assert.False(t, ValidCurrency("QQQ"))
	assert.False(t, ValidCurrency(""))
}

func TestValidDateFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidDateFormat("2026-01-31"))
	assert.False(t, ValidDateFormat("2026-02-30"))
	assert.False(t, ValidDateFormat("31/01/2026"))
	assert.False(t, ValidDateFormat("2026-1-31"))
}

func TestDateInRange(t *testing.T) {
	t.Parallel()

	assert.True(t, DateInRange("2016-06-15", fixedNow))
	assert.False(t, DateInRange("2016-06-14", fixedNow))
	assert.True(t, DateInRange("2028-06-15", fixedNow))
	assert.False(t, DateInRange("2028-06-16", fixedNow))
	assert.False(t, DateInRange("garbage", fixedNow))
}

func TestValidAmountAndRate(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidAmount(0))
	assert.True(t, ValidAmount(MaxAmount))
	assert.False(t, ValidAmount(-0.01))
	assert.False(t, ValidAmount(MaxAmount*2))
	assert.False(t, ValidAmount(math.NaN()))
	assert.False(t, ValidAmount(math.Inf(1)))

	assert.True(t, ValidRate(100))
	assert.False(t, ValidRate(100.5))
	assert.False(t, ValidRate(math.NaN()))
}

func TestUsable(t *testing.T) {
	t.Parallel()

	inv := docclass.Invoice()
	rec := model.Record{TotalAmount: model.Ptr(0.0), TaxAmount: model.Ptr(0.0), TaxRate: model.Ptr(250.0)}
	assert.False(t, Usable(rec, model.FieldTotalAmount, inv, fixedNow), "zero total is missing")
	assert.True(t, Usable(rec, model.FieldTaxAmount, inv, fixedNow), "stated zero tax stands")
	assert.False(t, Usable(rec, model.FieldTaxRate, inv, fixedNow))
	assert.False(t, Usable(rec, model.FieldCurrency, inv, fixedNow))

	rec.TaxRate = model.Ptr(0.0)
	assert.True(t, Usable(rec, model.FieldTaxRate, inv, fixedNow))
	assert.True(t, Usable(model.Record{TotalAmount: model.Ptr(42.0)}, model.FieldTotalAmount, inv, fixedNow))
}

func TestUsable_AgreesWithScorer(t *testing.T) {
	t.Parallel()

	for _, cfg := range []docclass.Config{docclass.Invoice(), docclass.Receipt()} {
		rec := model.Record{TotalAmount: model.Ptr(0.0), SubtotalAmount: model.Ptr(1250.0), TaxAmount: model.Ptr(250.0)}
		qs := testScorer().Score(rec, cfg)
		require.Contains(t, qs.MissingCriticalFields, model.FieldTotalAmount, cfg.Name)
		assert.False(t, Usable(rec, model.FieldTotalAmount, cfg, fixedNow), cfg.Name)
	}
}

func TestScore_PerfectInvoice(t *testing.T) {
	t.Parallel()

	qs := testScorer().Score(goodInvoice(), docclass.Invoice())
	assert.Equal(t, 100, qs.Score)
	assert.Empty(t, qs.Issues)
	assert.Empty(t, qs.MissingCriticalFields)
	assert.Empty(t, qs.InvalidFields)
}

func TestScore_EmptyRecords(t *testing.T) {
	t.Parallel()

	inv := testScorer().Score(model.Record{}, docclass.Invoice())
	assert.Equal(t, 5, inv.Score)
	assert.Equal(t, []model.Field{
		model.FieldTotalAmount, model.FieldCurrency, model.FieldVendorName, model.FieldInvoiceDate,
	}, inv.MissingCriticalFields)
	assert.Contains(t, inv.Issues, "invoice_number missing (optional but important)")

	rec := testScorer().Score(model.Record{}, docclass.Receipt())
	assert.Equal(t, 0, rec.Score)
	assert.Len(t, rec.MissingCriticalFields, 5)
}

func TestScore_Penalties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(model.Record) model.Record
		wantScore   int
		wantMissing []model.Field
		wantInvalid []model.Field
		wantIssue   string
	}{
		{
			name:        "lowercase currency counts as missing",
			mutate:      func(r model.Record) model.Record { return r.With(model.FieldCurrency, model.TextValue("eur")) },
			wantScore:   75,
			wantMissing: []model.Field{model.FieldCurrency},
		},
		{
			name:        "unknown currency counts as missing",
			mutate:      func(r model.Record) model.Record { return r.With(model.FieldCurrency, model.TextValue("QQQ")) },
			wantScore:   75,
			wantMissing: []model.Field{model.FieldCurrency},
		},
		{
			name:        "zero total counts as missing",
			mutate:      func(r model.Record) model.Record { return r.With(model.FieldTotalAmount, model.NumberValue(0)) },
			wantScore:   70,
			wantMissing: []model.Field{model.FieldTotalAmount},
		},
		{
			name: "due date alone fills the date slot",
			mutate: func(r model.Record) model.Record {
				return r.With(model.FieldInvoiceDate, model.Value{})
			},
			wantScore: 100,
		},
		{
			name: "neither date",
			mutate: func(r model.Record) model.Record {
				return r.With(model.FieldInvoiceDate, model.Value{}).With(model.FieldDueDate, model.Value{})
			},
			wantScore:   85,
			wantMissing: []model.Field{model.FieldInvoiceDate},
		},
		{
			name:        "malformed date",
			mutate:      func(r model.Record) model.Record { return r.With(model.FieldInvoiceDate, model.TextValue("01/05/2026")) },
			wantScore:   95,
			wantInvalid: []model.Field{model.FieldInvoiceDate},
		},
		{
			name:        "date out of range",
			mutate:      func(r model.Record) model.Record { return r.With(model.FieldDueDate, model.TextValue("2031-01-01")) },
			wantScore:   95,
			wantInvalid: []model.Field{model.FieldDueDate},
			wantIssue:   "due_date out of reasonable range",
		},
		{
			name:        "rate above 100",
			mutate:      func(r model.Record) model.Record { return r.With(model.FieldTaxRate, model.NumberValue(120)) },
			wantScore:   95,
			wantInvalid: []model.Field{model.FieldTaxRate},
		},
		{
			name:      "arithmetic mismatch",
			mutate:    func(r model.Record) model.Record { return r.With(model.FieldTaxAmount, model.NumberValue(300)) },
			wantScore: 90,
			wantIssue: IssueAmountMismatch,
		},
		{
			name:      "missing invoice number",
			mutate:    func(r model.Record) model.Record { return r.With(model.FieldInvoiceNumber, model.Value{}) },
			wantScore: 95,
			wantIssue: "invoice_number missing (optional but important)",
		},
		{
			name: "tax larger than total without subtotal",
			mutate: func(r model.Record) model.Record {
				return r.With(model.FieldSubtotalAmount, model.Value{}).With(model.FieldTaxAmount, model.NumberValue(2000))
			},
			wantScore: 90,
			wantIssue: IssueAmountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			qs := testScorer().Score(tt.mutate(goodInvoice()), docclass.Invoice())
			assert.Equal(t, tt.wantScore, qs.Score)
			if tt.wantMissing == nil {
				assert.Empty(t, qs.MissingCriticalFields)
			} else {
				assert.Equal(t, tt.wantMissing, qs.MissingCriticalFields)
			}
			if tt.wantInvalid == nil {
				assert.Empty(t, qs.InvalidFields)
			} else {
				assert.Equal(t, tt.wantInvalid, qs.InvalidFields)
			}
			if tt.wantIssue != "" {
				assert.Contains(t, qs.Issues, tt.wantIssue)
			}
		})
	}
}

func TestScore_LineItemsStandInForSubtotal(t *testing.T) {
	t.Parallel()

	rec := goodInvoice().
		With(model.FieldSubtotalAmount, model.Value{}).
		With(model.FieldLineItems, model.ItemsValue([]model.LineItem{
			{TotalPrice: model.Ptr(1000.0)},
			{TotalPrice: model.Ptr(250.0)},
		}))
	assert.Equal(t, 100, testScorer().Score(rec, docclass.Invoice()).Score)

	bad := rec.With(model.FieldTaxAmount, model.NumberValue(200))
	qs := testScorer().Score(bad, docclass.Invoice())
	assert.Contains(t, qs.Issues, IssueAmountMismatch)
}

func TestScore_ReceiptRequiresTax(t *testing.T) {
	t.Parallel()

	r := goodReceipt()
	assert.Equal(t, 100, testScorer().Score(r, docclass.Receipt()).Score)

	qs := testScorer().Score(r.With(model.FieldTaxAmount, model.Value{}), docclass.Receipt())
	assert.Equal(t, 90, qs.Score)
	assert.Equal(t, []model.Field{model.FieldTaxAmount}, qs.MissingCriticalFields)
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	rec := goodInvoice().With(model.FieldCurrency, model.TextValue("usd")).With(model.FieldTaxRate, model.NumberValue(-1))
	s := testScorer()
	assert.Equal(t, s.Score(rec, docclass.Invoice()), s.Score(rec, docclass.Invoice()))
}

func TestScore_ClampsAtZero(t *testing.T) {
	t.Parallel()

	rec := model.Record{TaxRate: model.Ptr(500.0), TaxAmount: model.Ptr(-1.0)}
	qs := testScorer().Score(rec, docclass.Receipt())
	assert.Equal(t, 0, qs.Score)
}

func TestNeedsRepair(t *testing.T) {
	t.Parallel()

	cfg := docclass.Invoice()
	assert.False(t, NeedsRepair(model.QualityScore{Score: 70}, cfg))
	assert.True(t, NeedsRepair(model.QualityScore{Score: 69}, cfg))
	assert.True(t, NeedsRepair(model.QualityScore{Score: 95, MissingCriticalFields: []model.Field{model.FieldCurrency}}, cfg))
}

func TestFieldsToRepair(t *testing.T) {
	t.Parallel()

	got := FieldsToRepair(model.QualityScore{
		MissingCriticalFields: []model.Field{model.FieldTotalAmount, model.FieldCurrency},
		InvalidFields:         []model.Field{model.FieldTaxRate, model.FieldCurrency},
	})
	assert.Equal(t, []model.Field{model.FieldTotalAmount, model.FieldCurrency, model.FieldTaxRate}, got)
}

func TestEffectiveSubtotal(t *testing.T) {
	t.Parallel()

	_, ok := EffectiveSubtotal(model.Record{})
	assert.False(t, ok)

	sub, ok := EffectiveSubtotal(model.Record{LineItems: []model.LineItem{
		{TotalPrice: model.Ptr(5.0)}, {TotalPrice: model.Ptr(-3.0)}, {},
	}})
	require.True(t, ok)
	assert.InDelta(t, 5.0, sub, 1e-9)

	sub, ok = EffectiveSubtotal(model.Record{SubtotalAmount: model.Ptr(9.0), LineItems: []model.LineItem{{TotalPrice: model.Ptr(5.0)}}})
	require.True(t, ok)
	assert.InDelta(t, 9.0, sub, 1e-9)
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	cfg := docclass.Invoice()
	s := testScorer()

	good := goodInvoice()
	assert.InDelta(t, 1.0, Confidence(good, s.Score(good, cfg), cfg), 1e-9)

	assert.InDelta(t, 0.0, Confidence(model.Record{}, s.Score(model.Record{}, cfg), cfg), 1e-9)

	qs := model.QualityScore{Score: 70}
	assert.InDelta(t, 0.9, Confidence(good, qs, cfg), 1e-9)

	short := good.With(model.FieldVendorName, model.TextValue("ACME")).With(model.FieldInvoiceNumber, model.Value{})
	qs = model.QualityScore{Score: 60, MissingCriticalFields: []model.Field{model.FieldCurrency, model.FieldInvoiceDate}}
	assert.InDelta(t, 0.5, Confidence(short, qs, cfg), 1e-9)
}

func TestConfidence_ReceiptStoreName(t *testing.T) {
	t.Parallel()

	cfg := docclass.Receipt()
	qs := model.QualityScore{Score: 50}

	long := model.Record{StoreName: model.Ptr("Corner Cafe")}
	short := model.Record{StoreName: model.Ptr("Cafe")}
	tiny := model.Record{StoreName: model.Ptr("Caf")}

	assert.InDelta(t, 0.65, Confidence(long, qs, cfg), 1e-9)
	assert.InDelta(t, 0.65, Confidence(short, qs, cfg), 1e-9)
	assert.InDelta(t, 0.60, Confidence(tiny, qs, cfg), 1e-9)
}
