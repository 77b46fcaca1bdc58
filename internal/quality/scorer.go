// Package quality scores candidate records and decides whether they need repair.
package quality

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

// IssueAmountMismatch is reported when subtotal + tax does not reconcile with the total.
const IssueAmountMismatch = "amount consistency check failed (subtotal + tax != total)"

// Scorer computes QualityScores. The zero value uses the wall clock.
type Scorer struct {
	// Now supplies the reference date for the date range check. The result
	// is truncated to the day, so scores are stable within a day.
	Now func() time.Time
}

// Score is Scorer{}.Score.
func Score(rec model.Record, cfg docclass.Config) model.QualityScore {
	return Scorer{}.Score(rec, cfg)
}

func (s Scorer) now() time.Time {
	if s.Now != nil {
		return day(s.Now())
	}
	return day(time.Now())
}

// Score rates rec against the class config. Starting from 100, it subtracts
// the configured penalty for every unsatisfied critical field, every present
// but invalid field, a failed arithmetic check and every missing important
// optional field. The result is clamped to [0,100].
func (s Scorer) Score(rec model.Record, cfg docclass.Config) model.QualityScore {
	now := s.now()
	qs := model.QualityScore{
		Issues:                []string{},
		MissingCriticalFields: []model.Field{},
		InvalidFields:         []model.Field{},
	}
	score := 100

	for _, cf := range cfg.Critical {
		if criticalSatisfied(rec, cf, now) {
			continue
		}
		qs.MissingCriticalFields = append(qs.MissingCriticalFields, cf.Field)
		score -= cf.Penalty
	}

	for _, f := range cfg.Fields {
		if !rec.Has(f) || slices.Contains(qs.MissingCriticalFields, f) {
			continue
		}
		switch f.Kind() {
		case model.KindDate:
			d := rec.Text(f)
			if !ValidDateFormat(d) {
				qs.InvalidFields = append(qs.InvalidFields, f)
				score -= cfg.InvalidPenalty
			} else if !DateInRange(d, now) {
				qs.InvalidFields = append(qs.InvalidFields, f)
				qs.Issues = append(qs.Issues, fmt.Sprintf("%s out of reasonable range", f))
				score -= cfg.InvalidPenalty
			}
		case model.KindAmount, model.KindRate, model.KindCurrency:
			if !Valid(rec, f, now) {
				qs.InvalidFields = append(qs.InvalidFields, f)
				score -= cfg.InvalidPenalty
			}
		}
	}

	if !amountsConsistent(rec, cfg.Tolerance) {
		qs.Issues = append(qs.Issues, IssueAmountMismatch)
		score -= cfg.ConsistencyPenalty
	}

	for _, of := range cfg.ImportantOptional {
		if rec.Has(of.Field) {
			continue
		}
		qs.Issues = append(qs.Issues, fmt.Sprintf("%s missing (optional but important)", of.Field))
		score -= of.Penalty
	}

	qs.Score = max(0, min(100, score))
	return qs
}

func criticalSatisfied(rec model.Record, cf docclass.CriticalField, now time.Time) bool {
	for _, f := range append([]model.Field{cf.Field}, cf.Alternates...) {
		if !rec.Has(f) {
			continue
		}
		if cf.RequireValid && !criticalValid(rec, f, now) {
			continue
		}
		if cf.NonZero {
			if n, ok := rec.Number(f); ok && n == 0 {
				continue
			}
		}
		return true
	}
	return false
}

// criticalValid applies the kind check without the date range, which is
// scored separately as an invalid field.
func criticalValid(rec model.Record, f model.Field, now time.Time) bool {
	if f.IsDate() {
		return ValidDateFormat(rec.Text(f))
	}
	return Valid(rec, f, now)
}

// EffectiveSubtotal returns the stated subtotal when usable, else the sum of
// valid line item totals. The second result is false when neither is known.
func EffectiveSubtotal(rec model.Record) (float64, bool) {
	if n, ok := rec.Number(model.FieldSubtotalAmount); ok && ValidAmount(n) && n > 0 {
		return n, true
	}
	return LineItemsTotal(rec)
}

// LineItemsTotal sums the valid line item totals.
func LineItemsTotal(rec model.Record) (float64, bool) {
	var sum float64
	for _, li := range rec.LineItems {
		if li.TotalPrice != nil && ValidAmount(*li.TotalPrice) {
			sum += *li.TotalPrice
		}
	}
	return sum, sum > 0
}

// amountsConsistent checks subtotal + tax against the total. Records without
// a usable total or tax cannot be checked and pass.
func amountsConsistent(rec model.Record, tolerance float64) bool {
	total, ok := rec.Number(model.FieldTotalAmount)
	if !ok || total == 0 || !ValidAmount(total) {
		return true
	}
	tax, ok := rec.Number(model.FieldTaxAmount)
	if !ok || !ValidAmount(tax) {
		return true
	}
	if sub, ok := EffectiveSubtotal(rec); ok {
		return math.Abs(sub+tax-total) <= tolerance+1e-9
	}
	return tax <= total
}

// NeedsRepair reports whether a record with this score should go through
// another pass.
func NeedsRepair(qs model.QualityScore, cfg docclass.Config) bool {
	return qs.Score < cfg.QualityThreshold || len(qs.MissingCriticalFields) > 0
}

// FieldsToRepair returns the missing critical and invalid fields, deduplicated,
// in that order.
func FieldsToRepair(qs model.QualityScore) []model.Field {
	out := make([]model.Field, 0, len(qs.MissingCriticalFields)+len(qs.InvalidFields))
	for _, f := range slices.Concat(qs.MissingCriticalFields, qs.InvalidFields) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
