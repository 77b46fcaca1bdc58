// Package consistency checks arithmetic and temporal relationships between
// the fields of one record and proposes corrective values.
package consistency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/quality"
)

// Report is the outcome of Validate.
type Report struct {
	Issues []model.ConsistencyIssue `json:"issues"`
	Fixes  []model.SuggestedFix     `json:"fixes"`
}

// Valid reports whether no error-severity issue was found.
func (r Report) Valid() bool {
	for _, iss := range r.Issues {
		if iss.Severity == model.SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the error-severity issues.
func (r Report) Errors() []model.ConsistencyIssue {
	var out []model.ConsistencyIssue
	for _, iss := range r.Issues {
		if iss.Severity == model.SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

// operands holds the amounts a check needs, already validated.
type operands struct {
	total, tax, rate, sub decimal.Decimal
	hasTotal, hasTax      bool
	hasRate, hasSub       bool
}

func amount(rec model.Record, f model.Field) (decimal.Decimal, bool) {
	n, ok := rec.Number(f)
	if !ok || !quality.ValidAmount(n) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(n), true
}

func load(rec model.Record) operands {
	var op operands
	op.total, op.hasTotal = amount(rec, model.FieldTotalAmount)
	op.hasTotal = op.hasTotal && !op.total.IsZero()
	op.tax, op.hasTax = amount(rec, model.FieldTaxAmount)
	if n, ok := rec.Number(model.FieldTaxRate); ok && quality.ValidRate(n) {
		op.rate, op.hasRate = decimal.NewFromFloat(n), true
	}
	if n, ok := quality.EffectiveSubtotal(rec); ok {
		op.sub, op.hasSub = decimal.NewFromFloat(n), true
	}
	return op
}

// Validate runs every cross-field check on rec. It never modifies rec.
func Validate(rec model.Record, cfg docclass.Config) Report {
	var r Report
	op := load(rec)
	tol := decimal.NewFromFloat(cfg.Tolerance)
	ratio := decimal.NewFromFloat(cfg.RoundingFixRatio)

	r.checkTotal(op, tol, ratio, decimal.NewFromFloat(cfg.RateMatchRatio))
	r.checkRate(op, decimal.NewFromFloat(cfg.RateTolerance))
	r.checkDates(rec)
	r.checkLineItems(rec, tol, ratio)
	return r
}

// checkTotal compares the total with subtotal + tax and fills whichever of
// total or tax can be derived from the others.
func (r *Report) checkTotal(op operands, tol, ratio, rateMatch decimal.Decimal) {
	hundred := decimal.NewFromInt(100)

	switch {
	case op.hasTotal && op.hasSub && op.hasTax:
		calc := op.sub.Add(op.tax)
		diff := calc.Sub(op.total).Abs()
		if diff.LessThanOrEqual(tol) {
			return
		}
		r.issue(model.FieldTotalAmount, model.SeverityError,
			"total_amount (%s) does not match subtotal (%s) + tax (%s) = %s, difference %s",
			op.total, op.sub, op.tax, calc, diff.StringFixed(2))
		if diff.LessThan(op.total.Mul(ratio)) {
			r.fix(model.FieldTotalAmount, calc, "calculated from subtotal + tax_amount (rounding correction)")
		}

	case op.hasTotal && !op.hasTax && op.hasSub && op.hasRate && op.rate.IsPositive():
		tax := op.sub.Mul(op.rate).Div(hundred)
		diff := op.sub.Add(tax).Sub(op.total).Abs()
		if diff.LessThan(tol) || diff.LessThan(op.total.Mul(rateMatch)) {
			r.fix(model.FieldTaxAmount, tax,
				fmt.Sprintf("calculated from subtotal (%s) x tax_rate (%s%%)", op.sub, op.rate))
		}

	case !op.hasTotal && op.hasSub && op.hasTax:
		calc := op.sub.Add(op.tax)
		r.fix(model.FieldTotalAmount, calc,
			fmt.Sprintf("calculated from subtotal (%s) + tax_amount (%s)", op.sub, op.tax))
	}
}

// checkRate compares tax_rate with tax / subtotal x 100, or derives the
// rate when it is missing.
func (r *Report) checkRate(op operands, rateTol decimal.Decimal) {
	if !op.hasTax || !op.hasSub || !op.sub.IsPositive() {
		return
	}
	calc := op.tax.Div(op.sub).Mul(decimal.NewFromInt(100))
	inRange := !calc.IsNegative() && calc.LessThanOrEqual(decimal.NewFromInt(100))
	reason := fmt.Sprintf("calculated from tax_amount (%s) / subtotal (%s)", op.tax, op.sub)

	if !op.hasRate {
		if inRange {
			r.fix(model.FieldTaxRate, calc, reason)
		}
		return
	}

	if calc.Sub(op.rate).Abs().LessThanOrEqual(rateTol) {
		return
	}
	r.issue(model.FieldTaxRate, model.SeverityWarning,
		"tax_rate (%s%%) does not match tax_amount (%s) / subtotal (%s) = %s%%",
		op.rate, op.tax, op.sub, calc.StringFixed(2))
	if inRange {
		r.fix(model.FieldTaxRate, calc, reason)
	}
}

// checkDates requires due_date on or after invoice_date.
func (r *Report) checkDates(rec model.Record) {
	issued, err1 := time.Parse("2006-01-02", rec.Text(model.FieldInvoiceDate))
	due, err2 := time.Parse("2006-01-02", rec.Text(model.FieldDueDate))
	if err1 != nil || err2 != nil {
		return
	}
	if due.Before(issued) {
		r.issue(model.FieldDueDate, model.SeverityError,
			"due_date (%s) is before invoice_date (%s)",
			rec.Text(model.FieldDueDate), rec.Text(model.FieldInvoiceDate))
	}
}

// checkLineItems compares the stated subtotal with the sum of line items,
// or derives the subtotal when it is missing.
func (r *Report) checkLineItems(rec model.Record, tol, ratio decimal.Decimal) {
	if len(rec.LineItems) == 0 {
		return
	}
	sum, ok := quality.LineItemsTotal(rec)
	if !ok {
		return
	}
	items := decimal.NewFromFloat(sum)

	stated, hasStated := amount(rec, model.FieldSubtotalAmount)
	if !hasStated {
		r.fix(model.FieldSubtotalAmount, items, "calculated from sum of line items")
		return
	}

	diff := items.Sub(stated).Abs()
	if diff.LessThanOrEqual(tol) {
		return
	}
	r.issue(model.FieldSubtotalAmount, model.SeverityWarning,
		"subtotal (%s) does not match sum of line items (%s), difference %s",
		stated, items, diff.StringFixed(2))
	if diff.LessThan(stated.Mul(ratio)) {
		r.fix(model.FieldSubtotalAmount, items, "calculated from sum of line items")
	}
}

func (r *Report) issue(f model.Field, sev model.Severity, format string, args ...any) {
	r.Issues = append(r.Issues, model.ConsistencyIssue{
		Field:    f,
		Issue:    fmt.Sprintf(format, args...),
		Severity: sev,
	})
}

func (r *Report) fix(f model.Field, v decimal.Decimal, reason string) {
	val, _ := v.Round(2).Float64()
	r.Fixes = append(r.Fixes, model.SuggestedFix{Field: f, Value: val, Reason: reason})
}

// Apply returns a copy of rec with each fix applied whose target is absent
// or invalid under cfg, and the fixes that were applied. Usable values are
// never overwritten, and only the first fix for a field can apply.
func Apply(rec model.Record, fixes []model.SuggestedFix, cfg docclass.Config, now time.Time) (model.Record, []model.SuggestedFix) {
	out := rec.Clone()
	var applied []model.SuggestedFix
	for _, fx := range fixes {
		if !fx.Field.Kind().Numeric() || quality.Usable(out, fx.Field, cfg, now) {
			continue
		}
		out = out.With(fx.Field, model.NumberValue(fx.Value))
		applied = append(applied, fx)
	}
	return out, applied
}
