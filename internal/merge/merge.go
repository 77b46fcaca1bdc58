// Package merge combines candidate records field by field.
package merge

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/quality"
)

// DefaultConfidenceBand applies when the class config leaves the band unset.
const DefaultConfidenceBand = 0.1

// Rule picks between two present values of one field. a comes from the
// primary record.
type Rule func(a, b model.Value) model.Value

var rules = map[model.Field]Rule{
	model.FieldVendorName:    longer,
	model.FieldInvoiceNumber: longer,
	model.FieldStoreName:     longer,
	model.FieldCurrency:      nonDefaultCurrency,
	model.FieldInvoiceDate:   moreRecent,
	model.FieldDate:          moreRecent,
	model.FieldEmail:         withAt,
	model.FieldWebsite:       shorterHost,
	model.FieldLineItems:     moreItems,
}

// RuleFor returns the tie-break rule for f, or nil when the primary value wins.
func RuleFor(f model.Field) Rule {
	return rules[f]
}

// Merge combines primary and secondary into a new record. A field present in
// only one record is taken from it. When both hold a value and exactly one
// of them passes the field's validity check, the valid one is kept. Otherwise
// confidences within the band resolve through the field's rule, and outside
// it the more confident record wins.
func Merge(primary, secondary model.Record, primaryConf, secondaryConf float64, cfg docclass.Config) model.Record {
	band := cfg.ConfidenceBand
	if band <= 0 {
		band = DefaultConfidenceBand
	}
	near := math.Abs(primaryConf-secondaryConf) < band

	out := primary.Clone()
	for _, f := range model.Fields() {
		a, b := primary.Get(f), secondary.Get(f)
		switch {
		case b.IsZero():
			continue
		case a.IsZero():
			out = out.With(f, b)
			continue
		}

		va, vb := validValue(f, a), validValue(f, b)
		switch {
		case va && !vb:
			continue
		case vb && !va:
			out = out.With(f, b)
			continue
		}

		if near {
			if rule := rules[f]; rule != nil {
				out = out.With(f, rule(a, b))
			}
			continue
		}
		if secondaryConf > primaryConf {
			out = out.With(f, b)
		}
	}
	return out
}

// FillGaps copies each valid value of patch into base where isUsable reports
// the base value as absent or invalid. It returns the new record and the
// fields it filled.
func FillGaps(base, patch model.Record, isUsable func(model.Field) bool) (model.Record, []model.Field) {
	out := base.Clone()
	var filled []model.Field
	for _, f := range model.Fields() {
		v := patch.Get(f)
		if v.IsZero() || !validValue(f, v) || isUsable(f) {
			continue
		}
		out = out.With(f, v)
		filled = append(filled, f)
	}
	return out, filled
}

// validValue applies the field kind's format check. Dates are not range
// checked so merges stay independent of the clock.
func validValue(f model.Field, v model.Value) bool {
	switch f.Kind() {
	case model.KindCurrency:
		return v.Text != nil && quality.ValidCurrency(strings.TrimSpace(*v.Text))
	case model.KindDate:
		return v.Text != nil && quality.ValidDateFormat(strings.TrimSpace(*v.Text))
	case model.KindAmount:
		return v.Number != nil && quality.ValidAmount(*v.Number)
	case model.KindRate:
		return v.Number != nil && quality.ValidRate(*v.Number)
	default:
		return !v.IsZero()
	}
}

func text(v model.Value) string {
	if v.Text == nil {
		return ""
	}
	return strings.TrimSpace(*v.Text)
}

func longer(a, b model.Value) model.Value {
	if utf8.RuneCountInString(text(b)) > utf8.RuneCountInString(text(a)) {
		return b
	}
	return a
}

func nonDefaultCurrency(a, b model.Value) model.Value {
	if strings.ToUpper(text(a)) == "USD" && strings.ToUpper(text(b)) != "USD" {
		return b
	}
	return a
}

func moreRecent(a, b model.Value) model.Value {
	da, errA := time.Parse("2006-01-02", text(a))
	db, errB := time.Parse("2006-01-02", text(b))
	switch {
	case errA != nil && errB == nil:
		return b
	case errA == nil && errB == nil && db.After(da):
		return b
	}
	return a
}

func withAt(a, b model.Value) model.Value {
	if !strings.Contains(text(a), "@") && strings.Contains(text(b), "@") {
		return b
	}
	return a
}

func shorterHost(a, b model.Value) model.Value {
	ca := strings.TrimPrefix(strings.ToLower(text(a)), "www.")
	cb := strings.TrimPrefix(strings.ToLower(text(b)), "www.")
	if len(cb) < len(ca) {
		return b
	}
	return a
}

func moreItems(a, b model.Value) model.Value {
	if len(b.Items) > len(a.Items) {
		return b
	}
	return a
}
