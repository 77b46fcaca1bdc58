package quality

import (
	"math"
	"regexp"
	"time"

	"golang.org/x/text/currency"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

// MaxAmount is the largest amount accepted as plausible.
const MaxAmount = 1e12

const isoDate = "2006-01-02"

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCurrency reports whether s is a known ISO 4217 code in upper case.
func ValidCurrency(s string) bool {
	if !currencyCodeRe.MatchString(s) {
		return false
	}
	_, err := currency.ParseISO(s)
	return err == nil
}

// ValidDateFormat reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDateFormat(s string) bool {
	_, err := time.Parse(isoDate, s)
	return err == nil && len(s) == len(isoDate)
}

// DateInRange reports whether s falls within ten years before and two years
// after now.
func DateInRange(s string, now time.Time) bool {
	d, err := time.Parse(isoDate, s)
	if err != nil {
		return false
	}
	today := day(now)
	return !d.Before(today.AddDate(-10, 0, 0)) && !d.After(today.AddDate(2, 0, 0))
}

// ValidAmount reports whether x is a finite amount in [0, MaxAmount].
func ValidAmount(x float64) bool {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return false
	}
	return x >= 0 && x <= MaxAmount
}

// ValidRate reports whether x is a percentage in [0, 100].
func ValidRate(x float64) bool {
	if math.IsNaN(x) {
		return false
	}
	return x >= 0 && x <= 100
}

// Valid reports whether the value held in f passes its kind's validity
// check. Absent fields are not valid.
func Valid(rec model.Record, f model.Field, now time.Time) bool {
	if !rec.Has(f) {
		return false
	}
	switch f.Kind() {
	case model.KindCurrency:
		return ValidCurrency(rec.Text(f))
	case model.KindDate:
		s := rec.Text(f)
		return ValidDateFormat(s) && DateInRange(s, now)
	case model.KindAmount:
		n, _ := rec.Number(f)
		return ValidAmount(n)
	case model.KindRate:
		n, _ := rec.Number(f)
		return ValidRate(n)
	default:
		return true
	}
}

// Usable reports whether f holds a value later passes must not overwrite.
// A zero is unusable only where cfg marks f as a NonZero critical field,
// matching what the scorer reports as missing. Other stated zeros stand.
func Usable(rec model.Record, f model.Field, cfg docclass.Config, now time.Time) bool {
	if !Valid(rec, f, now) {
		return false
	}
	if !f.Kind().Numeric() {
		return true
	}
	n, _ := rec.Number(f)
	if n != 0 {
		return true
	}
	for _, cf := range cfg.Critical {
		if cf.NonZero && cf.Field == f {
			return false
		}
	}
	return true
}

// day truncates t to midnight UTC of its calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
