package schema

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseNumber reads a number a model sent as a string. Currency symbols,
// codes, percent signs and grouping separators are ignored, and both
// 1,234.56 and 1.234,56 are understood.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			neg = !neg
		case r == '\'', unicode.IsSpace(r), unicode.IsLetter(r), unicode.Is(unicode.Sc, r), r == '%':
			// grouping, codes, symbols
		default:
			return 0, false
		}
	}
	digits := normalizeSeparators(b.String())
	if digits == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// normalizeSeparators rewrites s so '.' is the only decimal separator and
// grouping separators are gone.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever comes last is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		// A single comma followed by one or two digits is a decimal comma.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 && len(s)-lastComma-1 > 0 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

var nullStrings = map[string]bool{
	"":        true,
	"null":    true,
	"none":    true,
	"n/a":     true,
	"na":      true,
	"unknown": true,
	"-":       true,
}

func isNullString(s string) bool {
	return nullStrings[strings.ToLower(strings.TrimSpace(s))]
}
