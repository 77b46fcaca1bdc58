package format

import "github.com/sells-group/docextract/internal/model"

// Prompt hints added to field-level requests.
const (
	HintDecimalComma = "NUMBER FORMAT: the document uses European format (1.234,56) with a comma as decimal separator. Return a plain number."
	HintDayFirst     = "DATE FORMAT: the document writes dates as DD/MM/YYYY. Convert to YYYY-MM-DD."
	HintVAT          = "Look for VAT, MwSt, TVA, or IVA labels."
	HintGST          = "Look for GST labels."
)

// HintsForField returns the hints that apply to f under format.
func HintsForField(f model.Field, format model.DocumentFormat) []string {
	var hints []string
	if f.Kind().Numeric() && format.NumberFormat == model.NumberFormatEuropean {
		hints = append(hints, HintDecimalComma)
	}
	if f.IsDate() && format.DateFormat == model.DateFormatEuropean {
		hints = append(hints, HintDayFirst)
	}
	if f.IsTax() {
		switch format.TaxTerm {
		case model.TaxTermVAT:
			hints = append(hints, HintVAT)
		case model.TaxTermGST:
			hints = append(hints, HintGST)
		}
	}
	return hints
}

// Hints returns the hints that apply to any field of the document, used for
// whole-document prompts.
func Hints(format model.DocumentFormat) []string {
	var hints []string
	if format.NumberFormat == model.NumberFormatEuropean {
		hints = append(hints, HintDecimalComma)
	}
	if format.DateFormat == model.DateFormatEuropean {
		hints = append(hints, HintDayFirst)
	}
	switch format.TaxTerm {
	case model.TaxTermVAT:
		hints = append(hints, HintVAT)
	case model.TaxTermGST:
		hints = append(hints, HintGST)
	}
	return hints
}
