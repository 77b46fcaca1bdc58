// Package format infers locale conventions from an extracted record. The
// result only biases later prompts.
package format

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/sells-group/docextract/internal/model"
)

// Currencies written with a decimal comma.
var decimalCommaCurrencies = map[string]bool{
	"EUR": true, "SEK": true, "NOK": true, "DKK": true, "PLN": true,
	"CZK": true, "HUF": true, "RON": true, "BGN": true, "TRY": true,
	"BRL": true, "ARS": true, "CLP": true, "IDR": true, "VND": true,
	"RUB": true, "UAH": true,
}

var gstCurrencies = map[string]bool{
	"AUD": true, "NZD": true, "CAD": true, "INR": true, "SGD": true, "MYR": true,
}

var vatCurrencies = map[string]bool{
	"EUR": true, "GBP": true, "CHF": true, "SEK": true, "NOK": true, "DKK": true,
	"PLN": true, "CZK": true, "HUF": true, "RON": true, "BGN": true,
}

// Languages whose documents put the day first.
var dayFirstLanguages = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "nl": true, "pt": true,
	"sv": true, "nb": true, "no": true, "nn": true, "da": true, "fi": true,
	"pl": true, "cs": true, "sk": true, "hu": true, "ro": true, "bg": true,
	"el": true, "hr": true, "sl": true, "et": true, "lv": true, "lt": true,
	"ru": true, "uk": true, "tr": true,
}

// English-speaking regions that also write day first.
var dayFirstEnglish = map[string]bool{
	"GB": true, "IE": true, "AU": true, "NZ": true, "IN": true, "ZA": true,
}

// Models sometimes return language names instead of codes.
var languageNames = map[string]string{
	"english": "en", "german": "de", "deutsch": "de", "french": "fr", "français": "fr",
	"spanish": "es", "español": "es", "italian": "it", "dutch": "nl", "portuguese": "pt",
	"swedish": "sv", "norwegian": "no", "danish": "da", "finnish": "fi", "polish": "pl",
	"czech": "cs", "hungarian": "hu", "romanian": "ro", "greek": "el", "russian": "ru",
	"ukrainian": "uk", "turkish": "tr",
}

// Detect infers a DocumentFormat from rec's currency, language and tax_type.
// It never modifies rec.
func Detect(rec model.Record) model.DocumentFormat {
	cur := strings.ToUpper(rec.Text(model.FieldCurrency))
	base, region := parseLanguage(rec.Text(model.FieldLanguage))

	f := model.DocumentFormat{
		NumberFormat: model.NumberFormatUS,
		DateFormat:   model.DateFormatISO,
		TaxTerm:      model.TaxTermUnknown,
		Language:     base,
		Currency:     cur,
	}

	switch {
	case decimalCommaCurrencies[cur]:
		f.NumberFormat = model.NumberFormatEuropean
	case cur == "" && dayFirstLanguages[base] && base != "ru" && base != "tr":
		f.NumberFormat = model.NumberFormatEuropean
	}

	switch {
	case base == "en" && dayFirstEnglish[region]:
		f.DateFormat = model.DateFormatEuropean
	case base == "en":
		f.DateFormat = model.DateFormatUS
	case dayFirstLanguages[base]:
		f.DateFormat = model.DateFormatEuropean
	}

	f.TaxTerm = taxTerm(rec.Text(model.FieldTaxType), cur, base)
	return f
}

func taxTerm(taxType, cur, lang string) model.TaxTerm {
	t := strings.ToLower(taxType)
	switch {
	case strings.Contains(t, "gst") || strings.Contains(t, "hst"):
		return model.TaxTermGST
	case strings.Contains(t, "vat"), strings.Contains(t, "mwst"), strings.Contains(t, "tva"),
		strings.Contains(t, "iva"), strings.Contains(t, "moms"), strings.Contains(t, "btw"):
		return model.TaxTermVAT
	case strings.Contains(t, "sales"):
		return model.TaxTermSalesTax
	}

	switch {
	case cur == "USD":
		return model.TaxTermSalesTax
	case gstCurrencies[cur]:
		return model.TaxTermGST
	case vatCurrencies[cur]:
		return model.TaxTermVAT
	case dayFirstLanguages[lang]:
		return model.TaxTermVAT
	}
	return model.TaxTermUnknown
}

// parseLanguage returns the lower-case base language and upper-case region
// of s, or empty strings when s is not recognizable.
func parseLanguage(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if code, ok := languageNames[strings.ToLower(s)]; ok {
		s = code
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return "", ""
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf != language.Exact {
		return base.String(), ""
	}
	return base.String(), region.String()
}
