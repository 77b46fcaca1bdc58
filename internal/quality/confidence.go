package quality

import (
	"unicode/utf8"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

// Confidence derives a [0,1] trust value for rec from its quality score.
// It is used only to weight merges and is never reported as quality.
func Confidence(rec model.Record, qs model.QualityScore, cfg docclass.Config) float64 {
	c := float64(qs.Score) / 100

	if len(qs.MissingCriticalFields) == 0 {
		c = min(1, c+0.1)
	}
	c -= float64(len(qs.MissingCriticalFields)) * 0.05

	if cfg.NameField != "" && utf8.RuneCountInString(rec.Text(cfg.NameField)) > cfg.NameMinLength {
		c = min(1, c+0.05)
	}
	if cfg.HasField(model.FieldInvoiceNumber) && rec.Has(model.FieldInvoiceNumber) {
		c = min(1, c+0.05)
	}

	return max(0, min(1, c))
}
