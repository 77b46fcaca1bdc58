// Package ocr turns PDF and image documents into plain text for the
// text-only fallback path.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

// ReasonNoText marks a document that yielded no text.
const ReasonNoText = "no_text"

// Extractor extracts text content from documents.
type Extractor interface {
	ExtractText(ctx context.Context, doc model.Document) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig, mistralKey string) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if mistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral api_key")
		}
		m := NewMistralOCR(mistralKey, cfg.MistralModel)
		if cfg.MistralEndpoint != "" {
			m.endpoint = cfg.MistralEndpoint
		}
		return m, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// nonEmpty rejects whitespace-only output so callers never prompt a model
// with an empty document.
func nonEmpty(text, name string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", resilience.NewPermanentError(
			eris.Errorf("ocr: no text extracted from %s", name), ReasonNoText)
	}
	return text, nil
}
