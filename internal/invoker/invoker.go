// Package invoker calls model backends on behalf of the extractor. Every
// error it returns is classified as a resilience.TransientError or
// resilience.PermanentError.
package invoker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/cost"
	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

// Provider names accepted in tier configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderMistral   = "mistral"
)

// Permanent failure reasons raised by backends.
const (
	ReasonUnsupported  = "unsupported"
	ReasonEmpty        = "empty"
	ReasonUnconfigured = "unconfigured"
)

// SystemPrompt is sent as the system instruction on every call.
const SystemPrompt = "You extract structured data from business documents. " +
	"Respond with a single JSON object and nothing else."

// Usage is the token consumption of a call.
type Usage = cost.Usage

// Request is what a backend sends to its model.
type Request struct {
	System   string
	Prompt   string
	Document *model.Document
	// Text replaces the document content when set.
	Text   string
	Schema map[string]any
	Tier   docclass.TierConfig
}

// Response is a backend's raw answer.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Backend is one inference provider.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Call describes one extraction attempt against one tier.
type Call struct {
	ExtractionID string
	Pass         int
	Class        docclass.Config
	Tier         docclass.TierConfig
	Document     *model.Document
	Prompt       string
	// TextOverride sends extracted text instead of the document.
	TextOverride string
	// Fields narrows the response schema for single-field calls.
	Fields []model.Field

	Timeout   time.Duration
	Retries   int
	RetryBase time.Duration
}

// Invoker turns a Call into a candidate record.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (model.Record, error)
}

// documentText returns the text to send in place of a document: the
// override, or the document itself when it is plain text.
func documentText(req Request) (string, bool) {
	if req.Text != "" {
		return req.Text, true
	}
	if req.Document != nil && req.Document.IsText() {
		return string(req.Document.Data), true
	}
	return "", false
}

func unsupported(backend, mediaType string) error {
	return resilience.NewPermanentError(
		eris.Errorf("invoker: %s cannot read %s documents", backend, mediaType), ReasonUnsupported)
}

func emptyResponse(backend string) error {
	return resilience.NewPermanentError(
		eris.Errorf("invoker: %s returned no content", backend), ReasonEmpty)
}
