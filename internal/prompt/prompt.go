// Package prompt builds the instruction text sent with each model call.
package prompt

import (
	"strings"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

// TextFallbackNote is appended when the document is sent as extracted text.
const TextFallbackNote = "NOTE: The document content below was extracted as text from a PDF. " +
	"Layout and visual elements may be missing. Extract the requested information from the text."

const instructionLine = "Extract structured data with maximum accuracy. Follow these instructions precisely:"

// Options tune a whole-document prompt.
type Options struct {
	// CompanyName is the recipient of the document, used to tell the issuer
	// apart from the customer.
	CompanyName string
	// Format hints from an earlier pass.
	Format *model.DocumentFormat
	// ChainOfThought asks the model to reason step by step.
	ChainOfThought bool
}

// Components are the sections of a prompt, composed in field order.
type Components struct {
	Base           string
	Examples       string
	ChainOfThought string
	Context        string
	Requirements   string
	FieldRules     string
	Accuracy       string
	CommonErrors   string
	Validation     string
}

// Factory produces prompts for a document class.
type Factory interface {
	Build(class docclass.Config, opts Options) Components
	ForField(class docclass.Config, field model.Field, companyName string) string
}

// Compose joins the components into one prompt. The chain-of-thought section
// is included only when useCoT is set; empty optional sections are skipped.
func Compose(c Components, useCoT bool) string {
	parts := []string{c.Base, instructionLine, "", c.Examples}
	if useCoT && c.ChainOfThought != "" {
		parts = append(parts, "", c.ChainOfThought)
	}
	if c.Context != "" {
		parts = append(parts, "", c.Context)
	}
	parts = append(parts,
		"", c.Requirements,
		"", c.FieldRules,
		"", c.Accuracy,
		"", c.CommonErrors,
		"", c.Validation,
	)
	return strings.Join(parts, "\n")
}

// WithTextFallback appends TextFallbackNote to p.
func WithTextFallback(p string) string {
	return p + "\n\n" + TextFallbackNote
}

// WithHints appends format hints to p.
func WithHints(p string, hints []string) string {
	if len(hints) == 0 {
		return p
	}
	return p + "\n\nFORMAT HINTS:\n- " + strings.Join(hints, "\n- ")
}
