package model

import "time"

// QualityScore is the scorer's verdict on a record.
type QualityScore struct {
	Score                 int      `json:"score"`
	Issues                []string `json:"issues"`
	MissingCriticalFields []Field  `json:"missing_critical_fields"`
	InvalidFields         []Field  `json:"invalid_fields"`
}

// Severity grades a consistency issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ConsistencyIssue describes a cross-field arithmetic or temporal mismatch.
type ConsistencyIssue struct {
	Field    Field    `json:"field"`
	Issue    string   `json:"issue"`
	Severity Severity `json:"severity"`
}

// SuggestedFix proposes a corrected value for one field.
type SuggestedFix struct {
	Field  Field   `json:"field"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// NumberFormat is the decimal separator convention of a document.
type NumberFormat string

const (
	NumberFormatUS       NumberFormat = "us"
	NumberFormatEuropean NumberFormat = "european"
)

// DateFormat is the day/month ordering convention of a document.
type DateFormat string

const (
	DateFormatUS       DateFormat = "us"
	DateFormatEuropean DateFormat = "european"
	DateFormatISO      DateFormat = "iso"
)

// TaxTerm is the tax terminology a document is likely to use.
type TaxTerm string

const (
	TaxTermVAT      TaxTerm = "vat"
	TaxTermSalesTax TaxTerm = "sales_tax"
	TaxTermGST      TaxTerm = "gst"
	TaxTermUnknown  TaxTerm = "unknown"
)

// DocumentFormat holds locale guesses inferred from an extracted record.
// It only biases prompts and is never authoritative.
type DocumentFormat struct {
	NumberFormat NumberFormat `json:"number_format"`
	DateFormat   DateFormat   `json:"date_format"`
	TaxTerm      TaxTerm      `json:"tax_term"`
	Language     string       `json:"language,omitempty"`
	Currency     string       `json:"currency,omitempty"`
}

// PassStatus is the outcome of one orchestrator pass.
type PassStatus string

const (
	PassStatusComplete PassStatus = "complete"
	PassStatusFailed   PassStatus = "failed"
	PassStatusSkipped  PassStatus = "skipped"
)

// PassResult records what a pass did.
type PassResult struct {
	Pass     int        `json:"pass"`
	Name     string     `json:"name"`
	Status   PassStatus `json:"status"`
	Tier     string     `json:"tier,omitempty"`
	Score    int        `json:"score"`
	Fields   []Field    `json:"fields,omitempty"`
	Error    string     `json:"error,omitempty"`
	Duration int64      `json:"duration_ms"`
}

// ExtractionResult is the orchestrator's output for one document.
type ExtractionResult struct {
	ID           string         `json:"id"`
	Class        string         `json:"class"`
	Document     string         `json:"document"`
	Data         Record         `json:"data"`
	QualityScore QualityScore   `json:"quality_score"`
	Tier         string         `json:"tier"`
	TextFallback bool           `json:"text_fallback,omitempty"`
	FixesApplied []SuggestedFix `json:"fixes_applied,omitempty"`
	Passes       []PassResult   `json:"passes"`
	CompletedAt  time.Time      `json:"completed_at"`
}
