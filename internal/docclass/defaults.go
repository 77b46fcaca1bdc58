package docclass

import (
	"time"

	"github.com/sells-group/docextract/internal/model"
)

// Default model IDs per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultMistralModel   = "mistral-medium-latest"
)

// DefaultTiers is the cascade used by the built-in classes.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: TierPrimary, Provider: "anthropic", Model: DefaultAnthropicModel, Temperature: 0.1, MaxTokens: 4096},
		{Name: TierSecondary, Provider: "gemini", Model: DefaultGeminiModel, Temperature: 0.1, MaxTokens: 4096},
		{Name: TierTertiary, Provider: "openai", Model: DefaultOpenAIModel, Temperature: 0.1, MaxTokens: 4096},
	}
}

func base(name string) Config {
	return Config{
		Name:                 name,
		Tiers:                DefaultTiers(),
		Timeout:              60 * time.Second,
		Retries:              2,
		RetryBaseDelay:       2 * time.Second,
		FieldTimeoutCritical: 90 * time.Second,
		FieldTimeoutOther:    30 * time.Second,
		FieldRetries:         1,
		FieldRetryBaseDelay:  time.Second,
		FieldConcurrency:     8,
		CriticalPriority:     8,
		InvalidPenalty:       5,
		ConsistencyPenalty:   10,
		QualityThreshold:     70,
		Tolerance:            0.01,
		RateTolerance:        0.1,
		RoundingFixRatio:     0.05,
		RateMatchRatio:       0.01,
		ConfidenceBand:       0.1,
	}
}

// Invoice returns the built-in invoice class.
func Invoice() Config {
	c := base("invoice")
	c.Fields = []model.Field{
		model.FieldDocumentType,
		model.FieldInvoiceNumber,
		model.FieldInvoiceDate,
		model.FieldDueDate,
		model.FieldCurrency,
		model.FieldTotalAmount,
		model.FieldSubtotalAmount,
		model.FieldTaxAmount,
		model.FieldTaxRate,
		model.FieldTaxType,
		model.FieldVendorName,
		model.FieldVendorAddress,
		model.FieldCustomerName,
		model.FieldCustomerAddress,
		model.FieldWebsite,
		model.FieldEmail,
		model.FieldLineItems,
		model.FieldPaymentInstructions,
		model.FieldNotes,
		model.FieldLanguage,
	}
	c.NameField = model.FieldVendorName
	c.NameMinLength = 5
	c.FieldPriority = map[model.Field]int{
		model.FieldTotalAmount:     10,
		model.FieldCurrency:        9,
		model.FieldVendorName:      9,
		model.FieldInvoiceDate:     8,
		model.FieldDueDate:         7,
		model.FieldTaxAmount:       7,
		model.FieldInvoiceNumber:   6,
		model.FieldSubtotalAmount:  6,
		model.FieldTaxRate:         6,
		model.FieldCustomerName:    5,
		model.FieldLineItems:       4,
		model.FieldVendorAddress:   3,
		model.FieldCustomerAddress: 3,
		model.FieldEmail:           3,
		model.FieldWebsite:         2,
	}
	c.Critical = []CriticalField{
		{Field: model.FieldTotalAmount, Penalty: 30, RequireValid: true, NonZero: true},
		{Field: model.FieldCurrency, Penalty: 25, RequireValid: true},
		{Field: model.FieldVendorName, Penalty: 20},
		{Field: model.FieldInvoiceDate, Penalty: 15, Alternates: []model.Field{model.FieldDueDate}},
	}
	c.ImportantOptional = []OptionalField{
		{Field: model.FieldInvoiceNumber, Penalty: 5},
	}
	return c
}

// Receipt returns the built-in receipt class.
func Receipt() Config {
	c := base("receipt")
	c.Fields = []model.Field{
		model.FieldDocumentType,
		model.FieldDate,
		model.FieldCurrency,
		model.FieldTotalAmount,
		model.FieldSubtotalAmount,
		model.FieldTaxAmount,
		model.FieldTaxRate,
		model.FieldTaxType,
		model.FieldStoreName,
		model.FieldWebsite,
		model.FieldPaymentMethod,
		model.FieldLineItems,
		model.FieldCashierName,
		model.FieldEmail,
		model.FieldRegisterNumber,
		model.FieldLanguage,
	}
	c.NameField = model.FieldStoreName
	c.NameMinLength = 3
	c.FieldPriority = map[model.Field]int{
		model.FieldTotalAmount:    10,
		model.FieldStoreName:      9,
		model.FieldCurrency:       9,
		model.FieldDate:           8,
		model.FieldTaxAmount:      8,
		model.FieldSubtotalAmount: 6,
		model.FieldTaxRate:        6,
		model.FieldPaymentMethod:  4,
		model.FieldLineItems:      4,
		model.FieldWebsite:        2,
	}
	c.Critical = []CriticalField{
		{Field: model.FieldTotalAmount, Penalty: 30, RequireValid: true, NonZero: true},
		{Field: model.FieldCurrency, Penalty: 25, RequireValid: true},
		{Field: model.FieldStoreName, Penalty: 20},
		{Field: model.FieldDate, Penalty: 15},
		{Field: model.FieldTaxAmount, Penalty: 10},
	}
	return c
}
