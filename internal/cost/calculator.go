package cost

import "strings"

// Usage is the token consumption of one model call.
type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int64 `json:"cache_read_tokens,omitempty"`
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + o.InputTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
		CacheWriteTokens: u.CacheWriteTokens + o.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens + o.CacheReadTokens,
	}
}

// Rates holds per-provider, per-model pricing configuration.
type Rates map[string]map[string]ModelRate

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates. Missing providers
// and models fall back to DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	merged := DefaultRates()
	for provider, models := range rates {
		provider = strings.ToLower(provider)
		if merged[provider] == nil {
			merged[provider] = make(map[string]ModelRate, len(models))
		}
		for model, r := range models {
			merged[provider][strings.ToLower(model)] = r
		}
	}
	return &Calculator{rates: merged}
}

// Rate returns the pricing for a provider model. Model names match exactly
// or by prefix, so dated snapshots share their family's rate.
func (c *Calculator) Rate(provider, model string) (ModelRate, bool) {
	models, ok := c.rates[strings.ToLower(provider)]
	if !ok {
		return ModelRate{}, false
	}
	model = strings.ToLower(model)
	if r, ok := models[model]; ok {
		return r, true
	}
	best, bestLen := ModelRate{}, 0
	for name, r := range models {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = r, len(name)
		}
	}
	return best, bestLen > 0
}

// Estimate computes the USD cost of a call. Unknown models cost 0.
func (c *Calculator) Estimate(provider, model string, u Usage) float64 {
	rate, ok := c.Rate(provider, model)
	if !ok {
		return 0
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheWriteTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		"anthropic": {
			"claude-haiku-4-5":  {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"claude-sonnet-4-5": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"claude-opus-4":     {Input: 15.00, Output: 75.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
		"gemini": {
			"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
			"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
		},
		"openai": {
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4o":      {Input: 2.50, Output: 10.00},
		},
		"mistral": {
			"mistral-medium": {Input: 0.40, Output: 2.00},
			"mistral-small":  {Input: 0.10, Output: 0.30},
		},
	}
}
