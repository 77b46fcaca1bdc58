package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		"anthropic": {
			"haiku":  {Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"sonnet": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
		"openai": {
			"gpt-4o": {Input: 2.50, Output: 10.00},
		},
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		provider string
		model    string
		usage    Usage
		want     float64
	}{
		{
			name: "haiku simple", provider: "anthropic", model: "haiku",
			usage: Usage{InputTokens: 1000000, OutputTokens: 100000},
			want:  0.80 + 0.40,
		},
		{
			name: "haiku with cache", provider: "anthropic", model: "haiku",
			usage: Usage{InputTokens: 500000, OutputTokens: 50000, CacheWriteTokens: 200000, CacheReadTokens: 300000},
			// in 0.40, out 0.20, cache write 0.20, cache read 0.024
			want: 0.40 + 0.20 + 0.20 + 0.024,
		},
		{
			name: "provider is case insensitive", provider: "OpenAI", model: "GPT-4o",
			usage: Usage{InputTokens: 1000000},
			want:  2.50,
		},
		{
			name: "dated snapshot matches family prefix", provider: "openai", model: "gpt-4o-2024-08-06",
			usage: Usage{OutputTokens: 1000000},
			want:  10.00,
		},
		{
			name: "longest prefix wins", provider: "openai", model: "gpt-4o-mini-2024-07-18",
			usage: Usage{InputTokens: 1000000},
			want:  0.15,
		},
		{
			name: "defaults fill other providers", provider: "gemini", model: "gemini-2.5-flash",
			usage: Usage{InputTokens: 1000000, OutputTokens: 1000000},
			want:  0.30 + 2.50,
		},
		{
			name: "unknown model", provider: "anthropic", model: "mystery",
			usage: Usage{InputTokens: 1000000},
			want:  0,
		},
		{
			name: "unknown provider", provider: "local", model: "llama",
			usage: Usage{InputTokens: 1000000},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Estimate(tt.provider, tt.model, tt.usage), 1e-9)
		})
	}
}

func TestNewCalculator_OverridesDefaults(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(Rates{"gemini": {"gemini-2.5-flash": {Input: 1, Output: 1}}})
	r, ok := calc.Rate("gemini", "gemini-2.5-flash")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, r.Input, 1e-9)

	_, ok = calc.Rate("gemini", "gemini-2.5-pro")
	assert.True(t, ok)
}

func TestUsage_Add(t *testing.T) {
	t.Parallel()

	got := Usage{InputTokens: 1, OutputTokens: 2}.Add(Usage{InputTokens: 3, CacheReadTokens: 4})
	assert.Equal(t, Usage{InputTokens: 4, OutputTokens: 2, CacheReadTokens: 4}, got)
}
