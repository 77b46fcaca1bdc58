//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/docclass"
)

func TestFormatClasses(t *testing.T) {
	var buf bytes.Buffer
	formatClasses(&buf, docclass.Defaults(), "invoice")

	out := buf.String()
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "invoice (default)")
	assert.Contains(t, out, "receipt")
	assert.Contains(t, out, "total_amount")
	assert.Contains(t, out, "primary=anthropic/"+docclass.DefaultAnthropicModel)
}

func TestLoadClasses_Overrides(t *testing.T) {
	c := &config.Config{}
	c.Extraction.DefaultClass = "receipt"
	c.Extraction.QualityThreshold = 85
	c.Extraction.Tiers = []config.TierConfig{
		{Name: "primary", Provider: "mistral", Model: "mistral-medium-latest", MaxTokens: 2048},
	}
	c.Retry.Retries = 4
	c.Retry.BaseDelayMs = 250

	reg, err := loadClasses(c)
	require.NoError(t, err)

	for _, name := range []string{"invoice", "receipt"} {
		class, err := reg.Get(name)
		require.NoError(t, err)
		assert.Equal(t, 85, class.QualityThreshold)
		require.Len(t, class.Tiers, 1)
		assert.Equal(t, "mistral", class.Tiers[0].Provider)
		assert.Equal(t, 4, class.Retries)
		assert.Equal(t, 250*time.Millisecond, class.RetryBaseDelay)
	}
}

func TestLoadClasses_UnknownDefault(t *testing.T) {
	c := &config.Config{}
	c.Extraction.DefaultClass = "payslip"
	_, err := loadClasses(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_class")
}

func TestLoadClasses_ProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes:\n  invoice:\n    quality_threshold: 90\n"), 0o644))

	c := &config.Config{}
	c.Extraction.DefaultClass = "invoice"
	c.Extraction.ClassesFile = path

	reg, err := loadClasses(c)
	require.NoError(t, err)
	class, err := reg.Get("invoice")
	require.NoError(t, err)
	assert.Equal(t, 90, class.QualityThreshold)
}
