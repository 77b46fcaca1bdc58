package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml or .env is found
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.MaxUploadMB)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 3, cfg.Batch.DLQRetries)
	assert.Equal(t, "local", cfg.OCR.Provider)
	assert.Equal(t, "pdftotext", cfg.OCR.PdfToTextPath)
	assert.Equal(t, "mistral-ocr-latest", cfg.OCR.MistralModel)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.Mistral.BaseURL)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.ResetTimeoutSecs)
	assert.InDelta(t, 4.0, cfg.RateLimit.PerSecond, 0.001)
	assert.Equal(t, 8, cfg.RateLimit.Burst)
	assert.Equal(t, "invoice", cfg.Extraction.DefaultClass)
	assert.Zero(t, cfg.Extraction.QualityThreshold)
	assert.True(t, cfg.Extraction.TextFallback)
	assert.Equal(t, 256, cfg.Telemetry.Buffer)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  concurrency: 10
extraction:
  default_class: receipt
  quality_threshold: 80
  tiers:
    - name: primary
      provider: anthropic
      model: claude-haiku-4-5
      max_tokens: 2048
    - name: secondary
      provider: mistral
      model: mistral-small-latest
pricing:
  mistral:
    mistral-small:
      input: 0.2
      output: 0.6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	assert.Equal(t, "receipt", cfg.Extraction.DefaultClass)
	assert.Equal(t, 80, cfg.Extraction.QualityThreshold)
	require.Len(t, cfg.Extraction.Tiers, 2)
	assert.Equal(t, "claude-haiku-4-5", cfg.Extraction.Tiers[0].Model)
	assert.Equal(t, 2048, cfg.Extraction.Tiers[0].MaxTokens)
	assert.InDelta(t, 0.2, cfg.Pricing["mistral"]["mistral-small"].Input, 0.001)
	assert.Equal(t, []string{"anthropic", "mistral"}, cfg.Providers())
	// Defaults still apply for unset values
	assert.Equal(t, "local", cfg.OCR.Provider)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("DOCEXTRACT_LOG_LEVEL", "warn")
	t.Setenv("DOCEXTRACT_ANTHROPIC_KEY", "sk-ant-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-env", cfg.Anthropic.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCEXTRACT_SERVER_PORT=3000\n"), 0o644))
	// godotenv sets the variable process-wide; register cleanup via Setenv.
	t.Setenv("DOCEXTRACT_SERVER_PORT", "")
	require.NoError(t, os.Unsetenv("DOCEXTRACT_SERVER_PORT"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 32
	cfg.Batch.Concurrency = 4
	cfg.OCR.Provider = "local"
	cfg.Anthropic.Key = "sk-ant"
	cfg.Gemini.Key = "gm"
	cfg.OpenAI.Key = "sk-oa"
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"extract", "batch", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_MissingKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""
	cfg.OpenAI.Key = ""

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "openai.key is required")
	assert.NotContains(t, err.Error(), "gemini.key")
}

func TestValidate_CustomTiers(t *testing.T) {
	cfg := &Config{}
	cfg.Mistral.Key = "ms"
	cfg.Extraction.Tiers = []TierConfig{{Name: "primary", Provider: "Mistral", Model: "mistral-medium-latest"}}
	assert.NoError(t, cfg.Validate("extract"))

	cfg.Extraction.Tiers = append(cfg.Extraction.Tiers, TierConfig{Name: "secondary", Provider: "cohere", Model: "x"})
	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider cohere")

	cfg.Extraction.Tiers = []TierConfig{{Provider: "mistral"}}
	err = cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name and model are required")
}

func TestValidate_Serve(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_BatchConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 64")

	cfg.Batch.Concurrency = 65
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.Concurrency = 64
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidate_QualityThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Extraction.QualityThreshold = 101

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality_threshold")
}

func TestValidate_OCR(t *testing.T) {
	cfg := validDefaults()
	cfg.OCR.Provider = "mistral"
	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral.key is required")

	cfg.Mistral.Key = "ms"
	assert.NoError(t, cfg.Validate("extract"))

	cfg.OCR.Provider = "tesseract"
	assert.Error(t, cfg.Validate("extract"))
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
