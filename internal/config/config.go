package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/docextract/internal/cost"
)

// EnvPrefix prefixes every environment override, e.g. DOCEXTRACT_LOG_LEVEL.
const EnvPrefix = "DOCEXTRACT"

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Anthropic  ProviderConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     ProviderConfig   `yaml:"gemini" mapstructure:"gemini"`
	OpenAI     ProviderConfig   `yaml:"openai" mapstructure:"openai"`
	Mistral    ProviderConfig   `yaml:"mistral" mapstructure:"mistral"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" mapstructure:"telemetry"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	DLQPath     string `yaml:"dlq_path" mapstructure:"dlq_path"`
	DLQRetries  int    `yaml:"dlq_retries" mapstructure:"dlq_retries"`
}

// ProviderConfig holds credentials for one model provider.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OCRConfig configures PDF text extraction for the text fallback.
type OCRConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath   string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralModel    string `yaml:"mistral_model" mapstructure:"mistral_model"`
	MistralEndpoint string `yaml:"mistral_endpoint" mapstructure:"mistral_endpoint"`
}

// RetryConfig overrides the per-class tier retry budget when set.
type RetryConfig struct {
	Retries     int `yaml:"retries" mapstructure:"retries"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
}

// CircuitConfig configures the per-tier circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RateLimitConfig sets the initial per-tier request rate.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// TierConfig overrides one tier of every class's cascade.
type TierConfig struct {
	Name        string  `yaml:"name" mapstructure:"name"`
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ExtractionConfig configures the extraction pipeline.
type ExtractionConfig struct {
	ClassesFile      string       `yaml:"classes_file" mapstructure:"classes_file"`
	DefaultClass     string       `yaml:"default_class" mapstructure:"default_class"`
	QualityThreshold int          `yaml:"quality_threshold" mapstructure:"quality_threshold"`
	TextFallback     bool         `yaml:"text_fallback" mapstructure:"text_fallback"`
	Tiers            []TierConfig `yaml:"tiers" mapstructure:"tiers"`
}

// TelemetryConfig configures the event sinks.
type TelemetryConfig struct {
	Buffer      int    `yaml:"buffer" mapstructure:"buffer"`
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookSecs int    `yaml:"webhook_timeout_secs" mapstructure:"webhook_timeout_secs"`
}

// defaultProviders is the provider of each built-in tier, in cascade order.
var defaultProviders = []string{"anthropic", "gemini", "openai"}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.dlq_retries", 3)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("mistral.key", "")
	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("retry.retries", 0)
	v.SetDefault("retry.base_delay_ms", 0)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("rate_limit.per_second", 4.0)
	v.SetDefault("rate_limit.burst", 8)
	v.SetDefault("extraction.default_class", "invoice")
	v.SetDefault("extraction.quality_threshold", 0)
	v.SetDefault("extraction.text_fallback", true)
	v.SetDefault("telemetry.buffer", 256)
	v.SetDefault("telemetry.webhook_url", "")
	v.SetDefault("telemetry.webhook_timeout_secs", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Providers returns the distinct providers the configured cascade uses, in
// tier order.
func (c *Config) Providers() []string {
	if len(c.Extraction.Tiers) == 0 {
		return append([]string(nil), defaultProviders...)
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.Extraction.Tiers {
		p := strings.ToLower(t.Provider)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Provider returns the credentials for a provider name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch strings.ToLower(name) {
	case "anthropic":
		return c.Anthropic, true
	case "gemini":
		return c.Gemini, true
	case "openai":
		return c.OpenAI, true
	case "mistral":
		return c.Mistral, true
	}
	return ProviderConfig{}, false
}

// Validate checks the configuration for the given command mode: "extract",
// "batch" or "serve". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract":
	case "batch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
			errs = append(errs, "batch.concurrency must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	for _, p := range c.Providers() {
		pc, ok := c.Provider(p)
		if !ok {
			errs = append(errs, "extraction.tiers: unknown provider "+p)
			continue
		}
		if pc.Key == "" {
			errs = append(errs, p+".key is required")
		}
	}
	for _, t := range c.Extraction.Tiers {
		if t.Name == "" || t.Model == "" {
			errs = append(errs, "extraction.tiers: name and model are required for every tier")
			break
		}
	}

	if c.Extraction.QualityThreshold < 0 || c.Extraction.QualityThreshold > 100 {
		errs = append(errs, "extraction.quality_threshold must be between 0 and 100")
	}

	switch c.OCR.Provider {
	case "", "local":
	case "mistral":
		if c.Mistral.Key == "" {
			errs = append(errs, "mistral.key is required for ocr.provider mistral")
		}
	default:
		errs = append(errs, "ocr.provider must be local or mistral")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
