package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	gapi "google.golang.org/api/option"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/cost"
	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/invoker"
	"github.com/sells-group/docextract/internal/ocr"
	"github.com/sells-group/docextract/internal/pipeline"
	"github.com/sells-group/docextract/internal/prompt"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/telemetry"
	anthropicpkg "github.com/sells-group/docextract/pkg/anthropic"
)

// extractEnv holds the initialized backends, class registry and extractor
// needed by the extract/batch/serve commands.
type extractEnv struct {
	Classes   *docclass.Registry
	Extractor *pipeline.Extractor
	Invoker   *invoker.TierInvoker
	Stats     *telemetry.Stats

	async  *telemetry.Async
	gemini *invoker.GeminiBackend
}

// Close flushes telemetry and releases backend clients.
func (e *extractEnv) Close() {
	if e.async != nil {
		e.async.Close()
		if n := e.async.Dropped(); n > 0 {
			zap.L().Warn("telemetry events dropped", zap.Int64("dropped", n))
		}
	}
	if e.gemini != nil {
		_ = e.gemini.Close()
	}
}

// initExtractor validates the config for mode, loads document classes, and
// builds the tier invoker and extractor. Callers should defer env.Close().
func initExtractor(ctx context.Context, mode string) (*extractEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	classes, err := loadClasses(cfg)
	if err != nil {
		return nil, err
	}

	env := &extractEnv{Classes: classes, Stats: telemetry.NewStats()}

	backends, err := env.initBackends(ctx, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	// Stats stays synchronous so summaries are exact; log and webhook
	// delivery happen off the extraction path.
	downstream := telemetry.Multi{telemetry.NewZapSink(zap.L())}
	if cfg.Telemetry.WebhookURL != "" {
		downstream = append(downstream, telemetry.NewWebhook(cfg.Telemetry.WebhookURL,
			time.Duration(cfg.Telemetry.WebhookSecs)*time.Second))
	}
	env.async = telemetry.NewAsync(downstream, cfg.Telemetry.Buffer)
	sink := telemetry.Multi{env.Stats, env.async}

	cbCfg := resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	cbCfg.OnStateChange = func(tier string, from, to resilience.CircuitState) {
		zap.L().Warn("tier circuit state changed",
			zap.String("tier", tier),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	env.Invoker = invoker.NewTierInvoker(backends,
		invoker.WithCalculator(cost.NewCalculator(cfg.Pricing)),
		invoker.WithSink(sink),
		invoker.WithBreakers(resilience.NewTierBreakers(cbCfg)),
		invoker.WithRate(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst),
	)

	var text ocr.Extractor
	if cfg.Extraction.TextFallback {
		text, err = ocr.NewExtractor(cfg.OCR, cfg.Mistral.Key)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	env.Extractor = pipeline.New(env.Invoker, prompt.NewDefault(), text, sink)

	zap.L().Info("extractor ready",
		zap.Strings("classes", classes.Names()),
		zap.Strings("providers", env.Invoker.Providers()),
		zap.Bool("text_fallback", text != nil),
	)
	return env, nil
}

// initBackends creates a backend for every provider with credentials.
func (e *extractEnv) initBackends(ctx context.Context, c *config.Config) (map[string]invoker.Backend, error) {
	backends := make(map[string]invoker.Backend)

	if c.Anthropic.Key != "" {
		var opts []option.RequestOption
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.Anthropic.BaseURL))
		}
		backends[invoker.ProviderAnthropic] = invoker.NewAnthropicBackend(anthropicpkg.NewClient(c.Anthropic.Key, opts...))
	}

	if c.Gemini.Key != "" {
		var opts []gapi.ClientOption
		if c.Gemini.BaseURL != "" {
			opts = append(opts, gapi.WithEndpoint(c.Gemini.BaseURL))
		}
		g, err := invoker.NewGeminiBackend(ctx, c.Gemini.Key, opts...)
		if err != nil {
			return nil, err
		}
		e.gemini = g
		backends[invoker.ProviderGemini] = g
	}

	if c.OpenAI.Key != "" {
		backends[invoker.ProviderOpenAI] = invoker.NewOpenAIBackend(invoker.ProviderOpenAI, c.OpenAI.Key, c.OpenAI.BaseURL)
	}

	if c.Mistral.Key != "" {
		backends[invoker.ProviderMistral] = invoker.NewMistralBackend(c.Mistral.Key, c.Mistral.BaseURL)
	}

	if len(backends) == 0 {
		return nil, eris.New("no model provider configured")
	}
	return backends, nil
}

// loadClasses builds the class registry from the built-ins, the optional
// profile file, and the global overrides in c.
func loadClasses(c *config.Config) (*docclass.Registry, error) {
	reg := docclass.Defaults()
	if c.Extraction.ClassesFile != "" {
		loaded, err := docclass.LoadFile(c.Extraction.ClassesFile, reg)
		if err != nil {
			return nil, err
		}
		reg = loaded
	}

	out := docclass.NewRegistry()
	var errs []error
	reg.Each(func(class docclass.Config) {
		applyOverrides(&class, c)
		if err := class.Validate(); err != nil {
			errs = append(errs, err)
			return
		}
		out.Register(class)
	})
	if len(errs) > 0 {
		return nil, errs[0]
	}

	if _, err := out.Get(c.Extraction.DefaultClass); err != nil {
		return nil, eris.Wrap(err, "extraction.default_class")
	}
	return out, nil
}

func applyOverrides(class *docclass.Config, c *config.Config) {
	if len(c.Extraction.Tiers) > 0 {
		tiers := make([]docclass.TierConfig, len(c.Extraction.Tiers))
		for i, t := range c.Extraction.Tiers {
			tiers[i] = docclass.TierConfig{
				Name:        t.Name,
				Provider:    t.Provider,
				Model:       t.Model,
				Temperature: t.Temperature,
				MaxTokens:   t.MaxTokens,
			}
		}
		class.Tiers = tiers
	}
	if c.Extraction.QualityThreshold > 0 {
		class.QualityThreshold = c.Extraction.QualityThreshold
	}
	if c.Retry.Retries > 0 {
		class.Retries = c.Retry.Retries
	}
	if c.Retry.BaseDelayMs > 0 {
		class.RetryBaseDelay = time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
	}
}
