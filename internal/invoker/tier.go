package invoker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/docextract/internal/cost"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/schema"
	"github.com/sells-group/docextract/internal/telemetry"
)

// Default per-tier request rate.
const (
	DefaultRate  = rate.Limit(4)
	DefaultBurst = 8
)

// TierInvoker dispatches calls to the backend named by each tier's
// provider. Every tier gets its own adaptive limiter and circuit breaker.
type TierInvoker struct {
	backends map[string]Backend
	calc     *cost.Calculator
	sink     telemetry.Sink
	breakers *resilience.TierBreakers

	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// Option configures a TierInvoker.
type Option func(*TierInvoker)

// WithCalculator sets the cost calculator used for telemetry.
func WithCalculator(c *cost.Calculator) Option {
	return func(t *TierInvoker) { t.calc = c }
}

// WithSink sets the telemetry sink for per-attempt events.
func WithSink(s telemetry.Sink) Option {
	return func(t *TierInvoker) { t.sink = s }
}

// WithBreakers replaces the per-tier circuit breakers.
func WithBreakers(b *resilience.TierBreakers) Option {
	return func(t *TierInvoker) { t.breakers = b }
}

// WithRate sets the initial per-tier request rate.
func WithRate(r rate.Limit, burst int) Option {
	return func(t *TierInvoker) {
		if r > 0 {
			t.rate = r
		}
		if burst > 0 {
			t.burst = burst
		}
	}
}

// NewTierInvoker builds an invoker over backends keyed by provider name.
func NewTierInvoker(backends map[string]Backend, opts ...Option) *TierInvoker {
	t := &TierInvoker{
		backends: make(map[string]Backend, len(backends)),
		calc:     cost.NewCalculator(nil),
		sink:     telemetry.Nop{},
		rate:     DefaultRate,
		burst:    DefaultBurst,
		limiters: make(map[string]*AdaptiveLimiter),
	}
	for name, b := range backends {
		if b != nil {
			t.backends[strings.ToLower(name)] = b
		}
	}
	for _, o := range opts {
		o(t)
	}
	if t.breakers == nil {
		t.breakers = resilience.NewTierBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return t
}

// Providers lists the configured provider names.
func (t *TierInvoker) Providers() []string {
	out := make([]string, 0, len(t.backends))
	for name := range t.backends {
		out = append(out, name)
	}
	return out
}

// Breakers exposes circuit states for health reporting.
func (t *TierInvoker) Breakers() *resilience.TierBreakers {
	return t.breakers
}

// Invoke runs call against its tier with per-attempt timeout, retry on
// transient failures, and schema validation of the response.
func (t *TierInvoker) Invoke(ctx context.Context, call Call) (model.Record, error) {
	provider := strings.ToLower(call.Tier.Provider)
	backend, ok := t.backends[provider]
	if !ok {
		return model.Record{}, resilience.NewPermanentError(
			eris.Errorf("invoker: no backend for provider %q (tier %s)", call.Tier.Provider, call.Tier.Name),
			ReasonUnconfigured)
	}

	cb := t.breakers.Get(call.Tier.Name)
	limiter := t.limiter(call.Tier.Name)

	req := Request{
		System:   SystemPrompt,
		Prompt:   call.Prompt,
		Document: call.Document,
		Text:     call.TextOverride,
		Tier:     call.Tier,
	}
	if len(call.Fields) > 0 {
		req.Schema = schema.ForFields(call.Fields...)
	} else {
		req.Schema = schema.ForClass(call.Class)
	}

	retry := resilience.ForCall(call.Retries, call.RetryBase, resilience.LogRetries(call.ExtractionID, call.Tier.Name))

	rec, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.Record, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (model.Record, error) {
			return t.attempt(ctx, backend, limiter, call, req)
		})
	})
	if err != nil {
		return model.Record{}, resilience.Normalize(err)
	}
	return rec, nil
}

func (t *TierInvoker) attempt(ctx context.Context, backend Backend, limiter *AdaptiveLimiter, call Call, req Request) (model.Record, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	start := time.Now()
	ev := telemetry.Event{
		ExtractionID: call.ExtractionID,
		Class:        call.Class.Name,
		Pass:         call.Pass,
		Tier:         call.Tier.Name,
		Provider:     backend.Name(),
		Fields:       call.Fields,
	}
	fail := func(err error) (model.Record, error) {
		ev.Outcome = telemetry.OutcomeFailure
		ev.Err = err.Error()
		ev.Duration = time.Since(start)
		ev.Time = time.Now()
		t.sink.Emit(ev)
		return model.Record{}, err
	}

	if err := limiter.Wait(ctx); err != nil {
		return fail(resilience.NewTransientError(eris.Wrap(err, "invoker: rate limiter"), 0))
	}

	resp, err := backend.Generate(ctx, req)
	if err != nil {
		err = resilience.Normalize(err)
		if resilience.Classify(err) == resilience.KindRateLimit {
			limiter.OnRateLimit()
		}
		return fail(err)
	}
	limiter.OnSuccess()

	ev.CostUSD = t.calc.Estimate(backend.Name(), call.Tier.Model, resp.Usage)

	cls := call.Class
	if len(call.Fields) > 0 {
		cls.Fields = call.Fields
	}
	rec, err := schema.Decode(resp.Text, cls)
	if err != nil {
		return fail(err)
	}

	ev.Outcome = telemetry.OutcomeSuccess
	ev.Duration = time.Since(start)
	ev.Time = time.Now()
	t.sink.Emit(ev)
	return rec, nil
}

func (t *TierInvoker) limiter(tier string) *AdaptiveLimiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[tier]
	if !ok {
		l = NewAdaptiveLimiter(tier, t.rate, t.burst)
		t.limiters[tier] = l
	}
	return l
}
