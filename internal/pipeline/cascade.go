package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/invoker"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

// TierAttempt is one tier's final failure within a cascade.
type TierAttempt struct {
	Tier     string
	Provider string
	Err      error
}

// AllTiersExhaustedError is returned when every tier of a cascade failed.
// It unwraps to the last tier's error.
type AllTiersExhaustedError struct {
	Tiers []TierAttempt
}

func (e *AllTiersExhaustedError) Error() string {
	parts := make([]string, len(e.Tiers))
	for i, a := range e.Tiers {
		parts[i] = fmt.Sprintf("%s (%s): %v", a.Tier, a.Provider, a.Err)
	}
	return "pipeline: all tiers exhausted: " + strings.Join(parts, "; ")
}

func (e *AllTiersExhaustedError) Unwrap() error {
	if len(e.Tiers) == 0 {
		return nil
	}
	return e.Tiers[len(e.Tiers)-1].Err
}

// TierNames lists the exhausted tiers in order.
func (e *AllTiersExhaustedError) TierNames() []string {
	out := make([]string, len(e.Tiers))
	for i, a := range e.Tiers {
		out[i] = a.Tier
	}
	return out
}

// IsAllTiersExhausted reports whether err is an AllTiersExhaustedError.
func IsAllTiersExhausted(err error) bool {
	var ate *AllTiersExhaustedError
	return errors.As(err, &ate)
}

// cascade tries call against each tier in order and returns the first
// success with the name of the tier that produced it. Each tier retries
// transient failures on its own budget inside the invoker; any failure that
// survives those retries moves on to the next tier.
func (r *run) cascade(ctx context.Context, tiers []docclass.TierConfig, call invoker.Call) (model.Record, string, error) {
	exhausted := &AllTiersExhaustedError{}
	for _, tier := range tiers {
		call.Tier = tier
		rec, err := r.e.invoker.Invoke(ctx, call)
		if err == nil {
			return rec, tier.Name, nil
		}

		exhausted.Tiers = append(exhausted.Tiers, TierAttempt{Tier: tier.Name, Provider: tier.Provider, Err: err})
		r.log.Warn("pipeline: tier failed",
			zap.Int("pass", call.Pass),
			zap.String("tier", tier.Name),
			zap.String("provider", tier.Provider),
			zap.String("kind", string(resilience.Classify(err))),
			zap.Strings("fields", fieldNames(call.Fields)),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			break
		}
	}
	return model.Record{}, "", exhausted
}
