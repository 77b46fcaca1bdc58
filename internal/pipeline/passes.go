package pipeline

import (
	"context"
	"errors"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docextract/internal/consistency"
	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/format"
	"github.com/sells-group/docextract/internal/invoker"
	"github.com/sells-group/docextract/internal/merge"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/prompt"
	"github.com/sells-group/docextract/internal/quality"
)

// textFallbackTier is the label used for a failed text extraction.
const textFallbackTier = "text_fallback"

func (r *run) call(pass int, p string) invoker.Call {
	c := invoker.Call{
		ExtractionID: r.id,
		Pass:         pass,
		Class:        r.cfg,
		Document:     &r.doc,
		Prompt:       p,
		Timeout:      r.cfg.Timeout,
		Retries:      r.cfg.Retries,
		RetryBase:    r.cfg.RetryBaseDelay,
	}
	if r.text != "" {
		c.TextOverride = r.text
		c.Prompt = prompt.WithTextFallback(p)
	}
	return c
}

// laterTiers returns the tiers used by the repair passes: everything after
// the primary tier, or the primary alone when it is the only one.
func (r *run) laterTiers() []docclass.TierConfig {
	if len(r.cfg.Tiers) > 1 {
		return r.cfg.Tiers[1:]
	}
	return r.cfg.Tiers
}

// pass1 cascades through every tier. A PDF that defeats every tier gets one
// more chance as extracted text on the secondary tier.
func (r *run) pass1(ctx context.Context) (model.Record, error) {
	start := r.e.now()
	p := prompt.Compose(r.e.prompts.Build(r.cfg, prompt.Options{CompanyName: r.opts.CompanyName}), false)

	rec, tier, err := r.cascade(ctx, r.cfg.Tiers, r.call(1, p))
	if err != nil && r.doc.IsPDF() && r.e.text != nil {
		r.log.Warn("pipeline: all tiers failed on PDF, trying text fallback", zap.Error(err))
		rec, tier, err = r.textFallback(ctx, p, err)
	}
	if err != nil {
		r.track(1, start, model.PassResult{}, err)
		return model.Record{}, err
	}

	r.result.Tier = tier
	qs := r.scorer.Score(rec, r.cfg)
	r.track(1, start, model.PassResult{Tier: tier, Score: qs.Score}, nil)
	return rec, nil
}

func (r *run) textFallback(ctx context.Context, p string, cause error) (model.Record, string, error) {
	exhausted := &AllTiersExhaustedError{}
	_ = errors.As(cause, &exhausted)

	text, err := r.e.text.ExtractText(ctx, r.doc)
	if err != nil {
		exhausted.Tiers = append(exhausted.Tiers, TierAttempt{Tier: textFallbackTier, Provider: "ocr", Err: err})
		return model.Record{}, "", exhausted
	}

	r.text = text
	tier := r.laterTiers()[0]
	rec, name, err := r.cascade(ctx, []docclass.TierConfig{tier}, r.call(1, p))
	if err != nil {
		r.text = ""
		var again *AllTiersExhaustedError
		if errors.As(err, &again) {
			for _, a := range again.Tiers {
				a.Tier += " (" + textFallbackTier + ")"
				exhausted.Tiers = append(exhausted.Tiers, a)
			}
		}
		return model.Record{}, "", exhausted
	}

	r.result.TextFallback = true
	r.log.Info("pipeline: text fallback succeeded", zap.String("tier", name))
	return rec, name, nil
}

// pass2 re-extracts with format hints and step-by-step reasoning on the
// later tiers, then merges with the Pass 1 record by confidence.
func (r *run) pass2(ctx context.Context, rec model.Record, qs model.QualityScore) (model.Record, model.QualityScore) {
	start := r.e.now()
	if len(r.cfg.Tiers) < 2 {
		r.track(2, start, model.PassResult{Status: model.PassStatusSkipped, Score: qs.Score}, nil)
		return rec, qs
	}

	detected := format.Detect(rec)
	p := prompt.Compose(r.e.prompts.Build(r.cfg, prompt.Options{
		CompanyName:    r.opts.CompanyName,
		Format:         &detected,
		ChainOfThought: true,
	}), true)

	cot, tier, err := r.cascade(ctx, r.cfg.Tiers[1:], r.call(2, p))
	if err != nil {
		r.track(2, start, model.PassResult{Score: qs.Score}, err)
		return rec, qs
	}

	cotScore := r.scorer.Score(cot, r.cfg)
	pConf := quality.Confidence(rec, qs, r.cfg)
	sConf := quality.Confidence(cot, cotScore, r.cfg)
	r.log.Debug("pipeline: pass 2 confidence",
		zap.Float64("primary", pConf),
		zap.Float64("secondary", sConf),
	)

	merged := merge.Merge(rec, cot, pConf, sConf, r.cfg)
	mergedScore := r.scorer.Score(merged, r.cfg)
	r.track(2, start, model.PassResult{Tier: tier, Score: mergedScore.Score}, nil)
	return merged, mergedScore
}

type fieldOutcome struct {
	field model.Field
	rec   model.Record
	tier  string
	err   error
}

// pass3 re-extracts each missing or invalid field with its own narrow call.
// Critical fields go in a first wave and the rest in a second; within a
// wave every call is independent and a failure leaves only its field empty.
func (r *run) pass3(ctx context.Context, rec model.Record, qs model.QualityScore) model.Record {
	start := r.e.now()
	fields := quality.FieldsToRepair(qs)
	fields = slices.DeleteFunc(fields, func(f model.Field) bool { return !r.cfg.HasField(f) })
	if len(fields) == 0 {
		r.track(3, start, model.PassResult{Status: model.PassStatusSkipped, Score: qs.Score}, nil)
		return rec
	}

	slices.SortStableFunc(fields, func(a, b model.Field) int {
		return r.cfg.Priority(b) - r.cfg.Priority(a)
	})
	split := slices.IndexFunc(fields, func(f model.Field) bool {
		return r.cfg.Priority(f) < r.cfg.CriticalPriority
	})
	if split < 0 {
		split = len(fields)
	}
	critical, other := fields[:split], fields[split:]

	detected := format.Detect(rec)
	needsRepair := make(map[model.Field]bool, len(fields))
	for _, f := range fields {
		needsRepair[f] = true
	}

	var filled []model.Field
	for i, wave := range [][]model.Field{critical, other} {
		if len(wave) == 0 {
			continue
		}
		outcomes := r.repairWave(ctx, wave, detected, i == 0)

		patch := model.Record{}
		for _, o := range outcomes {
			if o.err != nil {
				continue
			}
			if v := o.rec.Get(o.field); !v.IsZero() {
				patch = patch.With(o.field, v)
			}
		}

		now, base := r.e.now(), rec
		var got []model.Field
		rec, got = merge.FillGaps(base, patch, func(f model.Field) bool {
			return !needsRepair[f] && quality.Usable(base, f, r.cfg, now)
		})
		filled = append(filled, got...)
	}

	after := r.scorer.Score(rec, r.cfg)
	r.log.Info("pipeline: field repair settled",
		zap.Strings("requested", fieldNames(fields)),
		zap.Strings("filled", fieldNames(filled)),
	)
	var err error
	if len(filled) == 0 {
		err = eris.Errorf("pipeline: no field of %d repaired", len(fields))
	}
	r.track(3, start, model.PassResult{Score: after.Score, Fields: filled}, err)
	return rec
}

// repairWave fans out one call per field and waits for all of them. Each
// task writes only its own slot and never returns an error, so siblings are
// never cancelled.
func (r *run) repairWave(ctx context.Context, wave []model.Field, detected model.DocumentFormat, critical bool) []fieldOutcome {
	outcomes := make([]fieldOutcome, len(wave))
	timeout := r.cfg.FieldTimeoutOther
	if critical {
		timeout = r.cfg.FieldTimeoutCritical
	}

	var g errgroup.Group
	if r.cfg.FieldConcurrency > 0 {
		g.SetLimit(r.cfg.FieldConcurrency)
	}
	for i, f := range wave {
		g.Go(func() error {
			p := prompt.WithHints(r.e.prompts.ForField(r.cfg, f, r.opts.CompanyName), format.HintsForField(f, detected))
			c := r.call(3, p)
			c.Fields = []model.Field{f}
			c.Timeout = timeout
			c.Retries = r.cfg.FieldRetries
			c.RetryBase = r.cfg.FieldRetryBaseDelay

			rec, tier, err := r.cascade(ctx, r.laterTiers(), c)
			outcomes[i] = fieldOutcome{field: f, rec: rec, tier: tier, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// pass4 applies consistency fixes to absent or invalid fields and returns
// the issues that remain afterwards.
func (r *run) pass4(rec model.Record) (model.Record, []model.ConsistencyIssue) {
	start := r.e.now()
	report := consistency.Validate(rec, r.cfg)
	fixed, applied := consistency.Apply(rec, report.Fixes, r.cfg, start)

	remaining := consistency.Validate(fixed, r.cfg).Issues
	for _, is := range remaining {
		r.log.Warn("pipeline: unresolved consistency issue",
			zap.String("field", string(is.Field)),
			zap.String("severity", string(is.Severity)),
			zap.String("issue", is.Issue),
		)
	}

	r.result.FixesApplied = append(r.result.FixesApplied, applied...)
	fields := make([]model.Field, len(applied))
	for i, fx := range applied {
		fields[i] = fx.Field
	}
	qs := r.scorer.Score(fixed, r.cfg)
	r.track(4, start, model.PassResult{Score: qs.Score, Fields: fields}, nil)
	return fixed, remaining
}
