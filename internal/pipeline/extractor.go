// Package pipeline runs the multi-pass extraction state machine: a tier
// cascade, a chain-of-thought repair pass, targeted field repair and a
// consistency pass, stopping as soon as the record is good enough.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/invoker"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/ocr"
	"github.com/sells-group/docextract/internal/prompt"
	"github.com/sells-group/docextract/internal/quality"
	"github.com/sells-group/docextract/internal/telemetry"
)

// ErrNoDocument is returned when Extract is given an empty document.
var ErrNoDocument = eris.New("pipeline: document has no content")

// Pass names, indexed by pass number.
var passNames = [...]string{"", "cascade", "chain_of_thought", "field_repair", "consistency"}

// Extractor runs extractions. It is safe for concurrent use; all state of
// an extraction lives in its own run.
type Extractor struct {
	invoker invoker.Invoker
	prompts prompt.Factory
	text    ocr.Extractor
	sink    telemetry.Sink
	now     func() time.Time
	newID   func() string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used for scoring and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithIDs sets the extraction ID generator.
func WithIDs(fn func() string) Option {
	return func(e *Extractor) { e.newID = fn }
}

// Options tune one extraction.
type Options struct {
	// CompanyName is the document's recipient, when known.
	CompanyName string
}

// New creates an Extractor. text may be nil, which disables the PDF text
// fallback; sink may be nil.
func New(inv invoker.Invoker, prompts prompt.Factory, text ocr.Extractor, sink telemetry.Sink, opts ...Option) *Extractor {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	e := &Extractor{
		invoker: inv,
		prompts: prompts,
		text:    text,
		sink:    sink,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// run is the state of one extraction.
type run struct {
	e      *Extractor
	id     string
	doc    model.Document
	cfg    docclass.Config
	opts   Options
	log    *zap.Logger
	scorer quality.Scorer
	result *model.ExtractionResult

	// text is set when the document is being sent as extracted text.
	text string
}

// Extract runs the passes against doc. It returns an error only when Pass 1
// produces no record; later failures are absorbed and the best record so
// far is returned.
func (e *Extractor) Extract(ctx context.Context, doc model.Document, class docclass.Config, opts Options) (*model.ExtractionResult, error) {
	if len(doc.Data) == 0 {
		return nil, ErrNoDocument
	}
	if len(class.Tiers) == 0 {
		return nil, eris.Errorf("pipeline: class %s has no tiers", class.Name)
	}

	r := &run{
		e:      e,
		id:     e.newID(),
		doc:    doc,
		cfg:    class,
		opts:   opts,
		scorer: quality.Scorer{Now: e.now},
	}
	r.log = zap.L().With(
		zap.String("extraction_id", r.id),
		zap.String("class", class.Name),
		zap.String("document", doc.Name),
	)
	r.result = &model.ExtractionResult{
		ID:       r.id,
		Class:    class.Name,
		Document: doc.Name,
	}

	start := e.now()
	r.log.Info("pipeline: starting extraction", zap.String("media_type", doc.MediaType))

	res, err := r.execute(ctx)
	if err != nil {
		r.emit(telemetry.Event{Pass: telemetry.PassExtraction, Outcome: telemetry.OutcomeFailure,
			Duration: e.now().Sub(start), Err: err.Error()})
		r.log.Error("pipeline: extraction failed", zap.Error(err))
		return nil, err
	}

	r.emit(telemetry.Event{Pass: telemetry.PassExtraction, Outcome: telemetry.OutcomeSuccess,
		Tier: res.Tier, Score: res.QualityScore.Score, Duration: e.now().Sub(start)})
	r.log.Info("pipeline: extraction complete",
		zap.Int("score", res.QualityScore.Score),
		zap.String("tier", res.Tier),
		zap.Int("passes", len(res.Passes)),
		zap.Duration("duration", e.now().Sub(start)),
	)
	return res, nil
}

func (r *run) execute(ctx context.Context) (*model.ExtractionResult, error) {
	rec, err := r.pass1(ctx)
	if err != nil {
		return nil, err
	}
	qs := r.scorer.Score(rec, r.cfg)
	if !quality.NeedsRepair(qs, r.cfg) {
		return r.finish(rec, qs), nil
	}

	rec, qs = r.pass2(ctx, rec, qs)
	if !quality.NeedsRepair(qs, r.cfg) {
		return r.finish(rec, qs), nil
	}

	rec = r.pass3(ctx, rec, qs)
	rec, issues := r.pass4(rec)

	qs = r.scorer.Score(rec, r.cfg)
	for _, is := range issues {
		qs.Issues = append(qs.Issues, "consistency: "+is.Issue)
	}
	return r.finish(rec, qs), nil
}

func (r *run) finish(rec model.Record, qs model.QualityScore) *model.ExtractionResult {
	r.result.Data = rec
	r.result.QualityScore = qs
	r.result.CompletedAt = r.e.now()
	return r.result
}

// track records a pass in the result and emits its telemetry event.
func (r *run) track(pass int, start time.Time, pr model.PassResult, err error) {
	pr.Pass = pass
	pr.Name = passNames[pass]
	pr.Duration = r.e.now().Sub(start).Milliseconds()

	ev := telemetry.Event{Pass: pass, Score: pr.Score, Fields: pr.Fields, Duration: r.e.now().Sub(start)}
	switch {
	case err != nil:
		pr.Status = model.PassStatusFailed
		pr.Error = err.Error()
		ev.Outcome = telemetry.OutcomeFailure
		ev.Err = pr.Error
		r.log.Warn("pipeline: pass failed", zap.Int("pass", pass), zap.Error(err))
	case pr.Status == model.PassStatusSkipped:
		ev.Outcome = telemetry.OutcomeSkipped
		r.log.Debug("pipeline: pass skipped", zap.Int("pass", pass))
	default:
		pr.Status = model.PassStatusComplete
		ev.Outcome = telemetry.OutcomeSuccess
		r.log.Info("pipeline: pass complete",
			zap.Int("pass", pass),
			zap.String("tier", pr.Tier),
			zap.Int("score", pr.Score),
			zap.Int64("duration_ms", pr.Duration),
		)
	}
	r.result.Passes = append(r.result.Passes, pr)
	r.emit(ev)
}

func (r *run) emit(ev telemetry.Event) {
	ev.ExtractionID = r.id
	ev.Class = r.cfg.Name
	if ev.Time.IsZero() {
		ev.Time = r.e.now()
	}
	r.e.sink.Emit(ev)
}

func fieldNames(fields []model.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
