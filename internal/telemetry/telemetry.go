// Package telemetry carries extraction events to logs and other sinks
// without slowing the extraction path.
package telemetry

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/model"
)

// Outcome is what happened in the step an event describes.
type Outcome string

const (
	OutcomeAttempt Outcome = "attempt"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// PassExtraction marks an event that summarizes a whole extraction.
const PassExtraction = 0

// Event is one telemetry record.
type Event struct {
	ExtractionID string        `json:"extraction_id"`
	Class        string        `json:"class"`
	Pass         int           `json:"pass"`
	Tier         string        `json:"tier,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	Outcome      Outcome       `json:"outcome"`
	Score        int           `json:"score,omitempty"`
	Fields       []model.Field `json:"fields,omitempty"`
	CostUSD      float64       `json:"cost_usd,omitempty"`
	Duration     time.Duration `json:"duration"`
	Err          string        `json:"error,omitempty"`
	Time         time.Time     `json:"time"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// Nop discards events.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(Event) {}

// Multi fans every event out to each sink in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// ZapSink writes events as structured log lines.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink logs to log, or to the global logger when log is nil.
func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.L()
	}
	return &ZapSink{log: log.With(zap.String("component", "telemetry"))}
}

// Emit implements Sink. Failures log at warn, everything else at debug
// except whole-extraction summaries.
func (z *ZapSink) Emit(e Event) {
	fields := []zap.Field{
		zap.String("extraction_id", e.ExtractionID),
		zap.String("class", e.Class),
		zap.Int("pass", e.Pass),
		zap.String("outcome", string(e.Outcome)),
		zap.Duration("duration", e.Duration),
	}
	if e.Tier != "" {
		fields = append(fields, zap.String("tier", e.Tier))
	}
	if e.Provider != "" {
		fields = append(fields, zap.String("provider", e.Provider))
	}
	if e.Score > 0 {
		fields = append(fields, zap.Int("score", e.Score))
	}
	if len(e.Fields) > 0 {
		names := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			names[i] = f.String()
		}
		fields = append(fields, zap.Strings("fields", names))
	}
	if e.CostUSD > 0 {
		fields = append(fields, zap.Float64("cost_usd", e.CostUSD))
	}
	if e.Err != "" {
		fields = append(fields, zap.String("error", e.Err))
	}

	switch {
	case e.Outcome == OutcomeFailure:
		z.log.Warn("extraction event", fields...)
	case e.Pass == PassExtraction:
		z.log.Info("extraction event", fields...)
	default:
		z.log.Debug("extraction event", fields...)
	}
}
