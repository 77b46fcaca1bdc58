package telemetry

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of extraction health.
type Snapshot struct {
	Extractions int     `json:"extractions"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	FailRate    float64 `json:"fail_rate"`
	Calls       int     `json:"calls"`
	CallsFailed int     `json:"calls_failed"`
	CostUSD     float64 `json:"cost_usd"`
	AvgScore    float64 `json:"avg_score"`

	// PassesRun counts completed passes by number.
	PassesRun map[int]int `json:"passes_run"`

	CollectedAt time.Time `json:"collected_at"`
}

// Stats aggregates events in memory. It backs batch summaries and the
// server's health endpoint.
type Stats struct {
	mu          sync.Mutex
	extractions int
	succeeded   int
	failed      int
	calls       int
	callsFailed int
	cost        float64
	scoreSum    int
	scored      int
	passes      map[int]int
}

// NewStats returns an empty Stats sink.
func NewStats() *Stats {
	return &Stats{passes: make(map[int]int)}
}

// Emit implements Sink.
func (s *Stats) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Pass == PassExtraction {
		s.extractions++
		switch e.Outcome {
		case OutcomeSuccess:
			s.succeeded++
			if e.Score > 0 {
				s.scoreSum += e.Score
				s.scored++
			}
		case OutcomeFailure:
			s.failed++
		}
		return
	}

	s.cost += e.CostUSD
	switch {
	case e.Tier != "" && e.Outcome == OutcomeSuccess:
		s.calls++
	case e.Tier != "" && e.Outcome == OutcomeFailure:
		s.calls++
		s.callsFailed++
	case e.Tier == "" && e.Outcome == OutcomeSuccess:
		s.passes[e.Pass]++
	}
}

// Snapshot returns the current totals.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Extractions: s.extractions,
		Succeeded:   s.succeeded,
		Failed:      s.failed,
		Calls:       s.calls,
		CallsFailed: s.callsFailed,
		CostUSD:     s.cost,
		PassesRun:   make(map[int]int, len(s.passes)),
		CollectedAt: time.Now().UTC(),
	}
	for k, v := range s.passes {
		snap.PassesRun[k] = v
	}
	if finished := s.succeeded + s.failed; finished > 0 {
		snap.FailRate = float64(s.failed) / float64(finished)
	}
	if s.scored > 0 {
		snap.AvgScore = float64(s.scoreSum) / float64(s.scored)
	}
	return snap
}
