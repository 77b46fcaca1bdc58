package telemetry

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBuffer is the event buffer used when NewAsync is given none.
const DefaultBuffer = 256

// Async delivers events to another sink from a background goroutine. Emit
// never blocks: events that do not fit in the buffer are dropped and counted.
type Async struct {
	next Sink
	ch   chan Event
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

// NewAsync starts a goroutine that forwards events to next.
func NewAsync(next Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		next: next,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.ch {
		a.next.Emit(e)
	}
}

// Emit implements Sink.
func (a *Async) Emit(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.ch <- e:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	<-a.done
	if n := a.dropped.Load(); n > 0 {
		zap.L().Warn("telemetry: events dropped", zap.Int64("dropped", n))
	}
}
