package resilience

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"below max", 0, 3, true},
		{"at max", 3, 3, false},
		{"above max", 5, 3, false},
		{"one below max", 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			if got := e.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient error", NewTransientError(errors.New("503"), 503), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
		{"explicit permanent", NewPermanentError(errors.New("no tiers"), "schema"), "permanent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDLQEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := NewDLQEntry("a.pdf", "invoice", NewTransientError(errors.New("busy"), 503), 3, time.Minute, now)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "transient", e.ErrorType)
	assert.Equal(t, string(KindServer), e.Kind)
	assert.Equal(t, 3, e.MaxRetries)
	assert.False(t, e.Due(now))
	assert.True(t, e.Due(now.Add(time.Minute)))

	p := NewDLQEntry("b.docx", "invoice", NewPermanentError(errors.New("unsupported"), "unsupported"), 3, time.Minute, now)
	assert.Equal(t, "permanent", p.ErrorType)
	assert.False(t, p.CanRetry())
	assert.Equal(t, "unsupported", p.Error)
}

func TestDLQWriter_RoundTripWithFilter(t *testing.T) {
	var buf bytes.Buffer
	w := NewDLQWriter(&buf)
	now := time.Now()

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := errors.New("invalid")
			if i%2 == 0 {
				err = NewTransientError(errors.New("busy"), 429)
			}
			assert.NoError(t, w.Append(NewDLQEntry("doc.pdf", "receipt", err, 2, 0, now)))
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, w.Count())

	all, err := ReadDLQ(bytes.NewReader(buf.Bytes()), DLQFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	transient, err := ReadDLQ(bytes.NewReader(buf.Bytes()), DLQFilter{ErrorType: "transient", Limit: 1})
	require.NoError(t, err)
	require.Len(t, transient, 1)
	assert.Equal(t, "receipt", transient[0].Class)
}

func TestReadDLQ_BadLine(t *testing.T) {
	_, err := ReadDLQ(strings.NewReader("{not json}\n"), DLQFilter{})
	assert.Error(t, err)
}
