package resilience

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// DLQEntry represents a document whose extraction failed and can be retried later.
type DLQEntry struct {
	ID           string    `json:"id"`
	Document     string    `json:"document"`
	Class        string    `json:"class"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	Kind         string    `json:"kind,omitempty"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// NewDLQEntry records a failed extraction of document. Transient failures are
// scheduled for retry after backoff; permanent ones are not retryable.
func NewDLQEntry(document, class string, err error, maxRetries int, backoff time.Duration, now time.Time) DLQEntry {
	e := DLQEntry{
		ID:           uuid.NewString(),
		Document:     document,
		Class:        class,
		ErrorType:    ClassifyError(err),
		Kind:         string(Classify(err)),
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		LastFailedAt: now,
		NextRetryAt:  now.Add(backoff),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if e.ErrorType == "permanent" {
		e.MaxRetries = 0
	}
	return e
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// Due reports whether the entry may be retried at now.
func (e *DLQEntry) Due(now time.Time) bool {
	return e.CanRetry() && !now.Before(e.NextRetryAt)
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DLQWriter appends entries as JSON lines. It is safe for concurrent use.
type DLQWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	n   int
}

// NewDLQWriter writes entries to w.
func NewDLQWriter(w io.Writer) *DLQWriter {
	return &DLQWriter{enc: json.NewEncoder(w)}
}

// Append writes one entry.
func (d *DLQWriter) Append(e DLQEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enc.Encode(e); err != nil {
		return eris.Wrap(err, "dlq: append")
	}
	d.n++
	return nil
}

// Count returns the number of entries written.
func (d *DLQWriter) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// ReadDLQ decodes JSON-line entries from r that match filter.
func ReadDLQ(r io.Reader, filter DLQFilter) ([]DLQEntry, error) {
	var out []DLQEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e DLQEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, eris.Wrap(err, "dlq: decode entry")
		}
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "dlq: read")
	}
	return out, nil
}
