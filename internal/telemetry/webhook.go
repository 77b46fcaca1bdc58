package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Webhook posts failed extractions to a URL as JSON. Wrap it in Async so
// slow endpoints never hold up extraction.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a sink posting to url.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

// Emit implements Sink. Only whole-extraction failures are sent.
func (w *Webhook) Emit(e Event) {
	if w.url == "" || e.Pass != PassExtraction || e.Outcome != OutcomeFailure {
		return
	}
	if err := w.send(context.Background(), e); err != nil {
		zap.L().Error("telemetry: failed to send webhook",
			zap.String("extraction_id", e.ExtractionID),
			zap.Error(err),
		)
	}
}

func (w *Webhook) send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "telemetry: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "telemetry: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "telemetry: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("telemetry: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
