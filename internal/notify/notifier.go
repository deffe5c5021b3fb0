// Package notify delivers gate reports to an HTTP endpoint after a run.
// Delivery is best-effort: a run's verdict never depends on whether the
// notification landed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/pipegate-dev/pipegate/internal/engine"
	"github.com/pipegate-dev/pipegate/internal/gate"
)

const (
	defaultTimeout  = 10 * time.Second
	deliveryRetries = 2 // initial attempt + 2 retries
)

// Report is the JSON payload posted to the notification endpoint.
type Report struct {
	Pipeline string   `json:"pipeline"`
	Version  string   `json:"version"`
	RunID    string   `json:"run_id"`
	Overall  string   `json:"overall"`
	Blocking []string `json:"blocking"`
	Body     string   `json:"body"`
}

// BuildReport assembles the notification payload from a run result.
// Body carries the rendered gate report, ready to paste into a chat
// message or PR comment.
func BuildReport(result *engine.RunResult) Report {
	return Report{
		Pipeline: result.PipelineName,
		Version:  result.PipelineVersion,
		RunID:    result.RunID.String(),
		Overall:  result.Gate.Overall.String(),
		Blocking: result.Gate.Blocking,
		Body:     gate.Render(result.Gate),
	}
}

// Notifier posts reports to a single endpoint.
type Notifier struct {
	client *http.Client
	url    string
	logger *slog.Logger

	retry *config.RetrySpec
}

// New creates a notifier for the given endpoint URL. timeout of 0 uses
// the default per-request timeout.
func New(url string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		url:    url,
		logger: logger,
		retry: &config.RetrySpec{
			Attempts: deliveryRetries,
			Backoff:  "exponential",
			Delay:    500 * time.Millisecond,
		},
	}
}

// Send posts the report, retrying transient failures with exponential
// backoff. Returns the last error once attempts are exhausted.
func (n *Notifier) Send(ctx context.Context, report Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	var lastErr error
	totalAttempts := 1 + n.retry.Attempts

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		lastErr = n.post(ctx, payload)
		if lastErr == nil {
			n.logger.Debug("report delivered", "url", n.url, "run_id", report.RunID, "attempt", attempt)
			return nil
		}

		n.logger.Warn("report delivery failed",
			"url", n.url,
			"run_id", report.RunID,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt < totalAttempts {
			select {
			case <-time.After(engine.CalculateBackoff(n.retry, attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("report delivery failed after %d attempts: %w", totalAttempts, lastErr)
}

// post performs one delivery attempt.
func (n *Notifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
