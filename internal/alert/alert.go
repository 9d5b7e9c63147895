// Package alert posts a JSON notification to a webhook when an analysis
// raised suspicious indicators.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nao1215/redirscan/internal/model"
)

// DefaultTimeout bounds one webhook delivery.
const DefaultTimeout = 5 * time.Second

// ErrDeliveryFailed is returned when the webhook answers with a non-2xx status.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// Payload is the webhook request body.
type Payload struct {
	URL        string   `json:"url"`
	RiskLevel  string   `json:"riskLevel"`
	Score      int      `json:"score"`
	Indicators []string `json:"indicators"`
	FinalURL   string   `json:"finalUrl"`
}

// NewPayload builds the webhook body for report.
func NewPayload(report *model.Report) Payload {
	p := Payload{
		RiskLevel: report.RiskLevel.String(),
		Score:     report.RiskScore,
	}
	if report.Chain != nil {
		p.URL = report.Chain.InitialURL
		p.FinalURL = report.Chain.Final.URL
	}
	if report.Security != nil {
		p.Indicators = report.Security.SuspiciousIndicators
	}
	return p
}

// Notifier delivers alerts to one webhook.
type Notifier struct {
	webhook string
	client  *http.Client
	timeout time.Duration
}

// NewNotifier creates a Notifier. A nil client uses http.DefaultClient.
func NewNotifier(webhook string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{webhook: webhook, client: client, timeout: DefaultTimeout}
}

// ShouldNotify reports whether report warrants an alert.
func (n *Notifier) ShouldNotify(report *model.Report) bool {
	return n != nil && n.webhook != "" && report != nil &&
		report.Security != nil && report.Security.HasIndicators()
}

// Notify posts the alert for report. It does nothing when ShouldNotify is false.
func (n *Notifier) Notify(ctx context.Context, report *model.Report) error {
	if !n.ShouldNotify(report) {
		return nil
	}
	body, err := json.Marshal(NewPayload(report))
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
