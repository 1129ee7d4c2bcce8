package export

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
)

// Webhook POSTs each application as JSON to a configured URL.
type Webhook struct {
	resty *resty.Client
	url   string
}

// NewWebhook creates the sink.
func NewWebhook(url string) *Webhook {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = nil

	rc := resty.New().
		SetTimeout(15 * time.Second).
		SetTransport(retryClient.HTTPClient.Transport)

	return &Webhook{resty: rc, url: url}
}

func (w *Webhook) Name() string { return "webhook" }

// Append posts the row. Non-2xx responses map to fault kinds so the
// caller's breaker sees quota and auth failures for what they are.
func (w *Webhook) Append(ctx context.Context, app domain.Application) error {
	resp, err := w.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(app).
		Post(w.url)
	if err != nil {
		return faults.Wrap(faults.Classify(err), "export.webhook", err)
	}
	if resp.IsError() {
		return faults.Newf(faults.ClassifyHTTPStatus(resp.StatusCode()),
			"export.webhook", "webhook returned status %d", resp.StatusCode())
	}
	return nil
}
