// Package webhook posts flash completion events as JSON over HTTP.
//
// Network errors and 5xx responses are retried with backoff; any other
// non-2xx response is final.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/flint/adapter"
	"github.com/pithecene-io/flint/iox"
)

// Defaults applied by New.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3
	DefaultBackoff = 500 * time.Millisecond
)

// Config configures the webhook notifier.
type Config struct {
	// URL is the endpoint to POST to (required).
	URL string
	// Headers are added to each request, e.g. a bench or CI token.
	Headers map[string]string
	// Timeout bounds each request (default 10s).
	Timeout time.Duration
	// Retry controls redelivery. Backoff defaults to 500ms.
	Retry adapter.Retry
}

// Notifier publishes events via HTTP POST.
type Notifier struct {
	config Config
	client *http.Client
}

// New creates a webhook notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook notifier requires a URL")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("webhook notifier: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Retry = cfg.Retry.WithDefaultBackoff(DefaultBackoff)

	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish posts the event.
func (n *Notifier) Publish(ctx context.Context, event *adapter.FlashCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	err = n.config.Retry.Do(ctx, func(ctx context.Context) error {
		err := n.post(ctx, body)
		var status *StatusError
		if errors.As(err, &status) && !status.Retriable() {
			return adapter.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", n.config.URL, err)
	}
	return nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether the status is worth retrying (5xx).
func (e *StatusError) Retriable() bool {
	return e.Code >= 500
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close drops pooled connections.
func (n *Notifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

var _ adapter.Notifier = (*Notifier)(nil)
