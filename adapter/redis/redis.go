// Package redis publishes flash completion events as JSON on a Redis
// pub/sub channel, so a bench dashboard can follow uploads live.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/flint/adapter"
)

// Defaults applied by New.
const (
	DefaultChannel = "flint:flash_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
	DefaultBackoff = 500 * time.Millisecond
)

// Config configures the Redis notifier.
type Config struct {
	// URL is the connection URL (required), redis://[:password@]host:port[/db].
	URL string
	// Channel is the pub/sub channel (default flint:flash_completed).
	Channel string
	// Timeout bounds each PUBLISH (default 5s).
	Timeout time.Duration
	// Retry controls redelivery. Backoff defaults to 500ms.
	Retry adapter.Retry
}

// Notifier publishes events via Redis PUBLISH.
type Notifier struct {
	config Config
	client *goredis.Client
}

// New creates a Redis notifier. The URL is parsed eagerly; the connection
// is made on the first publish.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("redis notifier: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Retry = cfg.Retry.WithDefaultBackoff(DefaultBackoff)

	return &Notifier{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event to the configured channel.
func (n *Notifier) Publish(ctx context.Context, event *adapter.FlashCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := n.config.Retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
		return n.client.Publish(ctx, n.config.Channel, body).Err()
	}); err != nil {
		return fmt.Errorf("redis publish to %s: %w", n.config.Channel, err)
	}
	return nil
}

// Close closes the connection pool.
func (n *Notifier) Close() error {
	return n.client.Close()
}

var _ adapter.Notifier = (*Notifier)(nil)
