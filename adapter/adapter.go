// Package adapter defines the notification boundary.
//
// Notifiers announce finished uploads to downstream systems (CI dashboards,
// chat hooks). Publishing is best effort: a failed notification never
// changes the outcome of the upload it describes.
package adapter

import "context"

// EventTypeFlashCompleted is the only event type flint publishes.
const EventTypeFlashCompleted = "flash_completed"

// FlashCompletedEvent is the payload published when an upload finishes,
// whatever its outcome.
type FlashCompletedEvent struct {
	EventType   string `json:"event_type"`
	Version     string `json:"version"`
	SessionID   string `json:"session_id,omitempty"`
	Source      string `json:"source"`
	Image       string `json:"image,omitempty"`
	ImageDigest string `json:"image_digest,omitempty"`
	Device      string `json:"device,omitempty"`
	Baud        int    `json:"baud"`
	Outcome     string `json:"outcome"` // success, build_failed, device_not_found, ...
	Message     string `json:"message,omitempty"`
	Polls       int    `json:"polls"`
	Timestamp   string `json:"timestamp"` // RFC 3339
	DurationMs  int64  `json:"duration_ms"`
}

// Notifier publishes flash completion events.
type Notifier interface {
	// Publish sends one event. It must respect ctx cancellation.
	Publish(ctx context.Context, event *FlashCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}
