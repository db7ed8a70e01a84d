package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/flint/adapter"
	"github.com/pithecene-io/flint/iox"
)

func testEvent() *adapter.FlashCompletedEvent {
	return &adapter.FlashCompletedEvent{
		EventType:  adapter.EventTypeFlashCompleted,
		Version:    "0.4.0",
		SessionID:  "5c1e0c9e-7f43-4d1e-9c59-0b6f0f0c2a11",
		Source:     "main.c",
		Image:      "main.hex",
		Device:     "/dev/ttyUSB0",
		Baud:       115200,
		Outcome:    "upload_failed",
		Message:    "upload to /dev/ttyUSB0 timed out (stcgal); was the chip power-cycled?",
		Timestamp:  "2026-10-17T12:00:00Z",
		DurationMs: 121000,
	}
}

// asyncReceive reads one message in the background. It must be started
// before Publish: miniredis delivers pub/sub messages synchronously.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func TestPublish_Channel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{"default", "", DefaultChannel},
		{"custom", "bench:flashes", "bench:flashes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			n, err := New(Config{URL: "redis://" + mr.Addr(), Channel: tt.channel})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(iox.CloseFunc(n))

			sub := mr.NewSubscriber()
			sub.Subscribe(tt.want)
			ch := asyncReceive(sub)

			if err := n.Publish(t.Context(), testEvent()); err != nil {
				t.Fatalf("Publish: %v", err)
			}

			msg := waitMessage(t, ch)
			if msg.Channel != tt.want {
				t.Errorf("channel = %q, want %q", msg.Channel, tt.want)
			}
			var got adapter.FlashCompletedEvent
			if err := json.Unmarshal([]byte(msg.Message), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Outcome != "upload_failed" || got.Device != "/dev/ttyUSB0" {
				t.Errorf("event = %+v", got)
			}
		})
	}
}

func TestPublish_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	n, err := New(Config{
		URL:     "redis://" + mr.Addr(),
		Timeout: time.Second,
		Retry:   adapter.Retry{Retries: 1, Backoff: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(iox.CloseFunc(n))
	mr.Close()

	if err := n.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error with the server down")
	}
}

func TestPublish_ContextCancelled(t *testing.T) {
	mr := miniredis.RunT(t)
	n, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(iox.CloseFunc(n))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := n.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty URL", Config{}},
		{"bad URL", Config{URL: "http://not-redis"}},
		{"negative retries", Config{URL: "redis://localhost:6379", Retry: adapter.Retry{Retries: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	n, err := New(Config{URL: "redis://localhost:6379"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(iox.CloseFunc(n))
	if n.config.Channel != DefaultChannel || n.config.Timeout != DefaultTimeout || n.config.Retry.Backoff != DefaultBackoff {
		t.Errorf("config = %+v", n.config)
	}
}
