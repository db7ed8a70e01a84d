package adapter

import (
	"context"
	"errors"
	"testing"
)

type stubNotifier struct {
	published int
	closed    bool
	err       error
}

func (s *stubNotifier) Publish(context.Context, *FlashCompletedEvent) error {
	s.published++
	return s.err
}

func (s *stubNotifier) Close() error {
	s.closed = true
	return s.err
}

func TestFanout_PublishesToAll(t *testing.T) {
	errDown := errors.New("down")
	first := &stubNotifier{err: errDown}
	second := &stubNotifier{}
	f := Fanout{first, second}

	err := f.Publish(t.Context(), &FlashCompletedEvent{EventType: EventTypeFlashCompleted})
	if !errors.Is(err, errDown) {
		t.Errorf("Publish error = %v, want %v", err, errDown)
	}
	if first.published != 1 || second.published != 1 {
		t.Errorf("published = %d, %d; want 1, 1", first.published, second.published)
	}

	if err := f.Close(); !errors.Is(err, errDown) {
		t.Errorf("Close error = %v", err)
	}
	if !first.closed || !second.closed {
		t.Error("not every notifier was closed")
	}
}

func TestFanout_Empty(t *testing.T) {
	if err := (Fanout{}).Publish(t.Context(), &FlashCompletedEvent{}); err != nil {
		t.Errorf("Publish = %v", err)
	}
}
