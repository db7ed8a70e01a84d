package adapter

import (
	"context"
	"errors"
)

// Fanout publishes every event to all of its notifiers.
type Fanout []Notifier

// Publish sends event to each notifier in order. One failing notifier does
// not stop the others; their errors are joined.
func (f Fanout) Publish(ctx context.Context, event *FlashCompletedEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier.
func (f Fanout) Close() error {
	var errs []error
	for _, n := range f {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = Fanout(nil)
