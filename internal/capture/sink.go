// Package capture forwards reportable faults to external error trackers.
package capture

import (
	"context"
	"errors"
	"time"
)

// Event is what a sink receives for one fault.
type Event struct {
	ErrorID    string
	ErrorType  string
	Message    string
	StatusCode int
	Timestamp  time.Time
	Fault      error
	Context    map[string]any
}

type Sink interface {
	Capture(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Capture(context.Context, Event) error { return nil }

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Capture(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Capture(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
