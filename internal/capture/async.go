package capture

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/queue"
)

const asyncTopic = "capture"

// Async hands events to a background dispatcher so Capture returns before
// delivery. Delivery failures are logged by the wrapper and never reach the
// caller.
type Async struct {
	q   queue.Queue
	log *zap.Logger
}

func NewAsync(q queue.Queue, sink Sink, log *zap.Logger) (*Async, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{q: q, log: log}
	err := q.Subscribe(asyncTopic, func(payload any) error {
		ev, ok := payload.(Event)
		if !ok {
			return fmt.Errorf("unexpected capture payload %T", payload)
		}
		// detached from the request context, which is gone by now
		if err := sink.Capture(context.Background(), ev); err != nil {
			a.log.Warn("capture sink delivery failed", zap.String("error_id", ev.ErrorID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Async) Capture(_ context.Context, ev Event) error {
	return a.q.Publish(asyncTopic, ev)
}
