package queue

import (
	"context"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Handler processes one delivery body.
type Handler func(ctx context.Context, body []byte) error

// Worker drains deliveries into a Handler. A delivery is acked when the
// handler succeeds and nacked without requeue when it fails; nothing is
// retried.
type Worker struct {
	Deliveries <-chan amqp.Delivery
	Handle     Handler
	Log        *zap.Logger
}

// Constructor
func NewWorker(deliveries <-chan amqp.Delivery, handle Handler, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Deliveries: deliveries,
		Handle:     handle,
		Log:        log,
	}
}

// Start processes deliveries until the channel closes or ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-w.Deliveries:
			if !ok {
				w.Log.Info("delivery channel closed")
				return
			}
			w.process(ctx, d)
		}
	}
}

func (w *Worker) process(ctx context.Context, d amqp.Delivery) {
	log := w.Log.With(zap.String("message_id", d.MessageId))

	if err := w.Handle(ctx, d.Body); err != nil {
		log.Error("failed to process delivery", zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			log.Warn("nack failed", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Warn("ack failed", zap.Error(err))
		return
	}
	log.Debug("delivery processed")
}
