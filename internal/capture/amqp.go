package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Message is the wire form of an Event on the error-event queue.
type Message struct {
	ErrorID    string         `json:"error_id"`
	ErrorType  string         `json:"error_type"`
	Message    string         `json:"message"`
	StatusCode int            `json:"status_code"`
	Timestamp  time.Time      `json:"timestamp"`
	Fault      string         `json:"fault"`
	FaultType  string         `json:"fault_type"`
	Context    map[string]any `json:"context,omitempty"`
}

func NewMessage(ev Event) Message {
	m := Message{
		ErrorID:    ev.ErrorID,
		ErrorType:  ev.ErrorType,
		Message:    ev.Message,
		StatusCode: ev.StatusCode,
		Timestamp:  ev.Timestamp,
		Context:    ev.Context,
	}
	if ev.Fault != nil {
		m.Fault = ev.Fault.Error()
		m.FaultType = fmt.Sprintf("%T", ev.Fault)
	}
	return m
}

// Event rebuilds the event on the consuming side. The original error value
// does not survive the queue, so Fault becomes a RemoteFault.
func (m Message) Event() Event {
	ev := Event{
		ErrorID:    m.ErrorID,
		ErrorType:  m.ErrorType,
		Message:    m.Message,
		StatusCode: m.StatusCode,
		Timestamp:  m.Timestamp,
		Context:    m.Context,
	}
	if m.Fault != "" {
		ev.Fault = &RemoteFault{Type: m.FaultType, Msg: m.Fault}
	}
	return ev
}

// RemoteFault stands in for a fault captured in another process.
type RemoteFault struct {
	Type string
	Msg  string
}

func (e *RemoteFault) Error() string { return e.Msg }

// Publisher is satisfied by queue.AMQPPublisher.
type Publisher interface {
	Publish(ctx context.Context, messageID string, body []byte) error
}

// AMQP publishes events to the error-event queue for cmd/worker to forward.
type AMQP struct {
	pub Publisher
}

func NewAMQP(pub Publisher) *AMQP {
	return &AMQP{pub: pub}
}

func (a *AMQP) Capture(ctx context.Context, ev Event) error {
	body, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("encode error event %s: %w", ev.ErrorID, err)
	}
	return a.pub.Publish(ctx, ev.ErrorID, body)
}

// Forwarder decodes queued messages and hands them to a sink. It is the
// handler cmd/worker runs for each delivery.
func Forwarder(sink Sink) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		var m Message
		if err := json.Unmarshal(body, &m); err != nil {
			return fmt.Errorf("decode error event: %w", err)
		}
		return sink.Capture(ctx, m.Event())
	}
}
