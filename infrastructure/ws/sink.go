package ws

import (
	"context"
	"fmt"

	"linkup/domain/event"
)

// Sink is the write side of one WebSocket connection. Consume is called
// by the delivery pipeline and the presence fan-out; the connection's
// write pump drains the channel towards the client.
type Sink struct {
	events chan event.DomainEvent
}

func NewSink(bufferSize int) *Sink {
	return &Sink{events: make(chan event.DomainEvent, bufferSize)}
}

// Consume hands the event to the connection's write pump. A full buffer
// means the client cannot keep up; the event is dropped and the caller
// decides whether that matters (it never does for this core).
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("connection buffer full, dropping %s", e.EventName())
	}
}

func (s *Sink) Events() <-chan event.DomainEvent {
	return s.events
}
