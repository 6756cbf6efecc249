package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Listener bridges a broker subscription into a Bubble Tea update loop.
// Each Listen call produces a command that delivers the next event as a
// message; re-arm it from Update after handling the event.
type Listener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewListener subscribes to the broker. The subscription ends when ctx
// is cancelled.
func NewListener[T any](ctx context.Context, broker *Broker[T]) *Listener[T] {
	return &Listener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Listen returns a command that waits for the next event. It yields nil
// once the context is cancelled or the broker shuts down.
func (l *Listener[T]) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-l.ctx.Done():
			return nil
		case event, ok := <-l.ch:
			if !ok {
				return nil
			}
			return event
		}
	}
}
