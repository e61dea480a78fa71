// Package bridge carries the fire-and-forget synchronization nudge between
// the main queue and a companion worker process that maintains its own
// independent action queue.
//
// The two queues share no storage and coordinate only through this one-way
// signal, so they are eventually consistent at best: a missed nudge is
// recovered by the worker's own periodic tick, never by redelivery.
package bridge

import (
	"context"
)

// MessageTypeSync requests that the receiver run a replay pass over its own
// queue.
const MessageTypeSync = "SYNC_OFFLINE_ACTIONS"

// Message is the wire form of a bridge notification.
type Message struct {
	Type string `json:"type"`
}

// Notifier delivers a sync nudge to the companion queue. Delivery is
// fire-and-forget; implementations must not block on the receiver.
type Notifier interface {
	// Notify sends one sync request.
	Notify(ctx context.Context) error

	// Close releases the notifier's resources.
	Close() error
}

// ChannelNotifier delivers nudges over an in-process channel, for companion
// queues running as goroutines in the same process and for tests.
type ChannelNotifier struct {
	ch chan Message
}

// NewChannelNotifier creates a notifier with a buffered in-process channel.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelNotifier{ch: make(chan Message, buffer)}
}

// Notify sends a sync message without blocking. A full buffer drops the
// nudge: the receiver is already behind and will catch up on its own tick.
func (n *ChannelNotifier) Notify(ctx context.Context) error {
	select {
	case n.ch <- Message{Type: MessageTypeSync}:
	default:
	}
	return nil
}

// Messages returns the receiving side of the channel.
func (n *ChannelNotifier) Messages() <-chan Message {
	return n.ch
}

// Close is a no-op; the channel stays readable until garbage collected so
// late receivers do not panic.
func (n *ChannelNotifier) Close() error {
	return nil
}
