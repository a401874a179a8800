package dispatch

import (
	"context"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// Sender transmits a record over one channel. A returned error counts as a
// failed attempt; the queue decides whether to retry.
type Sender interface {
	Channel() notifyq.Channel
	Send(ctx context.Context, rec notifyq.Record) error
}

// SenderFunc adapts a function into a Sender for the given channel.
func SenderFunc(ch notifyq.Channel, fn func(ctx context.Context, rec notifyq.Record) error) Sender {
	return senderFunc{ch: ch, fn: fn}
}

type senderFunc struct {
	ch notifyq.Channel
	fn func(ctx context.Context, rec notifyq.Record) error
}

func (s senderFunc) Channel() notifyq.Channel { return s.ch }

func (s senderFunc) Send(ctx context.Context, rec notifyq.Record) error {
	return s.fn(ctx, rec)
}
