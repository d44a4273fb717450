package adapter

import (
	"context"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

// Sender delivers one message over a single channel. Transport, auth,
// and rate limiting of the underlying channel are the implementation's
// concern; the processor only needs the error outcome.
// Mocking this interface in tests gives full control over delivery
// behaviour without real network calls.
type Sender interface {
	Send(ctx context.Context, destination, text, formatHint string) error
}

// Registry maps channels to their senders. Channels without a registered
// sender are reported as not implemented by the processor, without
// consuming an adapter call.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

func (r *Registry) Register(ch domain.Channel, s Sender) {
	r.senders[ch] = s
}

func (r *Registry) Sender(ch domain.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}
