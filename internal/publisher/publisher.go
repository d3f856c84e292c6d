// Package publisher announces finished runs to downstream consumers.
package publisher

import "context"

// Publisher sends one JSON-encodable payload and returns the broker's message ID.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Nop discards every message.
type Nop struct{}

// Publish for Nop does nothing.
func (Nop) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
