package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Instance before the provider has completed
// its handshake with the messaging bridge.
var ErrNotConnected = errors.New("transport not connected")

// Sender emits outbound messages through a live transport connection.
// Implementations must tolerate concurrent calls.
type Sender interface {
	SendMessage(ctx context.Context, recipient string, payload any) error
}

// Provider is the capability object owned by one bot session. Instance
// returns the live sender or ErrNotConnected while the transport is down.
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	Instance() (Sender, error)
	Close() error
}

// Factory builds a provider scoped to one bot name. The session bootstrapper
// calls it exactly once per tenant; tests substitute fakes.
type Factory func(name string) (Provider, error)
