package core

import (
	"context"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// Frame is a raw JSON payload.
type Frame []byte

// ConnectionID identifies one physical transport channel. An identity may
// own several of them at once (multiple tabs or devices).
type ConnectionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Connection binds an identity to one live SignalConnection.
// This is what the presence registry stores and fans out to.
type Connection struct {
	ID       ConnectionID
	Identity domain.Identity
	Signal   SignalConnection
}

// Notifier delivers events to identities without knowing about sockets.
// The presence registry implements it; the coordinator and relay only see
// this interface.
type Notifier interface {
	// SendTo fans event out to every live connection of id and reports how
	// many connections took it.
	SendTo(id domain.Identity, event any) int
	// BroadcastAll sends event to every online identity.
	BroadcastAll(event any)
}

// IdentityResolver turns the bearer credential from the connect handshake
// into an identity. Issuing tokens is the auth subsystem's business; we
// only consume the result.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// NameLookup resolves a display name for call notifications. Backed by the
// profile service in production; the dev default echoes the identity.
type NameLookup func(id domain.Identity) string
