package ports

import (
	"context"

	"paddleduel/internal/domain"
	"paddleduel/internal/protocol"
)

// Transport delivers protocol messages to players.
// Sends are best-effort: an error reports a failed delivery and never
// implies the caller should undo a state change.
type Transport interface {
	// SendTo delivers a message to one user.
	SendTo(ctx context.Context, userID domain.UserID, msg protocol.Message) error
	// Broadcast delivers a message to every participant of a session.
	Broadcast(ctx context.Context, sessionID domain.SessionID, msg protocol.Message) error
}

// IdentityLookup checks that a user id refers to a known player.
type IdentityLookup interface {
	Exists(ctx context.Context, userID domain.UserID) (bool, error)
}
