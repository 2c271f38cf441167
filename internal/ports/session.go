package ports

import (
	"context"

	"paddleduel/internal/domain"
)

// SessionInfo describes a session about to start.
type SessionInfo struct {
	ID    domain.SessionID
	Left  domain.UserID
	Right domain.UserID
}

// SessionHost provisions the delivery channel a session broadcasts on.
type SessionHost interface {
	// Open prepares broadcasting for the session and tells both players where to connect.
	Open(ctx context.Context, info SessionInfo) error
	// Close releases whatever Open allocated. It is called exactly once per opened session.
	Close(ctx context.Context, sessionID domain.SessionID)
}

// ResultRecorder persists completed match results.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result domain.MatchResult) error
}
