package app

import "errors"

var (
	// ErrInvalidArgument marks malformed or self-referential input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUserEngaged means a user already holds a pending invitation or a session.
	ErrUserEngaged = errors.New("user already in a game")
	// ErrSessionNotFound means no running session has the given id or player.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive means the session exists but is not playing.
	ErrSessionNotActive = errors.New("session not active")
	// ErrShuttingDown rejects new sessions once the coordinator is stopping.
	ErrShuttingDown = errors.New("coordinator shutting down")
	// ErrInvariant marks a broken internal invariant. The offending operation becomes a no-op.
	ErrInvariant = errors.New("invariant violation")
)
