package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// UserID identifies a player. Valid ids are positive.
type UserID int64

// Valid reports whether the id is usable as a participant.
func (u UserID) Valid() bool {
	return u > 0
}

func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// InvitationID is an opaque invitation identifier.
type InvitationID string

// SessionID is an opaque match session identifier, unrelated to any invitation id.
type SessionID string

// NewInvitationID returns a random invitation id.
func NewInvitationID() InvitationID {
	return InvitationID(uuid.NewString())
}

// NewSessionID returns a random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}
