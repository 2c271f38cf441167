package app

import (
	"sync"

	"paddleduel/internal/domain"
)

// OccupationKind tells what a user is engaged in.
type OccupationKind int

const (
	OccupationInvitation OccupationKind = iota + 1
	OccupationSession
)

func (k OccupationKind) String() string {
	switch k {
	case OccupationInvitation:
		return "invitation"
	case OccupationSession:
		return "session"
	default:
		return "none"
	}
}

// Occupation is what a user currently holds: one pending invitation or one session.
type Occupation struct {
	Kind OccupationKind
	ID   string
}

// InvitationOccupation is the occupation held while an invitation is pending.
func InvitationOccupation(id domain.InvitationID) Occupation {
	return Occupation{Kind: OccupationInvitation, ID: string(id)}
}

// SessionOccupation is the occupation held while a session runs.
func SessionOccupation(id domain.SessionID) Occupation {
	return Occupation{Kind: OccupationSession, ID: string(id)}
}

// SessionDirectory is the single source of truth for "already in a game".
// Each user holds at most one occupation at a time.
type SessionDirectory struct {
	mu      sync.Mutex
	entries map[domain.UserID]Occupation
}

// NewSessionDirectory returns an empty directory.
func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{entries: make(map[domain.UserID]Occupation)}
}

// Reserve gives the user the occupation. It fails if the user already holds one.
func (d *SessionDirectory) Reserve(userID domain.UserID, occ Occupation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, held := d.entries[userID]; held {
		return false
	}
	d.entries[userID] = occ
	return true
}

// ReservePair reserves both users or neither.
func (d *SessionDirectory) ReservePair(a, b domain.UserID, occ Occupation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, held := d.entries[a]; held {
		return false
	}
	if _, held := d.entries[b]; held {
		return false
	}
	d.entries[a] = occ
	d.entries[b] = occ
	return true
}

// ClaimPair moves both users from one occupation to another, or neither.
// A user holding nothing is reserved directly; a user holding anything
// other than from makes the whole claim fail.
func (d *SessionDirectory) ClaimPair(a, b domain.UserID, from, to Occupation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range [2]domain.UserID{a, b} {
		if cur, held := d.entries[u]; held && cur != from {
			return false
		}
	}
	d.entries[a] = to
	d.entries[b] = to
	return true
}

// Release clears the user's occupation, whatever it is.
func (d *SessionDirectory) Release(userID domain.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, userID)
}

// ReleaseIf clears the user's occupation only if it is occ.
func (d *SessionDirectory) ReleaseIf(userID domain.UserID, occ Occupation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, held := d.entries[userID]; held && cur == occ {
		delete(d.entries, userID)
		return true
	}
	return false
}

// IsOccupied reports whether the user holds any occupation.
func (d *SessionDirectory) IsOccupied(userID domain.UserID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, held := d.entries[userID]
	return held
}

// Occupation returns what the user currently holds.
func (d *SessionDirectory) Occupation(userID domain.UserID) (Occupation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	occ, held := d.entries[userID]
	return occ, held
}

// Len is the number of occupied users.
func (d *SessionDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
