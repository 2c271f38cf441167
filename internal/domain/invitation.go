package domain

import "time"

// InvitationStatus is the state of an invitation.
// Pending is the only non-terminal status.
type InvitationStatus int

const (
	InvitationPending InvitationStatus = iota
	InvitationAccepted
	InvitationDeclined
	InvitationExpired
)

var invitationStatusLabels = map[InvitationStatus]string{
	InvitationPending:  "pending",
	InvitationAccepted: "accepted",
	InvitationDeclined: "declined",
	InvitationExpired:  "expired",
}

func (s InvitationStatus) String() string {
	if label, ok := invitationStatusLabels[s]; ok {
		return label
	}
	return "unknown"
}

// IsTerminal reports whether the status can no longer change.
func (s InvitationStatus) IsTerminal() bool {
	return s != InvitationPending
}

// Invitation is a time-bounded proposal from one user to another to start a match.
type Invitation struct {
	ID         InvitationID
	From       UserID
	To         UserID
	Status     InvitationStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ResolvedAt time.Time
}

// Involves reports whether the user is either party.
func (i Invitation) Involves(userID UserID) bool {
	return i.From == userID || i.To == userID
}

// PastExpiry reports whether now lies beyond the expiry instant.
// An invitation is still acceptable exactly at ExpiresAt.
func (i Invitation) PastExpiry(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
