package ports

import (
	"context"

	"paddleduel/internal/domain"
)

// AccountPort defines the interface for updating account profiles.
type AccountPort interface {
	// UpdateProfile updates account profile fields for the given account.
	// accountID identifies the account to update; username/displayName are applied as provided
	// and metadata replaces the account metadata when non-nil.
	// Returns an error if the profile update fails.
	UpdateProfile(ctx context.Context, accountID, username, displayName string, metadata map[string]interface{}) error
}

// PlayerRegistry maps host account ids onto numeric player ids.
type PlayerRegistry interface {
	// Register returns the player id for the account, allocating one on first use.
	Register(ctx context.Context, accountID string) (domain.UserID, error)
}
