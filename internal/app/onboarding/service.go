package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
)

// MetadataPlayerID is the account metadata key holding the numeric player id.
const MetadataPlayerID = "player_id"

// Result captures onboarding outcomes.
type Result struct {
	// UserID is the numeric player id used for invitations and sessions.
	UserID domain.UserID
	// DisplayName is the generated name applied to the profile.
	DisplayName string
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	players  ports.PlayerRegistry
	rng      *rand.Rand
}

// NewService constructs an onboarding service with required ports.
// accounts/players must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, players ports.PlayerRegistry, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		players:  players,
		rng:      rng,
	}
}

// OnboardNewUser assigns a player id to a newly created account and gives it a friendly name.
// Returns an error only if no player id could be assigned.
// Side effects: allocates a player id and updates the account profile.
func (s *Service) OnboardNewUser(ctx context.Context, accountID string) (Result, error) {
	if s.accounts == nil || s.players == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	userID, err := s.players.Register(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to register player: %w", err)
	}

	result := Result{UserID: userID, DisplayName: s.generateFriendlyName()}
	metadata := map[string]interface{}{MetadataPlayerID: int64(userID)}
	if err := s.accounts.UpdateProfile(ctx, accountID, "", result.DisplayName, metadata); err != nil {
		// Profile updates are best-effort; the player id is what matters.
		result.ProfileUpdateErr = err
	}

	return result, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Happy", "Shiny", "Brave", "Clever", "Swift", "Calm", "Mighty", "Witty", "Sly", "Wild"}
	nouns := []string{"Paddle", "Racket", "Volley", "Spinner", "Smash", "Rally", "Lob", "Drive", "Slice", "Ace"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
