package nakama

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"

	"paddleduel/internal/domain"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// AfterAuthenticateDevice is triggered after an account is authenticated.
// New accounts get a player id and a display name.
func (m *Module) AfterAuthenticateDevice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error {
	if out == nil || !out.Created {
		return nil
	}

	accountID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if accountID == "" {
		// Resolve the account from the session token by parsing the JWT payload manually.
		resolvedID, err := extractUserIDFromToken(out.Token)
		if err != nil {
			logger.Error("AfterAuthenticateDevice: Failed to extract user ID from token: %v", err)
			return err
		}
		accountID = resolvedID
	}

	logger.Info("Onboarding new account %s", accountID)

	result, err := m.onboarding.OnboardNewUser(ctx, accountID)
	if err != nil {
		logger.Error("AfterAuthenticateDevice: Onboarding failed for account %s: %v", accountID, err)
		return err
	}
	if result.ProfileUpdateErr != nil {
		logger.Warn("AfterAuthenticateDevice: Failed to update profile for account %s: %v", accountID, result.ProfileUpdateErr)
	}
	logger.Info("AfterAuthenticateDevice: account %s is player %d (%s)", accountID, result.UserID, result.DisplayName)
	return nil
}

// OnSessionEnd treats a closed socket as the player going offline: their
// pending invitations expire and a running session is aborted.
func (m *Module) OnSessionEnd(ctx context.Context, logger runtime.Logger, evt *api.Event) {
	accountID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if accountID == "" {
		return
	}
	userID, err := m.players.UserID(ctx, accountID)
	if err != nil {
		// Accounts that never called an RPC have no player id yet.
		logger.Debug("OnSessionEnd: no player for account %s: %v", accountID, err)
		return
	}

	expired := m.registry.HandleUserOffline(ctx, userID)
	aborted := m.coordinator.AbortUser(ctx, userID, domain.AbortPlayerOffline)
	if expired > 0 || aborted {
		logger.Info("OnSessionEnd [User:%d]: expired %d invitations, aborted session: %t", userID, expired, aborted)
	}
}

func extractUserIDFromToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid token format")
	}

	payload := parts[1]
	// JWT base64 is RawUrlEncoding (no padding)
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode token payload: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return "", fmt.Errorf("failed to unmarshal token claims: %w", err)
	}

	uid, ok := claims["uid"].(string)
	if !ok {
		return "", fmt.Errorf("token claims missing uid")
	}

	return uid, nil
}
