package nakama

import (
	"context"
	"fmt"

	"paddleduel/internal/app"
	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
	"paddleduel/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RelayHost gives every session its own authoritative relay match and hands
// each player a join ticket for it.
type RelayHost struct {
	nk        runtime.NakamaModule
	hub       *RelayHub
	accounts  accountResolver
	tickets   *app.TicketService
	transport ports.Transport
	logger    runtime.Logger
}

// NewRelayHost creates a session host.
func NewRelayHost(nk runtime.NakamaModule, hub *RelayHub, accounts accountResolver, tickets *app.TicketService, transport ports.Transport, logger runtime.Logger) *RelayHost {
	return &RelayHost{
		nk:        nk,
		hub:       hub,
		accounts:  accounts,
		tickets:   tickets,
		transport: transport,
		logger:    logger,
	}
}

// Open registers the relay route, creates the relay match and sends both
// players a match.ready with their ticket. If the match cannot be created
// the route is removed again.
func (h *RelayHost) Open(ctx context.Context, info ports.SessionInfo) error {
	if err := h.hub.Open(info.ID); err != nil {
		return err
	}

	matchID, err := h.nk.MatchCreate(ctx, MatchNameRelay, map[string]interface{}{
		paramSessionID: string(info.ID),
		paramLeftUser:  int64(info.Left),
		paramRightUser: int64(info.Right),
	})
	if err != nil {
		h.hub.Remove(info.ID)
		return fmt.Errorf("failed to create relay match: %w", err)
	}

	for _, userID := range [2]domain.UserID{info.Left, info.Right} {
		ready, err := h.readyFor(ctx, info, matchID, userID)
		if err != nil {
			h.hub.Remove(info.ID)
			return err
		}
		if err := h.transport.SendTo(ctx, userID, ready); err != nil {
			// The relay's join timeout aborts the session if the player never shows up.
			h.logger.Warn("RelayHost: failed to deliver match.ready for session %s to user %d: %v", info.ID, userID, err)
		}
	}
	h.logger.Info("RelayHost: session %s relayed by match %s", info.ID, matchID)
	return nil
}

func (h *RelayHost) readyFor(ctx context.Context, info ports.SessionInfo, matchID string, userID domain.UserID) (protocol.MatchReady, error) {
	accountID, err := h.accounts.AccountID(ctx, userID)
	if err != nil {
		return protocol.MatchReady{}, fmt.Errorf("failed to resolve account for user %d: %w", userID, err)
	}
	ticket, err := h.tickets.Issue(info.ID, matchID, userID, accountID)
	if err != nil {
		return protocol.MatchReady{}, fmt.Errorf("failed to issue ticket for user %d: %w", userID, err)
	}
	return protocol.MatchReady{
		SessionID:   info.ID,
		MatchID:     matchID,
		Ticket:      ticket,
		LeftUserID:  info.Left,
		RightUserID: info.Right,
	}, nil
}

// Close marks the route finished; the relay match drains it and terminates.
func (h *RelayHost) Close(_ context.Context, sessionID domain.SessionID) {
	h.hub.Close(sessionID)
}

var _ ports.SessionHost = (*RelayHost)(nil)
