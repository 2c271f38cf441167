package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"paddleduel/internal/clock"
	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
	"paddleduel/internal/protocol"
	"paddleduel/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// Rejection reasons sent with match.rejected.
const (
	RejectPlayerEngaged = "player_engaged"
	RejectHostFailure   = "host_unavailable"
	RejectShuttingDown  = "shutting_down"
	RejectInternal      = "internal_error"
)

// CoordinatorOption customizes a MatchCoordinator.
type CoordinatorOption func(*MatchCoordinator)

// WithCoordinatorLogger sets the logger for the coordinator and the sessions it creates.
func WithCoordinatorLogger(logger runtime.Logger) CoordinatorOption {
	return func(c *MatchCoordinator) { c.logger = orNop(logger) }
}

// WithSessionHost provisions a broadcast channel for every session before it starts.
func WithSessionHost(host ports.SessionHost) CoordinatorOption {
	return func(c *MatchCoordinator) { c.host = host }
}

// WithResultRecorder persists every completed session.
func WithResultRecorder(recorder ports.ResultRecorder) CoordinatorOption {
	return func(c *MatchCoordinator) { c.recorder = recorder }
}

// WithCoordinatorMetrics records session lifecycle metrics.
func WithCoordinatorMetrics(m *telemetry.Metrics) CoordinatorOption {
	return func(c *MatchCoordinator) { c.metrics = m }
}

// WithSessionIDs overrides the session id generator.
func WithSessionIDs(next func() domain.SessionID) CoordinatorOption {
	return func(c *MatchCoordinator) { c.newID = next }
}

// WithRandSource seeds each new session's serve directions from next.
func WithRandSource(next func() *rand.Rand) CoordinatorOption {
	return func(c *MatchCoordinator) { c.newRand = next }
}

// MatchCoordinator turns accepted invitations into running sessions and
// retires them. It is the only component that creates MatchSessions.
type MatchCoordinator struct {
	directory *SessionDirectory
	transport ports.Transport
	clock     clock.Clock
	cfg       SessionConfig
	logger    runtime.Logger
	host      ports.SessionHost
	recorder  ports.ResultRecorder
	metrics   *telemetry.Metrics
	newID     func() domain.SessionID
	newRand   func() *rand.Rand

	mu       sync.RWMutex
	sessions map[domain.SessionID]*MatchSession
	closed   bool
}

// NewMatchCoordinator constructs a coordinator. directory, transport and clk are required.
func NewMatchCoordinator(directory *SessionDirectory, transport ports.Transport, clk clock.Clock, cfg SessionConfig, opts ...CoordinatorOption) *MatchCoordinator {
	c := &MatchCoordinator{
		directory: directory,
		transport: transport,
		clock:     clk,
		cfg:       cfg,
		logger:    nopLogger{},
		newID:     domain.NewSessionID,
		sessions:  make(map[domain.SessionID]*MatchSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newRand == nil {
		c.newRand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	return c
}

// OnInvitationAccepted reserves both players for a new session, opens it on
// the host and starts it. The challenger plays left. If either player is
// engaged elsewhere, or the host cannot open the session, no session is
// created, both players get match.rejected and their reservations for this
// invitation are released.
func (c *MatchCoordinator) OnInvitationAccepted(ctx context.Context, inv domain.Invitation) error {
	if inv.Status != domain.InvitationAccepted {
		c.logger.Error("MatchCoordinator: invitation %s handed over with status %s", inv.ID, inv.Status)
		return eris.Wrapf(ErrInvariant, "invitation %s is %s, not accepted", inv.ID, inv.Status)
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		c.reject(ctx, inv, RejectShuttingDown)
		return ErrShuttingDown
	}

	id := c.newID()
	invOcc, sessOcc := InvitationOccupation(inv.ID), SessionOccupation(id)
	if !c.directory.ClaimPair(inv.From, inv.To, invOcc, sessOcc) {
		c.reject(ctx, inv, RejectPlayerEngaged)
		return eris.Wrapf(ErrUserEngaged, "players %d and %d for invitation %s", inv.From, inv.To, inv.ID)
	}

	session, err := NewMatchSession(id, inv.From, inv.To, c.cfg, c.clock, c.transport,
		WithSessionLogger(c.logger),
		WithSessionMetrics(c.metrics),
		WithSessionRand(c.newRand()),
	)
	if err != nil {
		c.releasePair(inv.From, inv.To, sessOcc)
		c.reject(ctx, inv, RejectInternal)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.releasePair(inv.From, inv.To, sessOcc)
		c.reject(ctx, inv, RejectShuttingDown)
		return ErrShuttingDown
	}
	c.sessions[id] = session
	c.mu.Unlock()

	if c.host != nil {
		if err := c.host.Open(ctx, ports.SessionInfo{ID: id, Left: inv.From, Right: inv.To}); err != nil {
			c.forget(id)
			c.releasePair(inv.From, inv.To, sessOcc)
			c.reject(ctx, inv, RejectHostFailure)
			return eris.Wrapf(err, "failed to open session %s", id)
		}
	}

	// Shutdown may have run while the host was opening the session.
	c.mu.RLock()
	closed = c.closed
	c.mu.RUnlock()
	if closed {
		c.forget(id)
		c.releasePair(inv.From, inv.To, sessOcc)
		if c.host != nil {
			c.host.Close(ctx, id)
		}
		c.reject(ctx, inv, RejectShuttingDown)
		return ErrShuttingDown
	}

	session.OnEnd(func(result domain.MatchResult) { c.retire(result) })
	if !session.Start(ctx) {
		c.logger.Info("MatchCoordinator: session %s for invitation %s aborted before start", id, inv.ID)
		return nil
	}
	c.logger.Info("MatchCoordinator: session %s started for invitation %s (%d vs %d)", id, inv.ID, inv.From, inv.To)
	return nil
}

// retire runs once per session after it completes.
func (c *MatchCoordinator) retire(result domain.MatchResult) {
	ctx := context.Background()
	c.forget(result.SessionID)
	c.releasePair(result.Left, result.Right, SessionOccupation(result.SessionID))
	c.metrics.SessionEnded(ctx, string(result.Reason))

	if c.host != nil {
		c.host.Close(ctx, result.SessionID)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordResult(ctx, result); err != nil {
			c.logger.Error("MatchCoordinator: failed to record result of session %s: %v", result.SessionID, err)
		}
	}
	c.logger.Info("MatchCoordinator: session %s completed (%s) %d-%d, winner %d",
		result.SessionID, result.Reason, result.LeftScore, result.RightScore, result.Winner)
}

// ApplyInput routes a paddle input to the session. It returns false for
// unknown sessions, non-participants and sessions that are not Active.
func (c *MatchCoordinator) ApplyInput(sessionID domain.SessionID, userID domain.UserID, in domain.Input) bool {
	session, ok := c.Session(sessionID)
	if !ok {
		return false
	}
	return session.ApplyInput(userID, in)
}

// Abort cancels a running session.
func (c *MatchCoordinator) Abort(ctx context.Context, sessionID domain.SessionID, reason string) bool {
	session, ok := c.Session(sessionID)
	if !ok {
		return false
	}
	return session.Abort(ctx, reason)
}

// AbortUser cancels the session the user is playing in, if any.
func (c *MatchCoordinator) AbortUser(ctx context.Context, userID domain.UserID, reason string) bool {
	return c.AbortUserSession(ctx, userID, reason) == nil
}

// AbortUserSession is AbortUser with the failure spelled out: it wraps
// ErrSessionNotFound when the user occupies no session, and
// ErrSessionNotActive when the session has already completed or not yet
// started.
func (c *MatchCoordinator) AbortUserSession(ctx context.Context, userID domain.UserID, reason string) error {
	session, ok := c.SessionForUser(userID)
	if !ok {
		return eris.Wrapf(ErrSessionNotFound, "user %d is not in a session", userID)
	}
	if !session.Abort(ctx, reason) {
		return eris.Wrapf(ErrSessionNotActive, "session %s of user %d", session.ID(), userID)
	}
	return nil
}

// Session looks up a running session.
func (c *MatchCoordinator) Session(id domain.SessionID) (*MatchSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

// SessionForUser returns the session the user currently occupies.
func (c *MatchCoordinator) SessionForUser(userID domain.UserID) (*MatchSession, bool) {
	occ, ok := c.directory.Occupation(userID)
	if !ok || occ.Kind != OccupationSession {
		return nil, false
	}
	return c.Session(domain.SessionID(occ.ID))
}

// ActiveSessions counts sessions that have not been retired.
func (c *MatchCoordinator) ActiveSessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Shutdown refuses new sessions and aborts every running one.
func (c *MatchCoordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	running := make([]*MatchSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		running = append(running, s)
	}
	c.mu.Unlock()

	for _, s := range running {
		s.Abort(ctx, domain.AbortShutdown)
	}
}

func (c *MatchCoordinator) forget(id domain.SessionID) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

func (c *MatchCoordinator) releasePair(a, b domain.UserID, occ Occupation) {
	c.directory.ReleaseIf(a, occ)
	c.directory.ReleaseIf(b, occ)
}

func (c *MatchCoordinator) reject(ctx context.Context, inv domain.Invitation, reason string) {
	msg := protocol.MatchRejected{InvitationID: inv.ID, FromUserID: inv.From, ToUserID: inv.To, Reason: reason}
	for _, u := range [2]domain.UserID{inv.From, inv.To} {
		if err := c.transport.SendTo(ctx, u, msg); err != nil {
			c.logger.Warn("MatchCoordinator: failed to deliver %s to user %d: %v", msg.MessageType(), u, err)
			c.metrics.TransportFailure(ctx, string(msg.MessageType()))
		}
	}
}

var _ AcceptanceHandler = (*MatchCoordinator)(nil)
