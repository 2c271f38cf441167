package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"paddleduel/internal/clock"
	"paddleduel/internal/config"
	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
	"paddleduel/internal/protocol"
	"paddleduel/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// SessionConfig holds the rules a session plays by.
type SessionConfig struct {
	Arena        domain.Arena
	WinningScore int
	TickInterval time.Duration
}

// SessionConfigFrom derives session rules from the game configuration.
func SessionConfigFrom(cfg config.GameConfig) SessionConfig {
	return SessionConfig{
		Arena: domain.Arena{
			Width:        cfg.ArenaWidth,
			Height:       cfg.ArenaHeight,
			PaddleWidth:  cfg.PaddleWidth,
			PaddleHeight: cfg.PaddleHeight,
			PaddleMargin: cfg.PaddleMargin,
			PaddleStep:   cfg.PaddleStep,
			BallRadius:   cfg.BallRadius,
			BallSpeed:    cfg.BallSpeed,
		},
		WinningScore: cfg.WinningScore,
		TickInterval: cfg.TickInterval(),
	}
}

// SessionOption customizes a MatchSession.
type SessionOption func(*MatchSession)

// WithSessionLogger sets the logger used for delivery failures.
func WithSessionLogger(logger runtime.Logger) SessionOption {
	return func(s *MatchSession) { s.logger = orNop(logger) }
}

// WithSessionRand seeds serve directions. Tests pass a fixed source.
func WithSessionRand(rng *rand.Rand) SessionOption {
	return func(s *MatchSession) { s.rng = rng }
}

// WithSessionMetrics records tick timings and delivery failures.
func WithSessionMetrics(m *telemetry.Metrics) SessionOption {
	return func(s *MatchSession) { s.metrics = m }
}

// MatchSession owns one match: its simulation state, its tick loop and its
// terminal result. Every mutation happens under mu; messages are built under
// the lock and sent after it is released, so a slow or failing transport
// never blocks or rolls back the state machine.
type MatchSession struct {
	id     domain.SessionID
	left   domain.UserID
	right  domain.UserID
	cfg    SessionConfig
	clock  clock.Clock
	out    ports.Transport
	logger runtime.Logger
	rng    *rand.Rand

	metrics *telemetry.Metrics

	mu        sync.Mutex
	status    domain.SessionStatus
	state     domain.MatchState
	tick      uint64
	startedAt time.Time
	endedAt   time.Time
	loop      clock.CancelHandle
	ctx       context.Context
	result    domain.MatchResult
	onEnd     []func(domain.MatchResult)

	// inputs holds the latest input per side, consumed by the next tick.
	inputs [2]domain.Input
	// abortBeforeStart is set when an abort arrives before Start.
	abortBeforeStart bool
	abortReason      string
}

// NewMatchSession creates a Waiting session with the ball and paddles centered.
// left and right must be distinct positive ids.
func NewMatchSession(id domain.SessionID, left, right domain.UserID, cfg SessionConfig, clk clock.Clock, transport ports.Transport, opts ...SessionOption) (*MatchSession, error) {
	if id == "" {
		return nil, eris.Wrap(ErrInvalidArgument, "session id is required")
	}
	if !left.Valid() || !right.Valid() || left == right {
		return nil, eris.Wrapf(ErrInvalidArgument, "session needs two distinct positive players, got %d and %d", left, right)
	}
	if cfg.WinningScore < 1 || cfg.TickInterval <= 0 {
		return nil, eris.Wrapf(ErrInvalidArgument, "winning score %d and tick interval %v must be positive", cfg.WinningScore, cfg.TickInterval)
	}

	s := &MatchSession{
		id:     id,
		left:   left,
		right:  right,
		cfg:    cfg,
		clock:  clk,
		out:    transport,
		logger: nopLogger{},
		status: domain.SessionWaiting,
		state:  cfg.Arena.InitialState(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

// ID returns the session id.
func (s *MatchSession) ID() domain.SessionID { return s.id }

// Players returns the left and right participants.
func (s *MatchSession) Players() (left, right domain.UserID) { return s.left, s.right }

// Status returns the current lifecycle status.
func (s *MatchSession) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the current public state.
func (s *MatchSession) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Result returns the final result once the session has completed.
func (s *MatchSession) Result() (domain.MatchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.status == domain.SessionCompleted
}

// OnEnd registers fn to run once, after the session completes.
// Registering on a completed session runs fn immediately.
func (s *MatchSession) OnEnd(fn func(domain.MatchResult)) {
	s.mu.Lock()
	if s.status != domain.SessionCompleted {
		s.onEnd = append(s.onEnd, fn)
		s.mu.Unlock()
		return
	}
	result := s.result
	s.mu.Unlock()
	fn(result)
}

// Start moves a Waiting session to Active, serves the ball, broadcasts
// match.started and begins the tick loop. It returns false if the session
// was not Waiting, or if it was aborted while waiting; in that case the
// session completes as aborted without ever ticking. A failed broadcast is
// reported but does not undo the start.
func (s *MatchSession) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.status != domain.SessionWaiting {
		s.mu.Unlock()
		return false
	}
	if s.abortBeforeStart {
		s.ctx = context.WithoutCancel(ctx)
		ended, hooks := s.completeLocked(domain.EndReasonAborted, s.abortReason)
		s.mu.Unlock()
		s.finish(*ended, hooks)
		return false
	}
	s.status = domain.SessionActive
	s.startedAt = s.clock.Now()
	s.ctx = context.WithoutCancel(ctx)
	s.cfg.Arena.Serve(&s.state, s.rng)
	started := protocol.MatchStarted{
		SessionID:   s.id,
		LeftUserID:  s.left,
		RightUserID: s.right,
		StartedAt:   s.startedAt.UnixMilli(),
		State:       protocol.StateFrom(s.state),
	}
	s.mu.Unlock()

	s.metrics.SessionStarted(ctx)
	s.broadcast(started)

	// The loop starts after match.started went out so no tick overtakes it.
	s.mu.Lock()
	if s.status == domain.SessionActive && s.loop == nil {
		s.loop = s.clock.Every(s.cfg.TickInterval, s.onTick)
	}
	s.mu.Unlock()
	return true
}

func (s *MatchSession) onTick() {
	begin := time.Now()
	s.Tick(s.cfg.TickInterval.Seconds())
	s.metrics.TickDuration(s.ctx, time.Since(begin))
}

// Tick advances an Active session by dt seconds, broadcasts the resulting
// snapshot and completes the session the moment a side reaches the
// winning score. Ticks on a session that is not Active do nothing.
func (s *MatchSession) Tick(dt float64) {
	s.mu.Lock()
	if s.status != domain.SessionActive {
		s.mu.Unlock()
		return
	}
	s.tick++
	for side, in := range s.inputs {
		s.cfg.Arena.ApplyInput(&s.state, domain.Side(side), in)
	}
	s.inputs = [2]domain.Input{}
	res := s.cfg.Arena.Step(&s.state, dt, s.rng)
	snapshot := protocol.MatchStateTick{
		SessionID:   s.id,
		LeftUserID:  s.left,
		RightUserID: s.right,
		Tick:        s.tick,
		State:       protocol.StateFrom(s.state),
	}
	var ended *protocol.MatchEnded
	var hooks []func(domain.MatchResult)
	if res.Scored && (s.state.LeftScore >= s.cfg.WinningScore || s.state.RightScore >= s.cfg.WinningScore) {
		ended, hooks = s.completeLocked(domain.EndReasonScore, "")
	}
	s.mu.Unlock()

	s.broadcast(snapshot)
	if ended != nil {
		s.finish(*ended, hooks)
	}
}

// ApplyInput records the acting player's input for the next tick. Later
// input within the same tick replaces earlier input, so a paddle moves at
// most one step per direction per tick however many messages arrive.
// Input from a non-participant or on a session that is not Active is
// ignored and reported as false.
func (s *MatchSession) ApplyInput(userID domain.UserID, in domain.Input) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.SessionActive {
		return false
	}
	switch userID {
	case s.left:
		s.inputs[domain.SideLeft] = in
	case s.right:
		s.inputs[domain.SideRight] = in
	default:
		return false
	}
	return true
}

// End completes an Active session normally. The winner is the side at or
// above the winning score, or otherwise the leader; a level score has no
// winner. It returns false if the session was not Active.
func (s *MatchSession) End(ctx context.Context) bool {
	return s.complete(domain.EndReasonScore, "")
}

// Abort completes an Active session with no winner and the given reason.
// It is safe to call concurrently with an in-flight tick; whichever
// completes the session first wins and the other is a no-op. An abort on a
// Waiting session is remembered and makes the coming Start refuse; it
// still returns false because nothing has completed yet.
func (s *MatchSession) Abort(ctx context.Context, reason string) bool {
	return s.complete(domain.EndReasonAborted, reason)
}

func (s *MatchSession) complete(reason domain.EndReason, abortReason string) bool {
	s.mu.Lock()
	if s.status != domain.SessionActive {
		if s.status == domain.SessionWaiting {
			if reason == domain.EndReasonAborted && !s.abortBeforeStart {
				s.abortBeforeStart, s.abortReason = true, abortReason
				s.logger.Debug("MatchSession %s: abort (%s) recorded before start", s.id, abortReason)
			} else {
				s.logger.Debug("MatchSession %s: ignoring %s before start", s.id, reason)
			}
		}
		s.mu.Unlock()
		return false
	}
	ended, hooks := s.completeLocked(reason, abortReason)
	s.mu.Unlock()

	s.finish(*ended, hooks)
	return true
}

// completeLocked performs the single Active -> Completed transition.
// The caller holds mu and must call finish with the results after unlocking.
func (s *MatchSession) completeLocked(reason domain.EndReason, abortReason string) (*protocol.MatchEnded, []func(domain.MatchResult)) {
	s.status = domain.SessionCompleted
	s.endedAt = s.clock.Now()
	if s.loop != nil {
		s.loop.Cancel()
	}

	result := domain.MatchResult{
		SessionID:  s.id,
		Left:       s.left,
		Right:      s.right,
		LeftScore:  s.state.LeftScore,
		RightScore: s.state.RightScore,
		Reason:     reason,
		Ticks:      s.tick,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
	}
	if reason == domain.EndReasonAborted {
		result.AbortReason = abortReason
	} else if side, ok := s.winnerLocked(); ok {
		result.Winner = s.userOn(side)
	}
	s.result = result

	hooks := s.onEnd
	s.onEnd = nil
	return &protocol.MatchEnded{
		SessionID:    s.id,
		LeftUserID:   s.left,
		RightUserID:  s.right,
		LeftScore:    result.LeftScore,
		RightScore:   result.RightScore,
		WinnerUserID: result.Winner,
		Aborted:      result.Aborted(),
		Reason:       result.AbortReason,
		EndedAt:      s.endedAt.UnixMilli(),
	}, hooks
}

func (s *MatchSession) winnerLocked() (domain.Side, bool) {
	switch {
	case s.state.LeftScore >= s.cfg.WinningScore:
		return domain.SideLeft, true
	case s.state.RightScore >= s.cfg.WinningScore:
		return domain.SideRight, true
	default:
		return s.state.Leader()
	}
}

func (s *MatchSession) userOn(side domain.Side) domain.UserID {
	if side == domain.SideLeft {
		return s.left
	}
	return s.right
}

func (s *MatchSession) finish(ended protocol.MatchEnded, hooks []func(domain.MatchResult)) {
	s.broadcast(ended)
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(result)
	}
}

func (s *MatchSession) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		SessionID: s.id,
		Left:      s.left,
		Right:     s.right,
		Status:    s.status,
		Tick:      s.tick,
		State:     s.state,
	}
}

func (s *MatchSession) broadcast(msg protocol.Message) {
	if err := s.out.Broadcast(s.ctx, s.id, msg); err != nil {
		s.logger.Warn("MatchSession %s: failed to broadcast %s: %v", s.id, msg.MessageType(), err)
		s.metrics.TransportFailure(s.ctx, string(msg.MessageType()))
	}
}
