package app

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"paddleduel/internal/clock"
	"paddleduel/internal/domain"
	"paddleduel/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = time.Second / 60

func newTestSession(t *testing.T, id domain.SessionID, clk clock.Clock, transport *recordingTransport, opts ...SessionOption) *MatchSession {
	t.Helper()
	base := []SessionOption{WithSessionRand(rand.New(rand.NewSource(7)))}
	s, err := NewMatchSession(id, 1, 2, testSessionConfig(), clk, transport, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

// primeGoal places the ball so the next tick scores for side.
func primeGoal(s *MatchSession, side domain.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.cfg.Arena
	speed := a.BallSpeed
	if side == domain.SideLeft {
		s.state.Ball = domain.Ball{Pos: domain.Vec{X: a.Width - a.BallRadius - 1, Y: 30}, Vel: domain.Vec{X: speed}}
	} else {
		s.state.Ball = domain.Ball{Pos: domain.Vec{X: a.BallRadius + 1, Y: 30}, Vel: domain.Vec{X: -speed}}
	}
}

// parkBall stops the ball at center so ticks only move paddles.
func parkBall(s *MatchSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Ball = domain.Ball{Pos: s.cfg.Arena.Center()}
}

func TestNewMatchSessionStartsWaitingAndCentered(t *testing.T) {
	s := newTestSession(t, "s-1", clock.NewFake(testEpoch), &recordingTransport{})
	snap := s.Snapshot()
	cfg := testSessionConfig()

	assert.Equal(t, domain.SessionWaiting, snap.Status)
	assert.Equal(t, 0, snap.State.LeftScore)
	assert.Equal(t, 0, snap.State.RightScore)
	assert.Equal(t, cfg.Arena.Center(), snap.State.Ball.Pos)
	assert.Equal(t, cfg.Arena.CenteredPaddle(), snap.State.LeftPaddle)
	assert.Equal(t, cfg.Arena.CenteredPaddle(), snap.State.RightPaddle)

	left, right := s.Players()
	assert.Equal(t, domain.UserID(1), left)
	assert.Equal(t, domain.UserID(2), right)
}

func TestNewMatchSessionValidatesInput(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	cfg := testSessionConfig()
	tests := []struct {
		name        string
		id          domain.SessionID
		left, right domain.UserID
		mutate      func(*SessionConfig)
	}{
		{name: "empty id", id: "", left: 1, right: 2},
		{name: "same player", id: "s", left: 1, right: 1},
		{name: "invalid player", id: "s", left: 0, right: 2},
		{name: "zero winning score", id: "s", left: 1, right: 2, mutate: func(c *SessionConfig) { c.WinningScore = 0 }},
		{name: "zero tick interval", id: "s", left: 1, right: 2, mutate: func(c *SessionConfig) { c.TickInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			_, err := NewMatchSession(tt.id, tt.left, tt.right, c, clk, &recordingTransport{})
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestStartOnlyOnce(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{}
	s := newTestSession(t, "s-1", clk, transport)

	require.True(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	assert.Equal(t, domain.SessionActive, s.Status())

	started := transport.broadcastsFor("s-1", protocol.TypeMatchStarted)
	require.Len(t, started, 1)
	msg := started[0].(protocol.MatchStarted)
	assert.Equal(t, testEpoch.UnixMilli(), msg.StartedAt)
	assert.NotZero(t, msg.State.BallDX, "ball is served on start")
	assert.Equal(t, 1, clk.Pending(), "one tick loop")
}

func TestTickLoopBroadcastsSnapshots(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{}
	s := newTestSession(t, "s-1", clk, transport)
	require.True(t, s.Start(context.Background()))

	clk.Advance(10 * frame)

	ticks := transport.broadcastsFor("s-1", protocol.TypeMatchStateTick)
	require.Len(t, ticks, 10)
	for i, m := range ticks {
		assert.Equal(t, uint64(i+1), m.(protocol.MatchStateTick).Tick)
	}
	assert.Equal(t, uint64(10), s.Snapshot().Tick)
}

func TestTickIgnoredUnlessActive(t *testing.T) {
	transport := &recordingTransport{}
	s := newTestSession(t, "s-1", clock.NewFake(testEpoch), transport)

	s.Tick(frame.Seconds())
	assert.Equal(t, uint64(0), s.Snapshot().Tick)
	assert.Empty(t, transport.broadcastsFor("s-1", protocol.TypeMatchStateTick))
}

func TestApplyInputKeepsPaddlesInBounds(t *testing.T) {
	s := newTestSession(t, "s-1", clock.NewFake(testEpoch), &recordingTransport{})
	assert.False(t, s.ApplyInput(1, domain.Input{Up: true}), "input before start is ignored")
	require.True(t, s.Start(context.Background()))

	rng := rand.New(rand.NewSource(42))
	maxY := testSessionConfig().Arena.MaxPaddleY()
	for i := 0; i < 2000; i++ {
		user := domain.UserID(1 + rng.Intn(2))
		require.True(t, s.ApplyInput(user, domain.Input{Up: rng.Intn(2) == 0, Down: rng.Intn(3) == 0}))
		parkBall(s)
		s.Tick(frame.Seconds())
		st := s.Snapshot().State
		require.GreaterOrEqual(t, st.LeftPaddle, 0.0)
		require.LessOrEqual(t, st.LeftPaddle, maxY)
		require.GreaterOrEqual(t, st.RightPaddle, 0.0)
		require.LessOrEqual(t, st.RightPaddle, maxY)
	}
	assert.False(t, s.ApplyInput(3, domain.Input{Up: true}), "non-participant")
}

func TestInputsWithinOneTickMoveOneStep(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	s := newTestSession(t, "s-1", clk, &recordingTransport{})
	require.True(t, s.Start(context.Background()))
	arena := testSessionConfig().Arena
	centered := arena.CenteredPaddle()

	for i := 0; i < 10; i++ {
		require.True(t, s.ApplyInput(1, domain.Input{Up: true}))
		require.True(t, s.ApplyInput(2, domain.Input{Down: true}))
	}
	st := s.Snapshot().State
	assert.Equal(t, centered, st.LeftPaddle, "nothing moves before the tick")
	assert.Equal(t, centered, st.RightPaddle)

	clk.Advance(frame)
	st = s.Snapshot().State
	assert.Equal(t, centered-arena.PaddleStep, st.LeftPaddle)
	assert.Equal(t, centered+arena.PaddleStep, st.RightPaddle)

	// Inputs are consumed by the tick that applies them.
	clk.Advance(frame)
	st = s.Snapshot().State
	assert.Equal(t, centered-arena.PaddleStep, st.LeftPaddle)
	assert.Equal(t, centered+arena.PaddleStep, st.RightPaddle)

	// The latest input in a tick wins.
	require.True(t, s.ApplyInput(1, domain.Input{Up: true}))
	require.True(t, s.ApplyInput(1, domain.Input{Down: true}))
	clk.Advance(frame)
	assert.Equal(t, centered, s.Snapshot().State.LeftPaddle)
}

func TestAbortBeforeStartMakesStartRefuse(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{}
	s := newTestSession(t, "s-1", clk, transport)
	var results []domain.MatchResult
	s.OnEnd(func(r domain.MatchResult) { results = append(results, r) })

	assert.False(t, s.Abort(context.Background(), domain.AbortShutdown), "nothing completes while waiting")
	assert.Equal(t, domain.SessionWaiting, s.Status())
	assert.False(t, s.End(context.Background()))

	assert.False(t, s.Start(context.Background()))
	assert.Equal(t, domain.SessionCompleted, s.Status())
	clk.Advance(time.Second)
	assert.Equal(t, uint64(0), s.Snapshot().Tick)
	assert.Equal(t, 0, clk.Pending())

	require.Len(t, results, 1)
	assert.Equal(t, domain.AbortShutdown, results[0].AbortReason)
	assert.Empty(t, transport.broadcastsFor("s-1", protocol.TypeMatchStarted))
	ended := transport.broadcastsFor("s-1", protocol.TypeMatchEnded)
	require.Len(t, ended, 1)
	assert.True(t, ended[0].(protocol.MatchEnded).Aborted)
}

func TestSessionCompletesAtWinningScore(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{}
	s := newTestSession(t, "s-1", clk, transport)

	var results []domain.MatchResult
	s.OnEnd(func(r domain.MatchResult) { results = append(results, r) })
	require.True(t, s.Start(context.Background()))

	for i := 0; i < 3; i++ {
		primeGoal(s, domain.SideRight)
		clk.Advance(frame)
	}

	assert.Equal(t, domain.SessionCompleted, s.Status())
	result, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 0, result.LeftScore)
	assert.Equal(t, 3, result.RightScore)
	assert.Equal(t, domain.UserID(2), result.Winner)
	assert.Equal(t, domain.UserID(1), result.Loser())
	assert.Equal(t, domain.EndReasonScore, result.Reason)
	require.Len(t, results, 1)
	assert.Equal(t, result, results[0])
	assert.Equal(t, 0, clk.Pending(), "tick loop stopped")

	ended := transport.broadcastsFor("s-1", protocol.TypeMatchEnded)
	require.Len(t, ended, 1)
	msg := ended[0].(protocol.MatchEnded)
	assert.Equal(t, domain.UserID(2), msg.WinnerUserID)
	assert.False(t, msg.Aborted)

	// The final snapshot goes out before match.ended.
	transport.mu.Lock()
	last := transport.broadcast[len(transport.broadcast)-2].msg
	transport.mu.Unlock()
	assert.Equal(t, 3, last.(protocol.MatchStateTick).State.RightScore)

	clk.Advance(time.Second)
	assert.Equal(t, 3, s.Snapshot().State.RightScore, "scores frozen after completion")
	assert.False(t, s.ApplyInput(1, domain.Input{Up: true}))
	assert.False(t, s.Abort(context.Background(), domain.AbortForfeit))
}

func TestEndPicksLeader(t *testing.T) {
	tests := []struct {
		name   string
		goals  []domain.Side
		winner domain.UserID
	}{
		{"left leads", []domain.Side{domain.SideLeft, domain.SideLeft, domain.SideRight}, 1},
		{"right leads", []domain.Side{domain.SideRight}, 2},
		{"tie", []domain.Side{domain.SideLeft, domain.SideRight}, 0},
		{"no goals", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewFake(testEpoch)
			s := newTestSession(t, "s-1", clk, &recordingTransport{})
			assert.False(t, s.End(context.Background()), "cannot end a waiting session")
			require.True(t, s.Start(context.Background()))
			for _, side := range tt.goals {
				primeGoal(s, side)
				clk.Advance(frame)
			}
			require.True(t, s.End(context.Background()))
			result, ok := s.Result()
			require.True(t, ok)
			assert.Equal(t, tt.winner, result.Winner)
			assert.False(t, result.Aborted())
			assert.False(t, s.End(context.Background()))
		})
	}
}

func TestAbortHasNoWinner(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{}
	s := newTestSession(t, "s-1", clk, transport)
	require.True(t, s.Start(context.Background()))
	primeGoal(s, domain.SideLeft)
	clk.Advance(frame)

	require.True(t, s.Abort(context.Background(), domain.AbortParticipantLeft))
	result, _ := s.Result()
	assert.True(t, result.Aborted())
	assert.Equal(t, domain.UserID(0), result.Winner)
	assert.Equal(t, 1, result.LeftScore)
	assert.Equal(t, domain.AbortParticipantLeft, result.AbortReason)

	ended := transport.broadcastsFor("s-1", protocol.TypeMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, domain.AbortParticipantLeft, ended[0].(protocol.MatchEnded).Reason)
}

func TestSessionsAreIsolated(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{}
	a := newTestSession(t, "s-a", clk, transport)
	b, err := NewMatchSession("s-b", 3, 4, testSessionConfig(), clk, transport, WithSessionRand(rand.New(rand.NewSource(9))))
	require.NoError(t, err)
	require.True(t, a.Start(context.Background()))
	require.True(t, b.Start(context.Background()))

	for i := 0; i < 50; i++ {
		require.True(t, a.ApplyInput(1, domain.Input{Up: true}))
		assert.False(t, b.ApplyInput(1, domain.Input{Up: true}), "user 1 is not in session b")
		clk.Advance(frame)
	}
	primeGoal(a, domain.SideLeft)
	clk.Advance(frame)

	assert.Equal(t, 0.0, a.Snapshot().State.LeftPaddle)
	assert.Equal(t, testSessionConfig().Arena.CenteredPaddle(), b.Snapshot().State.LeftPaddle)
	assert.Equal(t, 1, a.Snapshot().State.LeftScore)
	assert.Equal(t, 0, b.Snapshot().State.LeftScore)
	assert.Len(t, transport.broadcastsFor("s-a", protocol.TypeMatchStateTick), 51)
	assert.Len(t, transport.broadcastsFor("s-b", protocol.TypeMatchStateTick), 51)
}

func TestBroadcastFailureDoesNotRollBack(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	transport := &recordingTransport{failCast: true}
	logger := &fakeLogger{}
	s := newTestSession(t, "s-1", clk, transport, WithSessionLogger(logger))

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, domain.SessionActive, s.Status())
	clk.Advance(3 * frame)
	assert.Equal(t, uint64(3), s.Snapshot().Tick)
	assert.NotEmpty(t, logger.warnings())
}

func TestAbortConcurrentWithTicks(t *testing.T) {
	for i := 0; i < 50; i++ {
		transport := &recordingTransport{}
		s := newTestSession(t, "s-1", clock.NewFake(testEpoch), transport)
		require.True(t, s.Start(context.Background()))

		var ends int
		var mu sync.Mutex
		s.OnEnd(func(domain.MatchResult) {
			mu.Lock()
			ends++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Tick(frame.Seconds())
			}
		}()
		go func() {
			defer wg.Done()
			s.Abort(context.Background(), domain.AbortForfeit)
		}()
		wg.Wait()

		require.Equal(t, domain.SessionCompleted, s.Status())
		require.Equal(t, 1, ends)
		require.Len(t, transport.broadcastsFor("s-1", protocol.TypeMatchEnded), 1)
		frozen := s.Snapshot().Tick
		s.Tick(frame.Seconds())
		require.Equal(t, frozen, s.Snapshot().Tick)
	}
}

func TestOnEndAfterCompletionRunsImmediately(t *testing.T) {
	s := newTestSession(t, "s-1", clock.NewFake(testEpoch), &recordingTransport{})
	require.True(t, s.Start(context.Background()))
	require.True(t, s.Abort(context.Background(), domain.AbortShutdown))

	called := false
	s.OnEnd(func(r domain.MatchResult) {
		called = true
		assert.Equal(t, domain.AbortShutdown, r.AbortReason)
	})
	assert.True(t, called)
}
