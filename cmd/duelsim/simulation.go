package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"paddleduel/internal/app"
	"paddleduel/internal/bot"
	"paddleduel/internal/clock"
	"paddleduel/internal/config"
	"paddleduel/internal/domain"
	"paddleduel/internal/protocol"
	"paddleduel/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

const (
	leftUser  domain.UserID = 1
	rightUser domain.UserID = 2

	abortTimeLimit = "time_limit"
)

type simOptions struct {
	Config     config.GameConfig
	Left       bot.BotLevel
	Right      bot.BotLevel
	Tuning     bot.Tuning
	Seed       int64
	AbortAfter time.Duration
}

// simulation wires the invitation registry, coordinator and two bot agents
// together and plays one duel. The left bot challenges and the right accepts.
type simulation struct {
	opts        simOptions
	logger      runtime.Logger
	clock       clock.Clock
	rules       app.SessionConfig
	transport   *logTransport
	registry    *app.InvitationRegistry
	coordinator *app.MatchCoordinator
	agents      []*bot.Agent
	done        chan domain.MatchResult

	mu       sync.Mutex
	session  *app.MatchSession
	loop     clock.CancelHandle
	deadline clock.CancelHandle
}

func newSimulation(opts simOptions, logger runtime.Logger, clk clock.Clock, metrics *telemetry.Metrics) (*simulation, error) {
	codec, err := protocol.ForFormat(opts.Config.WireFormat)
	if err != nil {
		return nil, err
	}
	rules := app.SessionConfigFrom(opts.Config)
	transport := newLogTransport(logger, codec)
	directory := app.NewSessionDirectory()

	seed := opts.Seed
	coordinator := app.NewMatchCoordinator(directory, transport, clk, rules,
		app.WithCoordinatorLogger(logger),
		app.WithCoordinatorMetrics(metrics),
		app.WithRandSource(func() *rand.Rand { return rand.New(rand.NewSource(seed)) }),
	)
	registry := app.NewInvitationRegistry(directory, transport, clk,
		app.WithRegistryLogger(logger),
		app.WithExpiration(opts.Config.InvitationExpiration()),
		app.WithRegistryMetrics(metrics),
		app.WithAcceptanceHandler(coordinator),
	)

	left, err := bot.NewBrain(opts.Left, opts.Tuning, rand.New(rand.NewSource(seed+1)))
	if err != nil {
		return nil, err
	}
	right, err := bot.NewBrain(opts.Right, opts.Tuning, rand.New(rand.NewSource(seed+2)))
	if err != nil {
		return nil, err
	}

	return &simulation{
		opts:        opts,
		logger:      logger,
		clock:       clk,
		rules:       rules,
		transport:   transport,
		registry:    registry,
		coordinator: coordinator,
		agents: []*bot.Agent{
			{UserID: leftUser, Name: opts.Left.String() + "-left", Strategy: left},
			{UserID: rightUser, Name: opts.Right.String() + "-right", Strategy: right},
		},
		done: make(chan domain.MatchResult, 1),
	}, nil
}

// Start plays the invitation handshake and begins driving the bots.
func (s *simulation) Start(ctx context.Context) error {
	invitationID, err := s.registry.SendInvitation(ctx, leftUser, rightUser)
	if err != nil {
		return eris.Wrap(err, "failed to send invitation")
	}
	if !s.registry.AcceptInvitation(ctx, invitationID, rightUser) {
		return eris.Errorf("invitation %s could not be accepted", invitationID)
	}
	session, ok := s.coordinator.SessionForUser(leftUser)
	if !ok {
		return eris.Errorf("no session was started for invitation %s", invitationID)
	}
	s.logger.Info("duelsim: %s vs %s in session %s (seed %d)", s.agents[0].Name, s.agents[1].Name, session.ID(), s.opts.Seed)

	s.mu.Lock()
	s.session = session
	s.loop = s.clock.Every(s.rules.TickInterval, s.drive)
	if s.opts.AbortAfter > 0 {
		s.deadline = s.clock.After(s.opts.AbortAfter, func() {
			s.logger.Warn("duelsim: time limit of %s reached", s.opts.AbortAfter)
			s.coordinator.Abort(context.Background(), session.ID(), abortTimeLimit)
		})
	}
	s.mu.Unlock()

	session.OnEnd(s.finish)
	return nil
}

func (s *simulation) drive() {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	snap := session.Snapshot()
	for _, agent := range s.agents {
		if in, ok := agent.Play(s.rules.Arena, snap); ok {
			s.coordinator.ApplyInput(snap.SessionID, agent.UserID, in)
		}
	}
}

func (s *simulation) finish(result domain.MatchResult) {
	s.mu.Lock()
	loop, deadline := s.loop, s.deadline
	s.mu.Unlock()
	if loop != nil {
		loop.Cancel()
	}
	if deadline != nil {
		deadline.Cancel()
	}
	s.done <- result
}

// Stop aborts a running duel and refuses new invitations.
func (s *simulation) Stop(ctx context.Context) {
	s.registry.Close()
	s.coordinator.Shutdown(ctx)
}

// Done yields the result once the session completes.
func (s *simulation) Done() <-chan domain.MatchResult {
	return s.done
}

func (s *simulation) Stats() transportStats {
	return s.transport.Stats()
}
