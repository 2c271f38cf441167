package nakama

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"paddleduel/internal/app"
	"paddleduel/internal/app/onboarding"
	"paddleduel/internal/clock"
	"paddleduel/internal/config"
	"paddleduel/internal/protocol"
	"paddleduel/internal/telemetry"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// Module holds the components shared by RPCs, hooks and relay matches.
type Module struct {
	cfg         config.GameConfig
	logger      runtime.Logger
	players     *PlayerIndex
	registry    *app.InvitationRegistry
	coordinator *app.MatchCoordinator
	onboarding  *onboarding.Service
	relay       *relayDeps
}

// InitModule loads configuration from the runtime environment, builds the
// module and registers its RPCs, hooks and relay match handler.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	environ, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	cfg, err := config.FromEnv(environ)
	if err != nil {
		return eris.Wrap(err, "failed to load game config")
	}

	shutdownTelemetry, err := telemetry.Init(ctx, environ, logger)
	if err != nil {
		return eris.Wrap(err, "failed to init telemetry")
	}

	module, err := NewModule(logger, nk, cfg, clock.Real(), telemetry.Global())
	if err != nil {
		return eris.Wrap(err, "failed to build module")
	}

	if err := module.Register(initializer); err != nil {
		return eris.Wrap(err, "failed to register module")
	}

	if err := initializer.RegisterShutdown(func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) {
		module.Shutdown(ctx)
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("Telemetry: shutdown failed: %v", err)
		}
	}); err != nil {
		return eris.Wrap(err, "failed to register shutdown")
	}

	logger.Info("PaddleDuel Go module loaded (winning score %d, %d Hz, %s wire format).", cfg.WinningScore, cfg.TickRate, cfg.WireFormat)
	return nil
}

// NewModule wires the core against the Nakama adapters.
func NewModule(logger runtime.Logger, nk runtime.NakamaModule, cfg config.GameConfig, clk clock.Clock, metrics *telemetry.Metrics) (*Module, error) {
	codec, err := protocol.ForFormat(cfg.WireFormat)
	if err != nil {
		return nil, eris.Wrap(err, "failed to select wire codec")
	}

	secret := cfg.TicketSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("Module: no ticket secret configured, using a per-process secret")
	}
	tickets := app.NewTicketService(secret, cfg.TicketTTL(), clk.Now)

	hub := NewRelayHub(codec, cfg.RelayQueueCapacity)
	players := NewPlayerIndex(nk)
	transport := NewNotificationTransport(nk, players, hub)
	directory := app.NewSessionDirectory()

	coordinator := app.NewMatchCoordinator(directory, transport, clk, app.SessionConfigFrom(cfg),
		app.WithCoordinatorLogger(logger),
		app.WithSessionHost(NewRelayHost(nk, hub, players, tickets, transport, logger)),
		app.WithResultRecorder(NewStorageResultRecorder(nk, players, cfg.ResultsCollection)),
		app.WithCoordinatorMetrics(metrics),
	)
	registry := app.NewInvitationRegistry(directory, transport, clk,
		app.WithRegistryLogger(logger),
		app.WithIdentityLookup(players),
		app.WithExpiration(cfg.InvitationExpiration()),
		app.WithAcceptanceHandler(coordinator),
		app.WithRegistryMetrics(metrics),
	)

	return &Module{
		cfg:         cfg,
		logger:      logger,
		players:     players,
		registry:    registry,
		coordinator: coordinator,
		onboarding: onboarding.NewService(NewNakamaAccountAdapter(nk), players,
			rand.New(rand.NewSource(time.Now().UnixNano()))),
		relay: &relayDeps{
			hub:         hub,
			sessions:    coordinator,
			tickets:     tickets,
			tickRate:    cfg.TickRate,
			joinTimeout: cfg.JoinTimeoutSeconds,
		},
	}, nil
}

// Register installs RPCs, hooks and the relay match handler.
func (m *Module) Register(initializer runtime.Initializer) error {
	if err := m.RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameRelay, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newRelayMatch(m.relay), nil
	}); err != nil {
		return eris.Wrapf(err, "failed to register match %s", MatchNameRelay)
	}

	if err := initializer.RegisterAfterAuthenticateDevice(m.AfterAuthenticateDevice); err != nil {
		return eris.Wrap(err, "failed to register after authenticate hook")
	}
	if err := initializer.RegisterEventSessionEnd(m.OnSessionEnd); err != nil {
		return eris.Wrap(err, "failed to register session end event")
	}
	return nil
}

// Shutdown stops accepting invitations and aborts every running session.
func (m *Module) Shutdown(ctx context.Context) {
	m.registry.Close()
	m.coordinator.Shutdown(ctx)
	m.logger.Info("Module: shut down")
}
