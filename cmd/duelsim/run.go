package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"paddleduel/internal/bot"
	"paddleduel/internal/clock"
	"paddleduel/internal/config"
	"paddleduel/internal/domain"
	"paddleduel/internal/logging"
	"paddleduel/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runFlags struct {
	winningScore int
	tickRate     int
	seed         int64
	abortAfter   time.Duration
	left         string
	right        string
	missChance   float64
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play one duel and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDuel(cmd, root, flags)
		},
	}
	cmd.Flags().IntVar(&flags.winningScore, "winning-score", 0, "points needed to win (0 keeps the config value)")
	cmd.Flags().IntVar(&flags.tickRate, "tick-rate", 0, "simulation ticks per second (0 keeps the config value)")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "random seed for serves and bot misses (0 picks one)")
	cmd.Flags().DurationVar(&flags.abortAfter, "abort-after", 5*time.Minute, "abort the duel after this long (0 disables)")
	cmd.Flags().StringVar(&flags.left, "left", "smart", "left bot level (good or smart)")
	cmd.Flags().StringVar(&flags.right, "right", "good", "right bot level (good or smart)")
	cmd.Flags().Float64Var(&flags.missChance, "miss-chance", bot.DefaultTuning.MissChance, "probability the good bot misjudges a return")
	return cmd
}

func runDuel(cmd *cobra.Command, root *rootFlags, flags *runFlags) error {
	level, err := logging.ParseLevel(root.logLevel)
	if err != nil {
		return eris.Wrapf(err, "invalid --log-level %q", root.logLevel)
	}
	var logger runtime.Logger
	if root.jsonLogs {
		logger = logging.New(cmd.ErrOrStderr(), level)
	} else {
		logger = logging.NewConsole(cmd.ErrOrStderr(), level)
	}

	environ := environMap(os.Environ())
	cfg, err := loadConfig(root.configPath, environ)
	if err != nil {
		return err
	}
	opts, err := simOptionsFrom(cfg, flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, environ, logger)
	if err != nil {
		return eris.Wrap(err, "failed to initialise telemetry")
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("duelsim: telemetry shutdown failed: %v", err)
		}
	}()

	sim, err := newSimulation(opts, logger, clock.Real(), telemetry.Global())
	if err != nil {
		return err
	}
	if err := sim.Start(ctx); err != nil {
		return err
	}

	select {
	case result := <-sim.Done():
		return printResult(cmd.OutOrStdout(), result, sim.Stats())
	case <-ctx.Done():
		sim.Stop(context.Background())
		result := <-sim.Done()
		return printResult(cmd.OutOrStdout(), result, sim.Stats())
	}
}

// loadConfig layers the optional config file and DUEL_* variables over the defaults.
// The --config flag takes precedence over DUEL_CONFIG_PATH.
func loadConfig(path string, environ map[string]string) (config.GameConfig, error) {
	if path != "" {
		environ[config.EnvConfigPath] = path
	}
	return config.FromEnv(environ)
}

func simOptionsFrom(cfg config.GameConfig, flags *runFlags) (simOptions, error) {
	if flags.winningScore > 0 {
		cfg.WinningScore = flags.winningScore
	}
	if flags.tickRate > 0 {
		cfg.TickRate = flags.tickRate
	}
	if err := cfg.Validate(); err != nil {
		return simOptions{}, err
	}
	left, err := bot.ParseLevel(flags.left)
	if err != nil {
		return simOptions{}, eris.Wrap(err, "invalid --left")
	}
	right, err := bot.ParseLevel(flags.right)
	if err != nil {
		return simOptions{}, eris.Wrap(err, "invalid --right")
	}
	if flags.missChance < 0 || flags.missChance > 1 {
		return simOptions{}, fmt.Errorf("--miss-chance must be within [0, 1], got %v", flags.missChance)
	}
	seed := flags.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tuning := bot.DefaultTuning
	tuning.MissChance = flags.missChance
	return simOptions{
		Config:     cfg,
		Left:       left,
		Right:      right,
		Tuning:     tuning,
		Seed:       seed,
		AbortAfter: flags.abortAfter,
	}, nil
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

type resultSummary struct {
	Session  string `yaml:"session"`
	Outcome  string `yaml:"outcome"`
	Winner   string `yaml:"winner,omitempty"`
	Score    string `yaml:"score"`
	Reason   string `yaml:"reason,omitempty"`
	Ticks    uint64 `yaml:"ticks"`
	Duration string `yaml:"duration"`
	Messages int    `yaml:"messages"`
	Bytes    int    `yaml:"bytes"`
}

func summarize(result domain.MatchResult, stats transportStats) resultSummary {
	summary := resultSummary{
		Session:  string(result.SessionID),
		Score:    fmt.Sprintf("%d-%d", result.LeftScore, result.RightScore),
		Ticks:    result.Ticks,
		Duration: result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond).String(),
		Messages: stats.Messages,
		Bytes:    stats.Bytes,
	}
	switch {
	case result.Aborted():
		summary.Outcome = "aborted"
		summary.Reason = result.AbortReason
	case result.Winner == result.Left:
		summary.Outcome = "won"
		summary.Winner = "left"
	case result.Winner == result.Right:
		summary.Outcome = "won"
		summary.Winner = "right"
	default:
		summary.Outcome = "draw"
	}
	return summary
}

func printResult(w io.Writer, result domain.MatchResult, stats transportStats) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(summarize(result, stats)); err != nil {
		return eris.Wrap(err, "failed to print result")
	}
	return nil
}
