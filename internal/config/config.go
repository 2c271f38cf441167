package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. DUEL_WINNING_SCORE.
	EnvPrefix = "DUEL_"
	// EnvConfigPath names the variable pointing at an optional JSON or YAML config file.
	EnvConfigPath = EnvPrefix + "CONFIG_PATH"

	// MaxTickRate is the highest tick rate the Nakama match loop accepts.
	MaxTickRate = 60
)

// Wire formats understood by the relay match.
const (
	WireFormatJSON = "json"
	WireFormatCBOR = "cbor"
)

// GameConfig holds arena geometry, match rules and lifecycle timings.
// Values are plain data; callers own the instance they load.
type GameConfig struct {
	ArenaWidth   float64 `json:"arena_width" yaml:"arena_width" env:"ARENA_WIDTH"`
	ArenaHeight  float64 `json:"arena_height" yaml:"arena_height" env:"ARENA_HEIGHT"`
	PaddleWidth  float64 `json:"paddle_width" yaml:"paddle_width" env:"PADDLE_WIDTH"`
	PaddleHeight float64 `json:"paddle_height" yaml:"paddle_height" env:"PADDLE_HEIGHT"`
	// PaddleMargin is the gap between a goal edge and the back of its paddle.
	PaddleMargin float64 `json:"paddle_margin" yaml:"paddle_margin" env:"PADDLE_MARGIN"`
	// PaddleStep is how far one input moves a paddle.
	PaddleStep float64 `json:"paddle_step" yaml:"paddle_step" env:"PADDLE_STEP"`
	BallRadius float64 `json:"ball_radius" yaml:"ball_radius" env:"BALL_RADIUS"`
	// BallSpeed is measured in arena units per second.
	BallSpeed    float64 `json:"ball_speed" yaml:"ball_speed" env:"BALL_SPEED"`
	WinningScore int     `json:"winning_score" yaml:"winning_score" env:"WINNING_SCORE"`
	TickRate     int     `json:"tick_rate" yaml:"tick_rate" env:"TICK_RATE"`

	InvitationExpirationSeconds int `json:"invitation_expiration_seconds" yaml:"invitation_expiration_seconds" env:"INVITATION_EXPIRATION_SECONDS"`
	// JoinTimeoutSeconds aborts a session whose players did not both join its relay match. Zero disables it.
	JoinTimeoutSeconds int `json:"join_timeout_seconds" yaml:"join_timeout_seconds" env:"JOIN_TIMEOUT_SECONDS"`

	WireFormat         string `json:"wire_format" yaml:"wire_format" env:"WIRE_FORMAT"`
	TicketSecret       string `json:"ticket_secret" yaml:"ticket_secret" env:"TICKET_SECRET"`
	TicketTTLSeconds   int    `json:"ticket_ttl_seconds" yaml:"ticket_ttl_seconds" env:"TICKET_TTL_SECONDS"`
	ResultsCollection  string `json:"results_collection" yaml:"results_collection" env:"RESULTS_COLLECTION"`
	RelayQueueCapacity int    `json:"relay_queue_capacity" yaml:"relay_queue_capacity" env:"RELAY_QUEUE_CAPACITY"`
}

// Default returns the built-in configuration: an 800x600 arena played to 11 at 60 Hz.
func Default() GameConfig {
	return GameConfig{
		ArenaWidth:                  800,
		ArenaHeight:                 600,
		PaddleWidth:                 10,
		PaddleHeight:                100,
		PaddleMargin:                20,
		PaddleStep:                  6,
		BallRadius:                  8,
		BallSpeed:                   300,
		WinningScore:                11,
		TickRate:                    60,
		InvitationExpirationSeconds: 120,
		JoinTimeoutSeconds:          30,
		WireFormat:                  WireFormatJSON,
		TicketTTLSeconds:            300,
		ResultsCollection:           "match_results",
		RelayQueueCapacity:          256,
	}
}

// Load reads a JSON or YAML file (chosen by extension) over the defaults.
func Load(path string) (GameConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read game config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays DUEL_* variables from environ onto cfg.
// Variables absent from environ leave the corresponding field untouched.
func ApplyEnv(cfg *GameConfig, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ, Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv builds a validated configuration from a runtime environment map.
// When DUEL_CONFIG_PATH is set the file is loaded first; env values win over it.
func FromEnv(environ map[string]string) (GameConfig, error) {
	cfg := Default()
	if path := environ[EnvConfigPath]; path != "" {
		loaded, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(&cfg, environ); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c GameConfig) Validate() error {
	switch {
	case c.ArenaWidth <= 0 || c.ArenaHeight <= 0:
		return fmt.Errorf("arena dimensions must be positive, got %vx%v", c.ArenaWidth, c.ArenaHeight)
	case c.PaddleWidth <= 0 || c.PaddleHeight <= 0:
		return fmt.Errorf("paddle dimensions must be positive, got %vx%v", c.PaddleWidth, c.PaddleHeight)
	case c.PaddleHeight > c.ArenaHeight:
		return fmt.Errorf("paddle height %v exceeds arena height %v", c.PaddleHeight, c.ArenaHeight)
	case c.PaddleMargin < 0 || 2*(c.PaddleMargin+c.PaddleWidth) >= c.ArenaWidth:
		return fmt.Errorf("paddle margin %v does not fit the arena", c.PaddleMargin)
	case c.PaddleStep <= 0:
		return fmt.Errorf("paddle step must be positive, got %v", c.PaddleStep)
	case c.BallRadius <= 0 || 2*c.BallRadius >= c.ArenaHeight:
		return fmt.Errorf("ball radius %v does not fit the arena", c.BallRadius)
	case c.BallSpeed <= 0:
		return fmt.Errorf("ball speed must be positive, got %v", c.BallSpeed)
	case c.WinningScore < 1:
		return fmt.Errorf("winning score must be at least 1, got %d", c.WinningScore)
	case c.TickRate < 1 || c.TickRate > MaxTickRate:
		return fmt.Errorf("tick rate must be within 1..%d, got %d", MaxTickRate, c.TickRate)
	case c.InvitationExpirationSeconds <= 0:
		return fmt.Errorf("invitation expiration must be positive, got %d", c.InvitationExpirationSeconds)
	case c.JoinTimeoutSeconds < 0:
		return fmt.Errorf("join timeout must not be negative, got %d", c.JoinTimeoutSeconds)
	case c.WireFormat != WireFormatJSON && c.WireFormat != WireFormatCBOR:
		return fmt.Errorf("unsupported wire format %q", c.WireFormat)
	case c.TicketTTLSeconds <= 0:
		return fmt.Errorf("ticket ttl must be positive, got %d", c.TicketTTLSeconds)
	case c.RelayQueueCapacity < 1:
		return fmt.Errorf("relay queue capacity must be positive, got %d", c.RelayQueueCapacity)
	}
	return nil
}

// TickInterval is the simulation step derived from TickRate.
func (c GameConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// InvitationExpiration is how long an invitation stays pending.
func (c GameConfig) InvitationExpiration() time.Duration {
	return time.Duration(c.InvitationExpirationSeconds) * time.Second
}

// TicketTTL bounds how long a relay join ticket is accepted.
func (c GameConfig) TicketTTL() time.Duration {
	return time.Duration(c.TicketTTLSeconds) * time.Second
}

// JoinTimeout is how long a relay match waits for both participants.
func (c GameConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutSeconds) * time.Second
}
