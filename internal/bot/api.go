package bot

import (
	"fmt"
	"strings"

	"paddleduel/internal/domain"
)

// Brain is the interface that all bot strategies must implement.
// NextInput is called once per observed snapshot for the bot's own paddle.
type Brain interface {
	NextInput(arena domain.Arena, side domain.Side, state domain.MatchState) domain.Input
}

// BotLevel selects a strategy.
type BotLevel int

const (
	BotLevelGood BotLevel = iota
	BotLevelSmart
)

func (l BotLevel) String() string {
	switch l {
	case BotLevelGood:
		return "good"
	case BotLevelSmart:
		return "smart"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a level name to a BotLevel.
func ParseLevel(name string) (BotLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "good":
		return BotLevelGood, nil
	case "smart":
		return BotLevelSmart, nil
	default:
		return 0, fmt.Errorf("unknown bot level: %q", name)
	}
}

// steer moves a paddle center toward target, holding still inside the dead zone.
func steer(center, target, deadZone float64) domain.Input {
	switch {
	case target < center-deadZone:
		return domain.Input{Up: true}
	case target > center+deadZone:
		return domain.Input{Down: true}
	default:
		return domain.Input{}
	}
}

func paddleCenter(arena domain.Arena, side domain.Side, state domain.MatchState) float64 {
	top := state.LeftPaddle
	if side == domain.SideRight {
		top = state.RightPaddle
	}
	return top + arena.PaddleHeight/2
}

// approaching reports whether the ball travels toward the given side.
func approaching(ball domain.Ball, side domain.Side) bool {
	if side == domain.SideLeft {
		return ball.Vel.X < 0
	}
	return ball.Vel.X > 0
}

// faceX is the x plane of a paddle's front edge.
func faceX(arena domain.Arena, side domain.Side) float64 {
	if side == domain.SideLeft {
		return arena.PaddleMargin + arena.PaddleWidth
	}
	return arena.Width - arena.PaddleMargin - arena.PaddleWidth
}
