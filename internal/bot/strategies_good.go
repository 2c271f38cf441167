package bot

import (
	"math/rand"

	"paddleduel/internal/domain"
)

// GoodBot chases the ball's current height while it approaches and drifts
// back to the middle otherwise. Once per approach it may pick a wrong
// target, which is what makes it lose points.
type GoodBot struct {
	Tuning Tuning

	rng         *rand.Rand
	approaching bool
	offset      float64
}

func (b *GoodBot) NextInput(arena domain.Arena, side domain.Side, state domain.MatchState) domain.Input {
	center := paddleCenter(arena, side, state)
	deadZone := b.Tuning.DeadZone * arena.PaddleHeight

	if !approaching(state.Ball, side) {
		b.approaching = false
		return steer(center, arena.Height/2, deadZone)
	}
	if !b.approaching {
		b.approaching = true
		b.offset = b.pickOffset(arena, state.Ball)
	}
	return steer(center, state.Ball.Pos.Y+b.offset, deadZone)
}

// pickOffset decides at the start of an approach whether to misjudge it.
// The wrong target points away from the nearer wall so the clamp cannot
// accidentally put the paddle back in the ball's way.
func (b *GoodBot) pickOffset(arena domain.Arena, ball domain.Ball) float64 {
	if b.rng == nil || b.rng.Float64() >= b.Tuning.MissChance {
		return 0
	}
	offset := b.Tuning.MissOffset * arena.PaddleHeight
	if ball.Pos.Y > arena.Height/2 {
		return -offset
	}
	return offset
}
