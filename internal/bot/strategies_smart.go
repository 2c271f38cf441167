package bot

import (
	"math"

	"paddleduel/internal/domain"
)

// SmartBot predicts where the ball crosses its paddle face, wall bounces
// included, and waits there.
type SmartBot struct {
	Tuning Tuning
}

func (b *SmartBot) NextInput(arena domain.Arena, side domain.Side, state domain.MatchState) domain.Input {
	center := paddleCenter(arena, side, state)
	deadZone := b.Tuning.DeadZone * arena.PaddleHeight

	if !approaching(state.Ball, side) {
		return steer(center, arena.Height/2, deadZone)
	}
	return steer(center, PredictIntercept(arena, side, state.Ball), deadZone)
}

// PredictIntercept returns the ball's y when its center reaches the paddle
// face on the given side, assuming no paddle is hit first.
func PredictIntercept(arena domain.Arena, side domain.Side, ball domain.Ball) float64 {
	if ball.Vel.X == 0 {
		return ball.Pos.Y
	}
	t := (faceX(arena, side) - ball.Pos.X) / ball.Vel.X
	if t < 0 {
		t = 0
	}
	return foldIntoRange(ball.Pos.Y+ball.Vel.Y*t, arena.BallRadius, arena.Height-arena.BallRadius)
}

// foldIntoRange reflects y back into [lo, hi] as many times as needed,
// mirroring the ball bouncing off both walls.
func foldIntoRange(y, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return lo
	}
	m := math.Mod(y-lo, 2*span)
	if m < 0 {
		m += 2 * span
	}
	if m > span {
		m = 2*span - m
	}
	return lo + m
}
