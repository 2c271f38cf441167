package domain

import "math/rand"

// Arena is the fixed geometry and physics constants of a match.
type Arena struct {
	Width        float64
	Height       float64
	PaddleWidth  float64
	PaddleHeight float64
	PaddleMargin float64
	PaddleStep   float64
	BallRadius   float64
	BallSpeed    float64
}

// MaxPaddleY is the largest legal paddle top position.
func (a Arena) MaxPaddleY() float64 {
	return a.Height - a.PaddleHeight
}

// ClampPaddle keeps a paddle top position within [0, Height-PaddleHeight].
func (a Arena) ClampPaddle(y float64) float64 {
	return Clamp(y, 0, a.MaxPaddleY())
}

// Center is the middle of the arena.
func (a Arena) Center() Vec {
	return Vec{X: a.Width / 2, Y: a.Height / 2}
}

// CenteredPaddle is the top position of a vertically centered paddle.
func (a Arena) CenteredPaddle() float64 {
	return a.MaxPaddleY() / 2
}

// leftFace is the x plane of the left paddle's front edge.
func (a Arena) leftFace() float64 {
	return a.PaddleMargin + a.PaddleWidth
}

// rightFace is the x plane of the right paddle's front edge.
func (a Arena) rightFace() float64 {
	return a.Width - a.PaddleMargin - a.PaddleWidth
}

// InitialState returns a centered match with a stationary ball.
// The ball is served when the session starts.
func (a Arena) InitialState() MatchState {
	return MatchState{
		Ball:        Ball{Pos: a.Center()},
		LeftPaddle:  a.CenteredPaddle(),
		RightPaddle: a.CenteredPaddle(),
	}
}

// Serve places the ball at center with a fresh random diagonal velocity.
func (a Arena) Serve(s *MatchState, rng *rand.Rand) {
	s.Ball = Ball{Pos: a.Center(), Vel: ServeVelocity(rng, a.BallSpeed)}
}

// ApplyInput moves a side's paddle one step per requested direction.
// Up is applied before down and each step is clamped.
func (a Arena) ApplyInput(s *MatchState, side Side, in Input) {
	y := s.LeftPaddle
	if side == SideRight {
		y = s.RightPaddle
	}
	if in.Up {
		y = a.ClampPaddle(y - a.PaddleStep)
	}
	if in.Down {
		y = a.ClampPaddle(y + a.PaddleStep)
	}
	if side == SideLeft {
		s.LeftPaddle = y
	} else {
		s.RightPaddle = y
	}
}

// StepResult reports what happened during one physics step.
type StepResult struct {
	WallBounce   bool
	PaddleBounce bool
	Scored       bool
	Scorer       Side
}

// Step advances the simulation by dt seconds: integrate, bounce off
// walls, bounce off paddles, then detect goals. A goal re-serves the ball.
func (a Arena) Step(s *MatchState, dt float64, rng *rand.Rand) StepResult {
	var res StepResult
	b := &s.Ball
	r := a.BallRadius
	prev := b.Pos

	b.Pos.X += b.Vel.X * dt
	b.Pos.Y += b.Vel.Y * dt

	if b.Pos.Y-r <= 0 && b.Vel.Y < 0 {
		b.Pos.Y = r
		b.Vel.Y = -b.Vel.Y
		res.WallBounce = true
	} else if b.Pos.Y+r >= a.Height && b.Vel.Y > 0 {
		b.Pos.Y = a.Height - r
		b.Vel.Y = -b.Vel.Y
		res.WallBounce = true
	}

	// A paddle only reflects a ball travelling toward it whose leading
	// edge crossed the paddle face during this step.
	if face := a.leftFace(); b.Vel.X < 0 && prev.X-r >= face && b.Pos.X-r <= face &&
		withinSpan(b.Pos.Y, s.LeftPaddle, a.PaddleHeight) {
		b.Pos.X = face + r
		b.Vel.X = -b.Vel.X
		res.PaddleBounce = true
	} else if face := a.rightFace(); b.Vel.X > 0 && prev.X+r <= face && b.Pos.X+r >= face &&
		withinSpan(b.Pos.Y, s.RightPaddle, a.PaddleHeight) {
		b.Pos.X = face - r
		b.Vel.X = -b.Vel.X
		res.PaddleBounce = true
	}

	switch {
	case b.Pos.X-r <= 0:
		s.RightScore++
		res.Scored, res.Scorer = true, SideRight
	case b.Pos.X+r >= a.Width:
		s.LeftScore++
		res.Scored, res.Scorer = true, SideLeft
	}
	if res.Scored {
		a.Serve(s, rng)
	}
	return res
}

func withinSpan(y, top, height float64) bool {
	return y >= top && y <= top+height
}
