package bot

import "paddleduel/internal/domain"

var testArena = domain.Arena{
	Width:        800,
	Height:       600,
	PaddleWidth:  10,
	PaddleHeight: 100,
	PaddleMargin: 20,
	PaddleStep:   6,
	BallRadius:   8,
	BallSpeed:    300,
}

// stateWith places both paddles so their centers sit at the given heights.
func stateWith(leftCenter, rightCenter float64, ball domain.Ball) domain.MatchState {
	return domain.MatchState{
		Ball:        ball,
		LeftPaddle:  leftCenter - testArena.PaddleHeight/2,
		RightPaddle: rightCenter - testArena.PaddleHeight/2,
	}
}

func inputName(in domain.Input) string {
	switch {
	case in.Up && in.Down:
		return "both"
	case in.Up:
		return "up"
	case in.Down:
		return "down"
	default:
		return "none"
	}
}
