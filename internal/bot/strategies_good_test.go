package bot

import (
	"math/rand"
	"testing"

	"paddleduel/internal/domain"
)

func TestGoodBot_TracksApproachingBall(t *testing.T) {
	bot := &GoodBot{Tuning: DefaultTuning}
	cases := []struct {
		name string
		ball domain.Ball
		want string
	}{
		{"above", domain.Ball{Pos: domain.Vec{X: 400, Y: 100}, Vel: domain.Vec{X: -300}}, "up"},
		{"below", domain.Ball{Pos: domain.Vec{X: 400, Y: 500}, Vel: domain.Vec{X: -300}}, "down"},
		{"dead zone", domain.Ball{Pos: domain.Vec{X: 400, Y: 305}, Vel: domain.Vec{X: -300}}, "none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := bot.NextInput(testArena, domain.SideLeft, stateWith(300, 300, tc.ball))
			if inputName(got) != tc.want {
				t.Errorf("expected %s, got %s", tc.want, inputName(got))
			}
		})
	}
}

func TestGoodBot_RecentersWhenBallLeaves(t *testing.T) {
	bot := &GoodBot{Tuning: DefaultTuning}
	ball := domain.Ball{Pos: domain.Vec{X: 400, Y: 50}, Vel: domain.Vec{X: -300}}

	// The ball heads to the left, so the right paddle drifts back to the middle.
	got := bot.NextInput(testArena, domain.SideRight, stateWith(300, 50, ball))
	if !got.Down {
		t.Errorf("expected the right paddle to recenter downwards, got %s", inputName(got))
	}
}

func TestGoodBot_MisjudgesOncePerApproach(t *testing.T) {
	tuning := DefaultTuning
	tuning.MissChance = 1
	bot := &GoodBot{Tuning: tuning, rng: rand.New(rand.NewSource(1))}

	// A sure miss aims 120 below a ball in the upper half.
	ball := domain.Ball{Pos: domain.Vec{X: 400, Y: 100}, Vel: domain.Vec{X: -300}}
	if got := bot.NextInput(testArena, domain.SideLeft, stateWith(220, 300, ball)); inputName(got) != "none" {
		t.Fatalf("expected the bot to hold at the misjudged target, got %s", inputName(got))
	}

	// Without the offset a ball at 140 would pull the paddle up.
	ball.Pos.Y = 140
	if got := bot.NextInput(testArena, domain.SideLeft, stateWith(220, 300, ball)); inputName(got) != "down" {
		t.Fatalf("expected the offset to persist for the approach, got %s", inputName(got))
	}

	// Leaving and coming back starts a new approach with a fresh decision.
	ball.Vel.X = 300
	bot.NextInput(testArena, domain.SideLeft, stateWith(220, 300, ball))
	if bot.approaching {
		t.Fatal("expected the approach to end once the ball turns around")
	}
}

func TestGoodBot_NoMissesWithoutRand(t *testing.T) {
	tuning := DefaultTuning
	tuning.MissChance = 1
	bot := &GoodBot{Tuning: tuning}
	ball := domain.Ball{Pos: domain.Vec{X: 400, Y: 100}, Vel: domain.Vec{X: -300}}

	if got := bot.NextInput(testArena, domain.SideLeft, stateWith(220, 300, ball)); !got.Up {
		t.Errorf("expected plain tracking without a random source, got %s", inputName(got))
	}
}
