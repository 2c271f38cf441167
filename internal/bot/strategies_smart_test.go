package bot

import (
	"math"
	"testing"

	"paddleduel/internal/domain"
)

func TestPredictIntercept(t *testing.T) {
	cases := []struct {
		name string
		side domain.Side
		ball domain.Ball
		want float64
	}{
		{"straight", domain.SideRight, domain.Ball{Pos: domain.Vec{X: 400, Y: 300}, Vel: domain.Vec{X: 300}}, 300},
		// Rises 92 to the top wall, then falls the remaining 278.
		{"one bounce", domain.SideRight, domain.Ball{Pos: domain.Vec{X: 400, Y: 100}, Vel: domain.Vec{X: 300, Y: -300}}, 286},
		{"left side", domain.SideLeft, domain.Ball{Pos: domain.Vec{X: 330, Y: 300}, Vel: domain.Vec{X: -300, Y: 150}}, 450},
		{"no horizontal speed", domain.SideLeft, domain.Ball{Pos: domain.Vec{X: 330, Y: 120}}, 120},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PredictIntercept(testArena, tc.side, tc.ball)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected %.2f, got %.2f", tc.want, got)
			}
		})
	}
}

func TestFoldIntoRange(t *testing.T) {
	cases := []struct {
		y, want float64
	}{
		{50, 50},
		{100, 100},
		{150, 50},
		{-30, 30},
		{250, 50},
		{-250, 50},
	}
	for _, tc := range cases {
		if got := foldIntoRange(tc.y, 0, 100); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("foldIntoRange(%v): expected %v, got %v", tc.y, tc.want, got)
		}
	}
}

func TestSmartBot_WaitsAtIntercept(t *testing.T) {
	bot := &SmartBot{Tuning: DefaultTuning}
	ball := domain.Ball{Pos: domain.Vec{X: 400, Y: 100}, Vel: domain.Vec{X: 300, Y: -300}}

	// The ball is above the paddle now but will arrive at 286.
	if got := bot.NextInput(testArena, domain.SideRight, stateWith(300, 100, ball)); !got.Down {
		t.Errorf("expected the bot to move towards the intercept, got %s", inputName(got))
	}
	if got := bot.NextInput(testArena, domain.SideRight, stateWith(300, 290, ball)); inputName(got) != "none" {
		t.Errorf("expected the bot to hold at the intercept, got %s", inputName(got))
	}
}
