package bot

import (
	"testing"

	"paddleduel/internal/domain"
)

type sideRecorder struct {
	side domain.Side
	hits int
}

func (r *sideRecorder) NextInput(_ domain.Arena, side domain.Side, _ domain.MatchState) domain.Input {
	r.side = side
	r.hits++
	return domain.Input{Up: true}
}

func TestAgent_PlaysOwnSide(t *testing.T) {
	brain := &sideRecorder{}
	agent := &Agent{UserID: 2, Name: "right", Strategy: brain}
	snap := domain.Snapshot{Left: 1, Right: 2, Status: domain.SessionActive}

	in, ok := agent.Play(testArena, snap)
	if !ok || !in.Up {
		t.Fatalf("expected the brain's input, got %+v ok=%v", in, ok)
	}
	if brain.side != domain.SideRight {
		t.Errorf("expected right side, got %s", brain.side)
	}
}

func TestAgent_SkipsForeignOrIdleSessions(t *testing.T) {
	brain := &sideRecorder{}
	agent := &Agent{UserID: 9, Strategy: brain}

	if _, ok := agent.Play(testArena, domain.Snapshot{Left: 1, Right: 2, Status: domain.SessionActive}); ok {
		t.Error("expected no input for a session the agent is not in")
	}
	agent.UserID = 1
	for _, status := range []domain.SessionStatus{domain.SessionWaiting, domain.SessionCompleted} {
		if _, ok := agent.Play(testArena, domain.Snapshot{Left: 1, Right: 2, Status: status}); ok {
			t.Errorf("expected no input while %s", status)
		}
	}
	if brain.hits != 0 {
		t.Errorf("expected the brain to stay idle, called %d times", brain.hits)
	}
}

func TestNewBrainAndParseLevel(t *testing.T) {
	for _, name := range []string{"good", "Smart"} {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q) failed: %v", name, err)
		}
		if _, err := NewBrain(level, DefaultTuning, nil); err != nil {
			t.Fatalf("NewBrain(%s) failed: %v", level, err)
		}
	}
	if _, err := ParseLevel("god"); err == nil {
		t.Error("expected an unknown level to fail")
	}
	if _, err := NewBrain(BotLevel(42), DefaultTuning, nil); err == nil {
		t.Error("expected an unknown level to fail")
	}
}
