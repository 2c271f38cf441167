package bot

import (
	"paddleduel/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	UserID   domain.UserID
	Name     string
	Strategy Brain
}

// Play asks the agent for its next paddle input given the latest snapshot.
// It returns false when the agent is not part of the session or the
// session is not running.
func (a *Agent) Play(arena domain.Arena, snap domain.Snapshot) (domain.Input, bool) {
	if snap.Status != domain.SessionActive {
		return domain.Input{}, false
	}
	var side domain.Side
	switch a.UserID {
	case snap.Left:
		side = domain.SideLeft
	case snap.Right:
		side = domain.SideRight
	default:
		// Agent is not part of this session
		return domain.Input{}, false
	}
	return a.Strategy.NextInput(arena, side, snap.State), true
}
