package domain

// Side names one half of the arena.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// SessionStatus is the lifecycle stage of a match session.
// Transitions run strictly Waiting -> Active -> Completed.
type SessionStatus int

const (
	SessionWaiting SessionStatus = iota
	SessionActive
	SessionCompleted
)

func (s SessionStatus) String() string {
	switch s {
	case SessionWaiting:
		return "waiting"
	case SessionActive:
		return "active"
	case SessionCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// EndReason records why a session completed.
type EndReason string

const (
	// EndReasonScore means a side reached the winning score or the match was ended normally.
	EndReasonScore EndReason = "score"
	// EndReasonAborted means the match was cancelled before a result was reached.
	EndReasonAborted EndReason = "aborted"
)

// Abort reasons carried on aborted results.
const (
	AbortParticipantLeft = "participant_left"
	AbortPlayerOffline   = "player_offline"
	AbortForfeit         = "forfeit"
	AbortJoinTimeout     = "join_timeout"
	AbortShutdown        = "shutdown"
)
