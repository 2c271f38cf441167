package domain

import "time"

// Vec is a point or velocity in arena units.
type Vec struct {
	X float64
	Y float64
}

// Ball is the ball's center and velocity in units per second.
type Ball struct {
	Pos Vec
	Vel Vec
}

// Input is one paddle command. Both directions may be set at once.
type Input struct {
	Up   bool
	Down bool
}

// MatchState is the mutable simulation state of one match.
// Paddle positions are the y coordinate of each paddle's top edge.
type MatchState struct {
	Ball        Ball
	LeftPaddle  float64
	RightPaddle float64
	LeftScore   int
	RightScore  int
}

// Score returns the score for a side.
func (s MatchState) Score(side Side) int {
	if side == SideLeft {
		return s.LeftScore
	}
	return s.RightScore
}

// Leader returns the side with the higher score, or false on a tie.
func (s MatchState) Leader() (Side, bool) {
	switch {
	case s.LeftScore > s.RightScore:
		return SideLeft, true
	case s.RightScore > s.LeftScore:
		return SideRight, true
	default:
		return SideLeft, false
	}
}

// Snapshot is the full public state of a session at one tick.
type Snapshot struct {
	SessionID SessionID
	Left      UserID
	Right     UserID
	Status    SessionStatus
	Tick      uint64
	State     MatchState
}

// MatchResult is the final record of a completed session.
// Winner is zero when the session was aborted or ended level.
type MatchResult struct {
	SessionID  SessionID
	Left       UserID
	Right      UserID
	LeftScore  int
	RightScore int
	Winner     UserID
	Reason     EndReason
	// AbortReason is set only when Reason is EndReasonAborted.
	AbortReason string
	Ticks       uint64
	StartedAt   time.Time
	EndedAt     time.Time
}

// Aborted reports whether the session was cancelled.
func (r MatchResult) Aborted() bool {
	return r.Reason == EndReasonAborted
}

// Loser returns the participant that did not win, or zero without a winner.
func (r MatchResult) Loser() UserID {
	switch r.Winner {
	case r.Left:
		return r.Right
	case r.Right:
		return r.Left
	default:
		return 0
	}
}
