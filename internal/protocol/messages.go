// Package protocol defines the closed set of messages exchanged with
// clients and the codecs that carry them. Decoding validates every
// payload, so the core only ever sees typed, well-formed values.
package protocol

import (
	"errors"
	"fmt"

	"paddleduel/internal/domain"
)

// Type is the discriminator carried in every envelope.
type Type string

const (
	TypeInvitationCreated  Type = "invitation.created"
	TypeInvitationAccepted Type = "invitation.accepted"
	TypeInvitationDeclined Type = "invitation.declined"
	TypeInvitationExpired  Type = "invitation.expired"
	TypeMatchReady         Type = "match.ready"
	TypeMatchStarted       Type = "match.started"
	TypeMatchStateTick     Type = "match.stateTick"
	TypeMatchEnded         Type = "match.ended"
	TypeMatchRejected      Type = "match.rejected"
	TypePaddleInput        Type = "match.input"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid message payload")
)

// Message is implemented only by the variants in this package.
type Message interface {
	MessageType() Type
	Validate() error
	sealed()
}

// InvitationCreated tells the target about a new challenge.
type InvitationCreated struct {
	InvitationID domain.InvitationID `json:"invitation_id" cbor:"invitation_id"`
	FromUserID   domain.UserID       `json:"from_user_id" cbor:"from_user_id"`
	ToUserID     domain.UserID       `json:"to_user_id" cbor:"to_user_id"`
	// ExpiresAt is a unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expires_at" cbor:"expires_at"`
}

// InvitationAccepted tells the challenger the target accepted.
type InvitationAccepted struct {
	InvitationID domain.InvitationID `json:"invitation_id" cbor:"invitation_id"`
	FromUserID   domain.UserID       `json:"from_user_id" cbor:"from_user_id"`
	ToUserID     domain.UserID       `json:"to_user_id" cbor:"to_user_id"`
}

// InvitationDeclined tells the challenger the target declined.
type InvitationDeclined struct {
	InvitationID domain.InvitationID `json:"invitation_id" cbor:"invitation_id"`
	FromUserID   domain.UserID       `json:"from_user_id" cbor:"from_user_id"`
	ToUserID     domain.UserID       `json:"to_user_id" cbor:"to_user_id"`
}

// InvitationExpired tells both parties a pending invitation lapsed.
type InvitationExpired struct {
	InvitationID domain.InvitationID `json:"invitation_id" cbor:"invitation_id"`
	FromUserID   domain.UserID       `json:"from_user_id" cbor:"from_user_id"`
	ToUserID     domain.UserID       `json:"to_user_id" cbor:"to_user_id"`
}

// MatchReady gives one participant what it needs to join the relay.
type MatchReady struct {
	SessionID   domain.SessionID `json:"session_id" cbor:"session_id"`
	MatchID     string           `json:"match_id" cbor:"match_id"`
	Ticket      string           `json:"ticket" cbor:"ticket"`
	LeftUserID  domain.UserID    `json:"left_user_id" cbor:"left_user_id"`
	RightUserID domain.UserID    `json:"right_user_id" cbor:"right_user_id"`
}

// State is the wire form of a match state.
type State struct {
	BallX       float64 `json:"ball_x" cbor:"ball_x"`
	BallY       float64 `json:"ball_y" cbor:"ball_y"`
	BallDX      float64 `json:"ball_dx" cbor:"ball_dx"`
	BallDY      float64 `json:"ball_dy" cbor:"ball_dy"`
	LeftPaddle  float64 `json:"left_paddle" cbor:"left_paddle"`
	RightPaddle float64 `json:"right_paddle" cbor:"right_paddle"`
	LeftScore   int     `json:"left_score" cbor:"left_score"`
	RightScore  int     `json:"right_score" cbor:"right_score"`
}

// StateFrom converts a domain state.
func StateFrom(s domain.MatchState) State {
	return State{
		BallX:       s.Ball.Pos.X,
		BallY:       s.Ball.Pos.Y,
		BallDX:      s.Ball.Vel.X,
		BallDY:      s.Ball.Vel.Y,
		LeftPaddle:  s.LeftPaddle,
		RightPaddle: s.RightPaddle,
		LeftScore:   s.LeftScore,
		RightScore:  s.RightScore,
	}
}

// MatchStarted announces the session and its initial state.
type MatchStarted struct {
	SessionID   domain.SessionID `json:"session_id" cbor:"session_id"`
	LeftUserID  domain.UserID    `json:"left_user_id" cbor:"left_user_id"`
	RightUserID domain.UserID    `json:"right_user_id" cbor:"right_user_id"`
	StartedAt   int64            `json:"started_at" cbor:"started_at"`
	State       State            `json:"state" cbor:"state"`
}

// MatchStateTick is the periodic authoritative snapshot.
type MatchStateTick struct {
	SessionID   domain.SessionID `json:"session_id" cbor:"session_id"`
	LeftUserID  domain.UserID    `json:"left_user_id" cbor:"left_user_id"`
	RightUserID domain.UserID    `json:"right_user_id" cbor:"right_user_id"`
	Tick        uint64           `json:"tick" cbor:"tick"`
	State       State            `json:"state" cbor:"state"`
}

// MatchEnded carries the final score. WinnerUserID is zero when aborted.
type MatchEnded struct {
	SessionID    domain.SessionID `json:"session_id" cbor:"session_id"`
	LeftUserID   domain.UserID    `json:"left_user_id" cbor:"left_user_id"`
	RightUserID  domain.UserID    `json:"right_user_id" cbor:"right_user_id"`
	LeftScore    int              `json:"left_score" cbor:"left_score"`
	RightScore   int              `json:"right_score" cbor:"right_score"`
	WinnerUserID domain.UserID    `json:"winner_user_id" cbor:"winner_user_id"`
	Aborted      bool             `json:"aborted" cbor:"aborted"`
	Reason       string           `json:"reason,omitempty" cbor:"reason,omitempty"`
	EndedAt      int64            `json:"ended_at" cbor:"ended_at"`
}

// MatchRejected tells both parties an accepted invitation could not become a match.
type MatchRejected struct {
	InvitationID domain.InvitationID `json:"invitation_id" cbor:"invitation_id"`
	FromUserID   domain.UserID       `json:"from_user_id" cbor:"from_user_id"`
	ToUserID     domain.UserID       `json:"to_user_id" cbor:"to_user_id"`
	Reason       string              `json:"reason" cbor:"reason"`
}

// PaddleInput is the only client-to-server message.
type PaddleInput struct {
	SessionID domain.SessionID `json:"session_id" cbor:"session_id"`
	Up        bool             `json:"up" cbor:"up"`
	Down      bool             `json:"down" cbor:"down"`
}

// Input converts to the domain input.
func (m PaddleInput) Input() domain.Input {
	return domain.Input{Up: m.Up, Down: m.Down}
}

func (InvitationCreated) MessageType() Type  { return TypeInvitationCreated }
func (InvitationAccepted) MessageType() Type { return TypeInvitationAccepted }
func (InvitationDeclined) MessageType() Type { return TypeInvitationDeclined }
func (InvitationExpired) MessageType() Type  { return TypeInvitationExpired }
func (MatchReady) MessageType() Type         { return TypeMatchReady }
func (MatchStarted) MessageType() Type       { return TypeMatchStarted }
func (MatchStateTick) MessageType() Type     { return TypeMatchStateTick }
func (MatchEnded) MessageType() Type         { return TypeMatchEnded }
func (MatchRejected) MessageType() Type      { return TypeMatchRejected }
func (PaddleInput) MessageType() Type        { return TypePaddleInput }

func (InvitationCreated) sealed()  {}
func (InvitationAccepted) sealed() {}
func (InvitationDeclined) sealed() {}
func (InvitationExpired) sealed()  {}
func (MatchReady) sealed()         {}
func (MatchStarted) sealed()       {}
func (MatchStateTick) sealed()     {}
func (MatchEnded) sealed()         {}
func (MatchRejected) sealed()      {}
func (PaddleInput) sealed()        {}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func validatePair(from, to domain.UserID) error {
	if !from.Valid() || !to.Valid() {
		return invalid("user ids must be positive, got %d and %d", from, to)
	}
	if from == to {
		return invalid("user ids must differ, got %d twice", from)
	}
	return nil
}

func validateInvitation(id domain.InvitationID, from, to domain.UserID) error {
	if id == "" {
		return invalid("missing invitation_id")
	}
	return validatePair(from, to)
}

func validateSession(id domain.SessionID, left, right domain.UserID) error {
	if id == "" {
		return invalid("missing session_id")
	}
	return validatePair(left, right)
}

func (s State) validate() error {
	if s.LeftScore < 0 || s.RightScore < 0 {
		return invalid("negative score %d-%d", s.LeftScore, s.RightScore)
	}
	return nil
}

func (m InvitationCreated) Validate() error {
	if err := validateInvitation(m.InvitationID, m.FromUserID, m.ToUserID); err != nil {
		return err
	}
	if m.ExpiresAt <= 0 {
		return invalid("missing expires_at")
	}
	return nil
}

func (m InvitationAccepted) Validate() error {
	return validateInvitation(m.InvitationID, m.FromUserID, m.ToUserID)
}

func (m InvitationDeclined) Validate() error {
	return validateInvitation(m.InvitationID, m.FromUserID, m.ToUserID)
}

func (m InvitationExpired) Validate() error {
	return validateInvitation(m.InvitationID, m.FromUserID, m.ToUserID)
}

func (m MatchReady) Validate() error {
	if err := validateSession(m.SessionID, m.LeftUserID, m.RightUserID); err != nil {
		return err
	}
	if m.MatchID == "" || m.Ticket == "" {
		return invalid("match.ready needs match_id and ticket")
	}
	return nil
}

func (m MatchStarted) Validate() error {
	if err := validateSession(m.SessionID, m.LeftUserID, m.RightUserID); err != nil {
		return err
	}
	return m.State.validate()
}

func (m MatchStateTick) Validate() error {
	if err := validateSession(m.SessionID, m.LeftUserID, m.RightUserID); err != nil {
		return err
	}
	return m.State.validate()
}

func (m MatchEnded) Validate() error {
	if err := validateSession(m.SessionID, m.LeftUserID, m.RightUserID); err != nil {
		return err
	}
	if m.LeftScore < 0 || m.RightScore < 0 {
		return invalid("negative score %d-%d", m.LeftScore, m.RightScore)
	}
	if m.WinnerUserID != 0 && m.WinnerUserID != m.LeftUserID && m.WinnerUserID != m.RightUserID {
		return invalid("winner %d is not a participant", m.WinnerUserID)
	}
	if m.Aborted && m.WinnerUserID != 0 {
		return invalid("aborted match cannot have a winner")
	}
	return nil
}

func (m MatchRejected) Validate() error {
	return validateInvitation(m.InvitationID, m.FromUserID, m.ToUserID)
}

func (m PaddleInput) Validate() error {
	if m.SessionID == "" {
		return invalid("missing session_id")
	}
	return nil
}
