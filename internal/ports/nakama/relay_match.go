package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"paddleduel/internal/app"
	"paddleduel/internal/domain"
	"paddleduel/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Relay label statuses.
const (
	relayStatusWaiting   = "waiting"
	relayStatusPlaying   = "playing"
	relayStatusCompleted = "completed"
)

// sessionControl is what the relay needs from the coordinator.
type sessionControl interface {
	ApplyInput(sessionID domain.SessionID, userID domain.UserID, in domain.Input) bool
	Abort(ctx context.Context, sessionID domain.SessionID, reason string) bool
}

// ticketVerifier checks join tickets.
type ticketVerifier interface {
	Verify(ticket string) (app.TicketClaims, error)
}

// relayDeps are shared by every relay match.
type relayDeps struct {
	hub         *RelayHub
	sessions    sessionControl
	tickets     ticketVerifier
	tickRate    int
	joinTimeout int // seconds; zero disables
}

// RelayState is the runtime state of one relay match.
type RelayState struct {
	SessionID domain.SessionID
	Left      domain.UserID
	Right     domain.UserID
	Status    string
	Tick      int64

	route        *relayRoute
	players      map[string]domain.UserID // account id -> player id, admitted by ticket
	presences    map[string]runtime.Presence
	joinDeadline int64
	bothJoined   bool
}

func (s *RelayState) participants() int {
	n := 0
	for accountID := range s.presences {
		if _, ok := s.players[accountID]; ok {
			n++
		}
	}
	return n
}

type relayMatch struct {
	deps *relayDeps
}

func newRelayMatch(deps *relayDeps) *relayMatch {
	return &relayMatch{deps: deps}
}

// MatchInit binds the match to the session route registered by the host.
func (m *relayMatch) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	sessionID, _ := params[paramSessionID].(string)
	left, errLeft := paramUserID(params[paramLeftUser])
	right, errRight := paramUserID(params[paramRightUser])
	if sessionID == "" || errLeft != nil || errRight != nil {
		logger.Error("RelayMatch: invalid params %v", params)
		return nil, 0, ""
	}
	route := m.deps.hub.route(domain.SessionID(sessionID))
	if route == nil {
		logger.Error("RelayMatch: no route for session %s", sessionID)
		return nil, 0, ""
	}

	state := &RelayState{
		SessionID: domain.SessionID(sessionID),
		Left:      left,
		Right:     right,
		Status:    relayStatusWaiting,
		route:     route,
		players:   make(map[string]domain.UserID),
		presences: make(map[string]runtime.Presence),
	}
	if m.deps.joinTimeout > 0 {
		state.joinDeadline = int64(m.deps.joinTimeout * m.deps.tickRate)
	}

	label, err := relayLabel(state)
	if err != nil {
		logger.Error("RelayMatch: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	return state, m.deps.tickRate, label
}

// MatchJoinAttempt admits only the two participants, each holding a valid ticket for this match.
func (m *relayMatch) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state, false, "state not found"
	}
	if relayState.route.hasEnded() {
		return state, false, "session ended"
	}

	claims, err := m.deps.tickets.Verify(metadata[ticketMetadataKey])
	if err != nil {
		logger.Debug("RelayMatch %s: rejected join by %s: %v", relayState.SessionID, presence.GetUserId(), err)
		return state, false, "invalid ticket"
	}
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	switch {
	case claims.SessionID != relayState.SessionID:
		return state, false, "ticket is for another session"
	case matchID != "" && claims.MatchID != matchID:
		return state, false, "ticket is for another match"
	case claims.AccountID != presence.GetUserId():
		return state, false, "ticket is for another account"
	case claims.UserID != relayState.Left && claims.UserID != relayState.Right:
		return state, false, "not a participant"
	}

	relayState.players[presence.GetUserId()] = claims.UserID
	return relayState, true, ""
}

// MatchJoin stores presences and catches late joiners up on the session.
func (m *relayMatch) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		logger.Error("RelayMatch: state not found")
		return state
	}

	for _, p := range presences {
		relayState.presences[p.GetUserId()] = p
		for _, frame := range relayState.route.catchUp() {
			if err := dispatcher.BroadcastMessage(frame.opCode, frame.data, []runtime.Presence{p}, nil, true); err != nil {
				logger.Warn("RelayMatch %s: failed to catch up %s: %v", relayState.SessionID, p.GetUserId(), err)
			}
		}
	}
	if relayState.participants() == 2 && !relayState.bothJoined {
		relayState.bothJoined = true
		relayState.Status = relayStatusPlaying
		m.updateLabel(relayState, dispatcher, logger)
	}
	return relayState
}

// MatchLeave aborts the session when a participant leaves before it ended.
func (m *relayMatch) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		logger.Error("RelayMatch: state not found")
		return state
	}

	participantLeft := false
	for _, p := range presences {
		delete(relayState.presences, p.GetUserId())
		if _, ok := relayState.players[p.GetUserId()]; ok {
			participantLeft = true
		}
	}
	if participantLeft && !relayState.route.hasEnded() {
		logger.Info("RelayMatch %s: participant left, aborting session", relayState.SessionID)
		m.deps.sessions.Abort(ctx, relayState.SessionID, domain.AbortParticipantLeft)
	}
	return relayState
}

// MatchLoop routes paddle input into the session and relays queued frames.
// It terminates the match once the session ended and every frame went out.
func (m *relayMatch) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state
	}
	relayState.Tick = tick

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpPaddleInput:
			m.handleInput(relayState, logger, msg)
		default:
			logger.Warn("RelayMatch %s: Unknown opcode received: %d", relayState.SessionID, msg.GetOpCode())
		}
	}

	if !relayState.bothJoined && relayState.joinDeadline > 0 && tick >= relayState.joinDeadline && !relayState.route.hasEnded() {
		logger.Info("RelayMatch %s: participants did not join in time", relayState.SessionID)
		m.deps.sessions.Abort(ctx, relayState.SessionID, domain.AbortJoinTimeout)
	}

	for _, frame := range relayState.route.drain() {
		if err := dispatcher.BroadcastMessage(frame.opCode, frame.data, nil, nil, frame.reliable); err != nil {
			logger.Warn("RelayMatch %s: failed to relay op %d: %v", relayState.SessionID, frame.opCode, err)
		}
	}

	if relayState.route.finished() {
		relayState.Status = relayStatusCompleted
		m.updateLabel(relayState, dispatcher, logger)
		m.deps.hub.Remove(relayState.SessionID)
		logger.Debug("RelayMatch %s: session over, terminating", relayState.SessionID)
		return nil
	}
	return relayState
}

func (m *relayMatch) handleInput(state *RelayState, logger runtime.Logger, msg runtime.MatchData) {
	userID, ok := state.players[msg.GetUserId()]
	if !ok {
		logger.Warn("RelayMatch %s: input from non-participant %s", state.SessionID, msg.GetUserId())
		return
	}
	decoded, err := m.deps.hub.Codec().Decode(msg.GetData())
	if err != nil {
		logger.Warn("RelayMatch %s: invalid input from user %d: %v", state.SessionID, userID, err)
		return
	}
	input, ok := decoded.(protocol.PaddleInput)
	if !ok || input.SessionID != state.SessionID {
		logger.Warn("RelayMatch %s: unexpected %s from user %d", state.SessionID, decoded.MessageType(), userID)
		return
	}
	m.deps.sessions.ApplyInput(state.SessionID, userID, input.Input())
}

func (m *relayMatch) updateLabel(state *RelayState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := relayLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

// MatchTerminate aborts a session still running when Nakama shuts the match down.
func (m *relayMatch) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	relayState, ok := state.(*RelayState)
	if !ok {
		return state
	}
	if !relayState.route.hasEnded() {
		m.deps.sessions.Abort(ctx, relayState.SessionID, domain.AbortShutdown)
	}
	for _, frame := range relayState.route.drain() {
		_ = dispatcher.BroadcastMessage(frame.opCode, frame.data, nil, nil, frame.reliable)
	}
	m.deps.hub.Remove(relayState.SessionID)
	logger.Debug("RelayMatch %s: terminated with %d seconds grace", relayState.SessionID, graceSeconds)
	return relayState
}

func (m *relayMatch) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}

func relayLabel(state *RelayState) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		"game":       "paddleduel",
		"session_id": string(state.SessionID),
		"status":     state.Status,
		"left":       int64(state.Left),
		"right":      int64(state.Right),
	})
	if err != nil {
		return "", err
	}
	labelBytes, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(labelBytes), nil
}

// paramUserID reads a player id from match params, which keep their Go type
// in process but arrive as numbers or strings when created elsewhere.
func paramUserID(v interface{}) (domain.UserID, error) {
	var id int64
	switch t := v.(type) {
	case int64:
		id = t
	case int:
		id = int64(t)
	case float64:
		id = int64(t)
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, err
		}
		id = parsed
	default:
		return 0, fmt.Errorf("unexpected player id %v", v)
	}
	if !domain.UserID(id).Valid() {
		return 0, fmt.Errorf("invalid player id %d", id)
	}
	return domain.UserID(id), nil
}

var _ runtime.Match = (*relayMatch)(nil)
