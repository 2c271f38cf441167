package nakama

import (
	"context"
	"database/sql"
	"errors"

	"paddleduel/internal/app"
	"paddleduel/internal/domain"
	"paddleduel/internal/telemetry"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// reasonInvitationGone is the negative acknowledgement for an accept or
// decline that lost to another resolution.
const reasonInvitationGone = "invitation no longer valid"

var (
	errNoUserIDFound = errors.New("unable to get user ID from context")
	errBadPayload    = errors.New("malformed payload")
)

type nakamaRPCHandler func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

type sendInvitationRequest struct {
	ToUserID int64 `json:"to_user_id"`
}

type sendInvitationResponse struct {
	InvitationID string `json:"invitation_id"`
}

type invitationRequest struct {
	InvitationID string `json:"invitation_id"`
}

type ackResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type invitationView struct {
	InvitationID string `json:"invitation_id"`
	FromUserID   int64  `json:"from_user_id"`
	ToUserID     int64  `json:"to_user_id"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresAt    int64  `json:"expires_at"`
}

type pendingInvitationsResponse struct {
	Invitations []invitationView `json:"invitations"`
}

func viewOf(inv domain.Invitation) invitationView {
	return invitationView{
		InvitationID: string(inv.ID),
		FromUserID:   int64(inv.From),
		ToUserID:     int64(inv.To),
		Status:       inv.Status.String(),
		CreatedAt:    inv.CreatedAt.UnixMilli(),
		ExpiresAt:    inv.ExpiresAt.UnixMilli(),
	}
}

// RegisterRPCs registers every client RPC, each wrapped in a trace span.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]nakamaRPCHandler{
		RpcInvitationSend:        m.rpcSendInvitation,
		RpcInvitationAccept:      m.rpcAcceptInvitation,
		RpcInvitationDecline:     m.rpcDeclineInvitation,
		RpcInvitationGet:         m.rpcGetInvitation,
		RpcInvitationListPending: m.rpcListPendingInvitations,
		RpcMatchAbort:            m.rpcAbortMatch,
	}
	for id, handler := range rpcs {
		if err := initializer.RegisterRpc(id, traced(id, handler)); err != nil {
			return eris.Wrapf(err, "failed to register rpc %s", id)
		}
	}
	return nil
}

func traced(id string, handler nakamaRPCHandler) nakamaRPCHandler {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		ctx, span := telemetry.Tracer().Start(ctx, "rpc."+id,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("rpc.method", id)))
		defer span.End()

		out, err := handler(ctx, logger, db, nk, payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
}

// caller maps the authenticated account onto its player id, registering it on first use.
func (m *Module) caller(ctx context.Context) (domain.UserID, error) {
	accountID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || accountID == "" {
		return 0, errNoUserIDFound
	}
	return m.players.Register(ctx, accountID)
}

func decodePayload(payload string, v interface{}) error {
	if payload == "" {
		payload = "{}"
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return eris.Wrapf(errBadPayload, "%v", err)
	}
	return nil
}

func encodeResponse(logger runtime.Logger, v interface{}) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return logErrorWithMessageAndCode(logger, err, codeInternal, "unable to marshal response")
	}
	return string(out), nil
}

// callerOrError resolves the caller, converting failures into runtime errors.
func (m *Module) callerOrError(ctx context.Context, logger runtime.Logger) (domain.UserID, string, error) {
	userID, err := m.caller(ctx)
	if errors.Is(err, errNoUserIDFound) {
		out, rerr := logDebugWithMessageAndCode(logger, err, codeUnauthenticated, "rpc requires a user session")
		return 0, out, rerr
	}
	if err != nil {
		out, rerr := logErrorWithMessageAndCode(logger, err, codeInternal, "unable to resolve player")
		return 0, out, rerr
	}
	return userID, "", nil
}

// rpcSendInvitation invites another player.
//
// Payload: {"to_user_id": 42}
// Returns: {"invitation_id": "..."}
func (m *Module) rpcSendInvitation(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	from, out, err := m.callerOrError(ctx, logger)
	if err != nil {
		return out, err
	}
	var req sendInvitationRequest
	if err := decodePayload(payload, &req); err != nil {
		return logDebugWithMessageAndCode(logger, err, codeInvalidArgument, "invitation_send")
	}

	id, err := m.registry.SendInvitation(ctx, from, domain.UserID(req.ToUserID))
	switch {
	case errors.Is(err, app.ErrInvalidArgument):
		return logDebugWithMessageAndCode(logger, err, codeInvalidArgument, "user %d cannot invite user %d", from, req.ToUserID)
	case errors.Is(err, app.ErrUserEngaged):
		return logDebugWithMessageAndCode(logger, err, codeFailedPrecondition, "user %d cannot invite user %d", from, req.ToUserID)
	case errors.Is(err, app.ErrShuttingDown):
		return logDebugWithMessageAndCode(logger, err, codeUnavailable, "invitations are closed")
	case err != nil:
		return logErrorWithMessageAndCode(logger, err, codeInternal, "unable to send invitation")
	}
	return encodeResponse(logger, sendInvitationResponse{InvitationID: string(id)})
}

// rpcAcceptInvitation accepts an invitation addressed to the caller.
//
// Payload: {"invitation_id": "..."}
// Returns: {"ok": true} or {"ok": false, "reason": "invitation no longer valid"}
func (m *Module) rpcAcceptInvitation(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	return m.resolveInvitation(ctx, logger, payload, m.registry.AcceptInvitation)
}

// rpcDeclineInvitation declines an invitation addressed to the caller.
//
// Payload: {"invitation_id": "..."}
// Returns: {"ok": true} or {"ok": false, "reason": "invitation no longer valid"}
func (m *Module) rpcDeclineInvitation(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	return m.resolveInvitation(ctx, logger, payload, m.registry.DeclineInvitation)
}

func (m *Module) resolveInvitation(ctx context.Context, logger runtime.Logger, payload string, resolve func(context.Context, domain.InvitationID, domain.UserID) bool) (string, error) {
	userID, out, err := m.callerOrError(ctx, logger)
	if err != nil {
		return out, err
	}
	var req invitationRequest
	if err := decodePayload(payload, &req); err != nil {
		return logDebugWithMessageAndCode(logger, err, codeInvalidArgument, "invitation payload")
	}
	if req.InvitationID == "" {
		return logDebugWithMessageAndCode(logger, errBadPayload, codeInvalidArgument, "invitation_id is required")
	}

	if !resolve(ctx, domain.InvitationID(req.InvitationID), userID) {
		return encodeResponse(logger, ackResponse{OK: false, Reason: reasonInvitationGone})
	}
	return encodeResponse(logger, ackResponse{OK: true})
}

// rpcGetInvitation returns one invitation the caller takes part in.
//
// Payload: {"invitation_id": "..."}
func (m *Module) rpcGetInvitation(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, out, err := m.callerOrError(ctx, logger)
	if err != nil {
		return out, err
	}
	var req invitationRequest
	if err := decodePayload(payload, &req); err != nil {
		return logDebugWithMessageAndCode(logger, err, codeInvalidArgument, "invitation_get")
	}

	inv, ok := m.registry.GetInvitation(domain.InvitationID(req.InvitationID))
	if !ok || !inv.Involves(userID) {
		return "", runtime.NewError("invitation not found", codeNotFound)
	}
	return encodeResponse(logger, viewOf(inv))
}

// rpcListPendingInvitations lists the caller's pending invitations, oldest first.
func (m *Module) rpcListPendingInvitations(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, _ string) (string, error) {
	userID, out, err := m.callerOrError(ctx, logger)
	if err != nil {
		return out, err
	}
	resp := pendingInvitationsResponse{Invitations: []invitationView{}}
	for _, inv := range m.registry.GetPendingInvitations(userID) {
		resp.Invitations = append(resp.Invitations, viewOf(inv))
	}
	return encodeResponse(logger, resp)
}

// rpcAbortMatch forfeits the caller's running session.
//
// Returns: {"ok": true} if a session was aborted, otherwise
// {"ok": false, "reason": "no running match"} or
// {"ok": false, "reason": "match not running"}.
func (m *Module) rpcAbortMatch(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, _ string) (string, error) {
	userID, out, err := m.callerOrError(ctx, logger)
	if err != nil {
		return out, err
	}
	err = m.coordinator.AbortUserSession(ctx, userID, domain.AbortForfeit)
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		return encodeResponse(logger, ackResponse{OK: false, Reason: "no running match"})
	case errors.Is(err, app.ErrSessionNotActive):
		return encodeResponse(logger, ackResponse{OK: false, Reason: "match not running"})
	case err != nil:
		return logErrorWithMessageAndCode(logger, err, codeInternal, "unable to abort match")
	}
	logger.Info("RpcAbortMatch [User:%d]: forfeited", userID)
	return encodeResponse(logger, ackResponse{OK: true})
}
