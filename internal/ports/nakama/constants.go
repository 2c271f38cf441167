package nakama

const (
	// RPC ids clients call. Payloads and responses are JSON.
	RpcInvitationSend        = "invitation_send"
	RpcInvitationAccept      = "invitation_accept"
	RpcInvitationDecline     = "invitation_decline"
	RpcInvitationGet         = "invitation_get"
	RpcInvitationListPending = "invitation_list_pending"
	RpcMatchAbort            = "match_abort"

	// MatchNameRelay is the authoritative match handler that relays one session.
	MatchNameRelay = "duel_relay"
)

// Op codes for relay match messages.
const (
	// Client -> Server
	OpPaddleInput int64 = 1

	// Server -> Client events
	OpMatchStarted   int64 = 101
	OpMatchStateTick int64 = 102
	OpMatchEnded     int64 = 103
)

// Notification codes for messages delivered outside a match. Nakama reserves codes <= 0.
const (
	NotifyInvitationCreated  = 1001
	NotifyInvitationAccepted = 1002
	NotifyInvitationDeclined = 1003
	NotifyInvitationExpired  = 1004
	NotifyMatchReady         = 1005
	NotifyMatchRejected      = 1006
)

// Storage layout.
const (
	playerCollection = "duel_players"
	playerCounterKey = "counter"
	historyKeyPrefix = "history_"

	// Match params passed from MatchCreate to MatchInit.
	paramSessionID = "session_id"
	paramLeftUser  = "left_user_id"
	paramRightUser = "right_user_id"

	// ticketMetadataKey carries the join ticket in match join metadata.
	ticketMetadataKey = "ticket"
)
