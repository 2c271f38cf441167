package nakama

import (
	"context"
	"fmt"

	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
	"paddleduel/internal/protocol"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
)

// notificationCodes maps direct messages onto Nakama notification codes.
var notificationCodes = map[protocol.Type]int{
	protocol.TypeInvitationCreated:  NotifyInvitationCreated,
	protocol.TypeInvitationAccepted: NotifyInvitationAccepted,
	protocol.TypeInvitationDeclined: NotifyInvitationDeclined,
	protocol.TypeInvitationExpired:  NotifyInvitationExpired,
	protocol.TypeMatchReady:         NotifyMatchReady,
	protocol.TypeMatchRejected:      NotifyMatchRejected,
}

// persistentTypes are stored for offline users; everything else is only
// useful while the user is connected.
var persistentTypes = map[protocol.Type]bool{
	protocol.TypeInvitationCreated: true,
	protocol.TypeMatchReady:        true,
}

// accountResolver maps player ids back to Nakama accounts.
type accountResolver interface {
	AccountID(ctx context.Context, userID domain.UserID) (string, error)
}

// NotificationTransport delivers direct messages as Nakama notifications and
// session broadcasts through the relay hub.
type NotificationTransport struct {
	nk       runtime.NakamaModule
	accounts accountResolver
	hub      *RelayHub
}

// NewNotificationTransport creates a transport.
func NewNotificationTransport(nk runtime.NakamaModule, accounts accountResolver, hub *RelayHub) *NotificationTransport {
	return &NotificationTransport{nk: nk, accounts: accounts, hub: hub}
}

// SendTo notifies one player.
func (t *NotificationTransport) SendTo(ctx context.Context, userID domain.UserID, msg protocol.Message) error {
	code, ok := notificationCodes[msg.MessageType()]
	if !ok {
		return fmt.Errorf("%s cannot be sent as a notification", msg.MessageType())
	}
	accountID, err := t.accounts.AccountID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve account for user %d: %w", userID, err)
	}
	content, err := notificationContent(msg)
	if err != nil {
		return err
	}

	notifications := []*runtime.NotificationSend{
		{
			UserID:     accountID,
			Subject:    string(msg.MessageType()),
			Content:    content,
			Code:       code,
			Persistent: persistentTypes[msg.MessageType()],
		},
	}
	if err := t.nk.NotificationsSend(ctx, notifications); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", msg.MessageType(), err)
	}
	return nil
}

// Broadcast queues a session message for the session's relay match.
func (t *NotificationTransport) Broadcast(_ context.Context, sessionID domain.SessionID, msg protocol.Message) error {
	return t.hub.Publish(sessionID, msg)
}

// notificationContent renders msg as the {"type", "payload"} envelope Nakama stores as content.
func notificationContent(msg protocol.Message) (map[string]interface{}, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.MessageType(), err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", msg.MessageType(), err)
	}
	return map[string]interface{}{
		"type":    string(msg.MessageType()),
		"payload": payload,
	}, nil
}

var _ ports.Transport = (*NotificationTransport)(nil)
