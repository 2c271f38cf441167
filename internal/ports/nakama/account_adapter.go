package nakama

import (
	"context"

	"paddleduel/internal/ports"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// NakamaAccountAdapter implements ports.AccountPort using Nakama's account API.
type NakamaAccountAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk runtime.NakamaModule) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// UpdateProfile sets the display name and merges metadata into the account's
// existing metadata. Nakama replaces metadata wholesale, so the current
// object is read first. An empty username leaves the username unchanged.
func (a *NakamaAccountAdapter) UpdateProfile(ctx context.Context, accountID, username, displayName string, metadata map[string]interface{}) error {
	if metadata != nil {
		merged, err := a.mergedMetadata(ctx, accountID, metadata)
		if err != nil {
			return err
		}
		metadata = merged
	}
	if err := a.nk.AccountUpdateId(ctx, accountID, username, metadata, displayName, "", "", "", ""); err != nil {
		return eris.Wrapf(err, "failed to update account %s", accountID)
	}
	return nil
}

func (a *NakamaAccountAdapter) mergedMetadata(ctx context.Context, accountID string, updates map[string]interface{}) (map[string]interface{}, error) {
	account, err := a.nk.AccountGetId(ctx, accountID)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read account %s", accountID)
	}
	merged := make(map[string]interface{})
	if raw := account.GetUser().GetMetadata(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &merged); err != nil {
			return nil, eris.Wrapf(err, "account %s has malformed metadata", accountID)
		}
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged, nil
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
