package nakama

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"paddleduel/internal/domain"
	"paddleduel/internal/ports"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
)

// maxRegisterAttempts bounds optimistic retries on the player counter.
const maxRegisterAttempts = 8

// ErrPlayerNotFound is returned when an account or player id has no mapping.
var ErrPlayerNotFound = errors.New("player not found")

type playerCounter struct {
	Next int64 `json:"next"`
}

type accountRecord struct {
	UserID int64 `json:"user_id"`
}

type playerRecord struct {
	AccountID string `json:"account_id"`
}

// PlayerIndex maps Nakama account ids onto the positive numeric ids the game
// core uses. Mappings are system-owned storage objects and never change once
// written, so both directions are cached.
type PlayerIndex struct {
	nk runtime.NakamaModule

	mu        sync.RWMutex
	byAccount map[string]domain.UserID
	byUser    map[domain.UserID]string
}

// NewPlayerIndex creates an index backed by Nakama storage.
func NewPlayerIndex(nk runtime.NakamaModule) *PlayerIndex {
	return &PlayerIndex{
		nk:        nk,
		byAccount: make(map[string]domain.UserID),
		byUser:    make(map[domain.UserID]string),
	}
}

func accountKey(accountID string) string { return "account_" + accountID }

func playerKey(userID domain.UserID) string { return "player_" + strconv.FormatInt(int64(userID), 10) }

// Register returns the player id for accountID, allocating the next one on first use.
func (p *PlayerIndex) Register(ctx context.Context, accountID string) (domain.UserID, error) {
	if accountID == "" {
		return 0, fmt.Errorf("account id is required")
	}
	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		if id, err := p.UserID(ctx, accountID); err == nil {
			return id, nil
		} else if !errors.Is(err, ErrPlayerNotFound) {
			return 0, err
		}

		counter, version, err := p.readCounter(ctx)
		if err != nil {
			return 0, err
		}
		next := domain.UserID(counter.Next + 1)
		if version == "" {
			version = "*"
		}
		if err := p.writeMapping(ctx, accountID, next, version); err != nil {
			if errors.Is(err, runtime.ErrStorageRejectedVersion) {
				continue
			}
			return 0, err
		}
		p.remember(accountID, next)
		return next, nil
	}
	return 0, fmt.Errorf("failed to allocate player id for %s after %d attempts", accountID, maxRegisterAttempts)
}

func (p *PlayerIndex) readCounter(ctx context.Context) (playerCounter, string, error) {
	objects, err := p.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: playerCollection, Key: playerCounterKey},
	})
	if err != nil {
		return playerCounter{}, "", fmt.Errorf("failed to read player counter: %w", err)
	}
	var counter playerCounter
	if len(objects) == 0 {
		return counter, "", nil
	}
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &counter); err != nil {
		return counter, "", fmt.Errorf("failed to unmarshal player counter: %w", err)
	}
	return counter, objects[0].GetVersion(), nil
}

// writeMapping bumps the counter and writes both mapping objects in one
// storage transaction. A concurrent registration makes it fail with
// runtime.ErrStorageRejectedVersion.
func (p *PlayerIndex) writeMapping(ctx context.Context, accountID string, userID domain.UserID, counterVersion string) error {
	counterValue, err := json.Marshal(playerCounter{Next: int64(userID)})
	if err != nil {
		return fmt.Errorf("failed to marshal player counter: %w", err)
	}
	accountValue, err := json.Marshal(accountRecord{UserID: int64(userID)})
	if err != nil {
		return fmt.Errorf("failed to marshal account record: %w", err)
	}
	playerValue, err := json.Marshal(playerRecord{AccountID: accountID})
	if err != nil {
		return fmt.Errorf("failed to marshal player record: %w", err)
	}

	writes := []*runtime.StorageWrite{
		{
			Collection:      playerCollection,
			Key:             playerCounterKey,
			Value:           string(counterValue),
			Version:         counterVersion,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
		{
			Collection:      playerCollection,
			Key:             accountKey(accountID),
			Value:           string(accountValue),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
		{
			Collection:      playerCollection,
			Key:             playerKey(userID),
			Value:           string(playerValue),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}
	if _, err := p.nk.StorageWrite(ctx, writes); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return err
		}
		return fmt.Errorf("failed to write player mapping: %w", err)
	}
	return nil
}

// UserID resolves the player id of an account.
func (p *PlayerIndex) UserID(ctx context.Context, accountID string) (domain.UserID, error) {
	p.mu.RLock()
	id, ok := p.byAccount[accountID]
	p.mu.RUnlock()
	if ok {
		return id, nil
	}

	objects, err := p.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: playerCollection, Key: accountKey(accountID)},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read account mapping: %w", err)
	}
	if len(objects) == 0 {
		return 0, ErrPlayerNotFound
	}
	var record accountRecord
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &record); err != nil {
		return 0, fmt.Errorf("failed to unmarshal account mapping: %w", err)
	}
	id = domain.UserID(record.UserID)
	p.remember(accountID, id)
	return id, nil
}

// AccountID resolves the Nakama account behind a player id.
func (p *PlayerIndex) AccountID(ctx context.Context, userID domain.UserID) (string, error) {
	p.mu.RLock()
	accountID, ok := p.byUser[userID]
	p.mu.RUnlock()
	if ok {
		return accountID, nil
	}
	if !userID.Valid() {
		return "", ErrPlayerNotFound
	}

	objects, err := p.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: playerCollection, Key: playerKey(userID)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to read player mapping: %w", err)
	}
	if len(objects) == 0 {
		return "", ErrPlayerNotFound
	}
	var record playerRecord
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &record); err != nil {
		return "", fmt.Errorf("failed to unmarshal player mapping: %w", err)
	}
	p.remember(record.AccountID, userID)
	return record.AccountID, nil
}

// Exists reports whether the player id has been allocated.
func (p *PlayerIndex) Exists(ctx context.Context, userID domain.UserID) (bool, error) {
	_, err := p.AccountID(ctx, userID)
	if errors.Is(err, ErrPlayerNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *PlayerIndex) remember(accountID string, userID domain.UserID) {
	p.mu.Lock()
	p.byAccount[accountID] = userID
	p.byUser[userID] = accountID
	p.mu.Unlock()
}

var (
	_ ports.IdentityLookup = (*PlayerIndex)(nil)
	_ ports.PlayerRegistry = (*PlayerIndex)(nil)
)
