package nakama

import (
	"context"
	"fmt"

	"paddleduel/internal/domain"
	"paddleduel/internal/ports"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
)

// resultRecord is the stored form of a finished session.
type resultRecord struct {
	SessionID   string `json:"session_id"`
	LeftUserID  int64  `json:"left_user_id"`
	RightUserID int64  `json:"right_user_id"`
	LeftScore   int    `json:"left_score"`
	RightScore  int    `json:"right_score"`
	Winner      int64  `json:"winner_user_id"`
	Reason      string `json:"reason"`
	AbortReason string `json:"abort_reason,omitempty"`
	Ticks       uint64 `json:"ticks"`
	StartedAt   int64  `json:"started_at"`
	EndedAt     int64  `json:"ended_at"`
}

// historyEntry is a player's own view of a finished session.
type historyEntry struct {
	SessionID  string `json:"session_id"`
	OpponentID int64  `json:"opponent_user_id"`
	Outcome    string `json:"outcome"`
	Score      int    `json:"score"`
	Against    int    `json:"against"`
	EndedAt    int64  `json:"ended_at"`
}

// StorageResultRecorder persists results: one public system-owned record per
// session plus an owner-readable history entry per player.
type StorageResultRecorder struct {
	nk         runtime.NakamaModule
	accounts   accountResolver
	collection string
}

// NewStorageResultRecorder writes results into collection.
func NewStorageResultRecorder(nk runtime.NakamaModule, accounts accountResolver, collection string) *StorageResultRecorder {
	return &StorageResultRecorder{nk: nk, accounts: accounts, collection: collection}
}

// RecordResult writes every object for one result in a single storage call.
func (r *StorageResultRecorder) RecordResult(ctx context.Context, result domain.MatchResult) error {
	record := resultRecord{
		SessionID:   string(result.SessionID),
		LeftUserID:  int64(result.Left),
		RightUserID: int64(result.Right),
		LeftScore:   result.LeftScore,
		RightScore:  result.RightScore,
		Winner:      int64(result.Winner),
		Reason:      string(result.Reason),
		AbortReason: result.AbortReason,
		Ticks:       result.Ticks,
		StartedAt:   result.StartedAt.UnixMilli(),
		EndedAt:     result.EndedAt.UnixMilli(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal match result: %w", err)
	}

	writes := []*runtime.StorageWrite{
		{
			Collection:      r.collection,
			Key:             string(result.SessionID),
			Value:           string(value),
			PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}
	for _, side := range [2]domain.Side{domain.SideLeft, domain.SideRight} {
		write, err := r.historyWrite(ctx, result, side)
		if err != nil {
			return err
		}
		writes = append(writes, write)
	}

	if _, err := r.nk.StorageWrite(ctx, writes); err != nil {
		return fmt.Errorf("failed to write match result: %w", err)
	}
	return nil
}

func (r *StorageResultRecorder) historyWrite(ctx context.Context, result domain.MatchResult, side domain.Side) (*runtime.StorageWrite, error) {
	self, opponent := result.Left, result.Right
	score, against := result.LeftScore, result.RightScore
	if side == domain.SideRight {
		self, opponent = opponent, self
		score, against = against, score
	}
	accountID, err := r.accounts.AccountID(ctx, self)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account for user %d: %w", self, err)
	}

	value, err := json.Marshal(historyEntry{
		SessionID:  string(result.SessionID),
		OpponentID: int64(opponent),
		Outcome:    outcomeFor(result, self),
		Score:      score,
		Against:    against,
		EndedAt:    result.EndedAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return &runtime.StorageWrite{
		Collection:      r.collection,
		Key:             historyKeyPrefix + string(result.SessionID),
		UserID:          accountID,
		Value:           string(value),
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}, nil
}

func outcomeFor(result domain.MatchResult, userID domain.UserID) string {
	switch {
	case result.Aborted():
		return "aborted"
	case result.Winner == userID:
		return "win"
	case result.Winner == 0:
		return "draw"
	default:
		return "loss"
	}
}

var _ ports.ResultRecorder = (*StorageResultRecorder)(nil)
