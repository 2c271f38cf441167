package nakama

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

var errFakeNakama = errors.New("fake nakama failure")

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type storedObject struct {
	value   string
	version int
	read    int
}

type createdMatch struct {
	id     string
	module string
	params map[string]interface{}
}

type profileUpdate struct {
	accountID   string
	displayName string
	metadata    map[string]interface{}
}

// fakeNakamaModule implements the parts of runtime.NakamaModule the adapters use.
// Calling anything else panics on the nil embedded interface.
type fakeNakamaModule struct {
	runtime.NakamaModule

	mu            sync.Mutex
	storage       map[string]*storedObject
	notifications []*runtime.NotificationSend
	matches       []createdMatch
	profiles      []profileUpdate

	// metadata holds each account's metadata JSON as AccountGetId returns it.
	metadata map[string]string

	failWrites        error
	failNotifications error
	failMatchCreate   error
	failAccountGet    error
	// rejectNextWrites makes that many writes fail with a version conflict.
	rejectNextWrites int
}

func newFakeNakamaModule() *fakeNakamaModule {
	return &fakeNakamaModule{storage: make(map[string]*storedObject), metadata: make(map[string]string)}
}

func storageKey(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (f *fakeNakamaModule) StorageRead(_ context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		obj, ok := f.storage[storageKey(r.Collection, r.Key, r.UserID)]
		if !ok {
			continue
		}
		out = append(out, &api.StorageObject{
			Collection: r.Collection,
			Key:        r.Key,
			UserId:     r.UserID,
			Value:      obj.value,
			Version:    strconv.Itoa(obj.version),
		})
	}
	return out, nil
}

// StorageWrite applies all writes or none, honoring "*" (must not exist) and exact versions.
func (f *fakeNakamaModule) StorageWrite(_ context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites != nil {
		return nil, f.failWrites
	}
	if f.rejectNextWrites > 0 {
		f.rejectNextWrites--
		return nil, runtime.ErrStorageRejectedVersion
	}
	for _, w := range writes {
		obj, exists := f.storage[storageKey(w.Collection, w.Key, w.UserID)]
		switch {
		case w.Version == "":
		case w.Version == "*":
			if exists {
				return nil, runtime.ErrStorageRejectedVersion
			}
		case !exists || strconv.Itoa(obj.version) != w.Version:
			return nil, runtime.ErrStorageRejectedVersion
		}
	}

	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		k := storageKey(w.Collection, w.Key, w.UserID)
		obj, ok := f.storage[k]
		if !ok {
			obj = &storedObject{}
			f.storage[k] = obj
		}
		obj.value = w.Value
		obj.version++
		obj.read = w.PermissionRead
		acks = append(acks, &api.StorageObjectAck{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Version:    strconv.Itoa(obj.version),
		})
	}
	return acks, nil
}

func (f *fakeNakamaModule) object(collection, key, userID string) (*storedObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.storage[storageKey(collection, key, userID)]
	return obj, ok
}

func (f *fakeNakamaModule) NotificationsSend(_ context.Context, notifications []*runtime.NotificationSend) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNotifications != nil {
		return f.failNotifications
	}
	f.notifications = append(f.notifications, notifications...)
	return nil
}

// notificationsFor returns the notifications an account received with the given subject.
func (f *fakeNakamaModule) notificationsFor(accountID, subject string) []*runtime.NotificationSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*runtime.NotificationSend
	for _, n := range f.notifications {
		if n.UserID == accountID && n.Subject == subject {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNakamaModule) MatchCreate(_ context.Context, module string, params map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMatchCreate != nil {
		return "", f.failMatchCreate
	}
	id := fmt.Sprintf("match-%d.nakama", len(f.matches)+1)
	f.matches = append(f.matches, createdMatch{id: id, module: module, params: params})
	return id, nil
}

func (f *fakeNakamaModule) lastMatch() (createdMatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.matches) == 0 {
		return createdMatch{}, false
	}
	return f.matches[len(f.matches)-1], true
}

func (f *fakeNakamaModule) AccountGetId(_ context.Context, userID string) (*api.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAccountGet != nil {
		return nil, f.failAccountGet
	}
	raw, ok := f.metadata[userID]
	if !ok {
		raw = "{}"
	}
	return &api.Account{User: &api.User{Id: userID, Metadata: raw}}, nil
}

func (f *fakeNakamaModule) AccountUpdateId(_ context.Context, userID, _ string, metadata map[string]interface{}, displayName, _, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, profileUpdate{accountID: userID, displayName: displayName, metadata: metadata})
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		f.metadata[userID] = string(raw)
	}
	return nil
}

// fakePresence identifies a connected account.
type fakePresence struct {
	runtime.Presence
	userID string
}

func (p fakePresence) GetUserId() string    { return p.userID }
func (p fakePresence) GetSessionId() string { return "session-" + p.userID }
func (p fakePresence) GetNodeId() string    { return "node" }
func (p fakePresence) GetUsername() string  { return p.userID }

// fakeMatchData is one inbound match message.
type fakeMatchData struct {
	fakePresence
	opCode int64
	data   []byte
}

func (d fakeMatchData) GetOpCode() int64      { return d.opCode }
func (d fakeMatchData) GetData() []byte       { return d.data }
func (d fakeMatchData) GetReliable() bool     { return true }
func (d fakeMatchData) GetReceiveTime() int64 { return 0 }

var _ runtime.MatchData = fakeMatchData{}

type dispatched struct {
	opCode     int64
	data       []byte
	recipients []runtime.Presence
	reliable   bool
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	runtime.MatchDispatcher

	messages []dispatched
	labels   []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.messages = append(md.messages, dispatched{opCode: opCode, data: data, recipients: presences, reliable: reliable})
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

func (md *mockDispatcher) opCodes() []int64 {
	out := make([]int64, 0, len(md.messages))
	for _, m := range md.messages {
		out = append(out, m.opCode)
	}
	return out
}

type rpcFunc = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// fakeInitializer captures registrations.
type fakeInitializer struct {
	runtime.Initializer

	rpcs       map[string]rpcFunc
	matches    map[string]func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error)
	afterAuth  func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error
	sessionEnd func(ctx context.Context, logger runtime.Logger, evt *api.Event)
}

func newFakeInitializer() *fakeInitializer {
	return &fakeInitializer{
		rpcs:    make(map[string]rpcFunc),
		matches: make(map[string]func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error)),
	}
}

func (i *fakeInitializer) RegisterRpc(id string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	i.rpcs[id] = fn
	return nil
}

func (i *fakeInitializer) RegisterMatch(name string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error)) error {
	i.matches[name] = fn
	return nil
}

func (i *fakeInitializer) RegisterAfterAuthenticateDevice(fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error) error {
	i.afterAuth = fn
	return nil
}

func (i *fakeInitializer) RegisterEventSessionEnd(fn func(ctx context.Context, logger runtime.Logger, evt *api.Event)) error {
	i.sessionEnd = fn
	return nil
}

// ctxWithUserID stores the account id where Nakama keeps the caller.
func ctxWithUserID(accountID string) context.Context {
	//nolint:staticcheck // this is how Nakama reads user ids from the context.
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, accountID)
}

// ctxWithMatchID stores the match id the way Nakama does for match handlers.
func ctxWithMatchID(matchID string) context.Context {
	//nolint:staticcheck // matches Nakama's context layout.
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_MATCH_ID, matchID)
}
