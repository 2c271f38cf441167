package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
	"paddleduel/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

var errTransportDown = errors.New("transport down")

type sentMessage struct {
	userID    domain.UserID
	sessionID domain.SessionID
	msg       protocol.Message
}

// recordingTransport captures every send and can be told to fail.
type recordingTransport struct {
	mu        sync.Mutex
	sent      []sentMessage
	broadcast []sentMessage
	failSend  bool
	failCast  bool
}

func (t *recordingTransport) SendTo(_ context.Context, userID domain.UserID, msg protocol.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{userID: userID, msg: msg})
	if t.failSend {
		return errTransportDown
	}
	return nil
}

func (t *recordingTransport) Broadcast(_ context.Context, sessionID domain.SessionID, msg protocol.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcast = append(t.broadcast, sentMessage{sessionID: sessionID, msg: msg})
	if t.failCast {
		return errTransportDown
	}
	return nil
}

func (t *recordingTransport) sentTo(userID domain.UserID, typ protocol.Type) []protocol.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []protocol.Message
	for _, s := range t.sent {
		if s.userID == userID && s.msg.MessageType() == typ {
			out = append(out, s.msg)
		}
	}
	return out
}

func (t *recordingTransport) broadcastsFor(sessionID domain.SessionID, typ protocol.Type) []protocol.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []protocol.Message
	for _, s := range t.broadcast {
		if s.sessionID == sessionID && s.msg.MessageType() == typ {
			out = append(out, s.msg)
		}
	}
	return out
}

// fakeLogger captures warnings and errors for assertions.
type fakeLogger struct {
	runtime.Logger
	mu     sync.Mutex
	Warns  []string
	Errors []string
}

func (l *fakeLogger) Debug(string, ...interface{}) {}
func (l *fakeLogger) Info(string, ...interface{})  {}

func (l *fakeLogger) Warn(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, fmt.Sprintf(format, args...))
}

func (l *fakeLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, fmt.Sprintf(format, args...))
}

func (l *fakeLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Warns...)
}

// knownUsers is an IdentityLookup over a fixed set.
type knownUsers map[domain.UserID]bool

func (k knownUsers) Exists(_ context.Context, userID domain.UserID) (bool, error) {
	return k[userID], nil
}

// recordingHost records Open/Close calls and can refuse to open.
// duringOpen, if set, runs inside a successful Open.
type recordingHost struct {
	mu         sync.Mutex
	opened     []ports.SessionInfo
	closed     []domain.SessionID
	openErr    error
	duringOpen func(ports.SessionInfo)
}

func (h *recordingHost) Open(_ context.Context, info ports.SessionInfo) error {
	h.mu.Lock()
	if h.openErr != nil {
		h.mu.Unlock()
		return h.openErr
	}
	h.opened = append(h.opened, info)
	during := h.duringOpen
	h.mu.Unlock()
	if during != nil {
		during(info)
	}
	return nil
}

func (h *recordingHost) Close(_ context.Context, sessionID domain.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, sessionID)
}

type recordingRecorder struct {
	mu      sync.Mutex
	results []domain.MatchResult
}

func (r *recordingRecorder) RecordResult(_ context.Context, result domain.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func sequentialInvitationIDs() func() domain.InvitationID {
	var mu sync.Mutex
	n := 0
	return func() domain.InvitationID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return domain.InvitationID(fmt.Sprintf("inv-%d", n))
	}
}

func sequentialSessionIDs() func() domain.SessionID {
	var mu sync.Mutex
	n := 0
	return func() domain.SessionID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return domain.SessionID(fmt.Sprintf("session-%d", n))
	}
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		Arena: domain.Arena{
			Width:        800,
			Height:       600,
			PaddleWidth:  10,
			PaddleHeight: 100,
			PaddleMargin: 20,
			PaddleStep:   6,
			BallRadius:   8,
			BallSpeed:    300,
		},
		WinningScore: 3,
		TickInterval: time.Second / 60,
	}
}
