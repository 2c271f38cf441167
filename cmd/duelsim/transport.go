package main

import (
	"context"
	"sync"

	"paddleduel/internal/domain"
	"paddleduel/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// tickLogEvery limits debug output for state ticks.
const tickLogEvery = 60

type transportStats struct {
	Messages int
	Bytes    int
}

// logTransport delivers nothing. It encodes every message with the
// configured wire codec, counts the traffic and logs what a client would see.
type logTransport struct {
	logger runtime.Logger
	codec  protocol.Codec

	mu     sync.Mutex
	stats  transportStats
	scores map[domain.SessionID][2]int
}

func newLogTransport(logger runtime.Logger, codec protocol.Codec) *logTransport {
	return &logTransport{
		logger: logger,
		codec:  codec,
		scores: make(map[domain.SessionID][2]int),
	}
}

func (t *logTransport) SendTo(_ context.Context, userID domain.UserID, msg protocol.Message) error {
	size, err := t.account(msg)
	if err != nil {
		return err
	}
	t.logger.Info("Transport: %s -> user %d (%d bytes)", msg.MessageType(), userID, size)
	return nil
}

func (t *logTransport) Broadcast(_ context.Context, sessionID domain.SessionID, msg protocol.Message) error {
	if _, err := t.account(msg); err != nil {
		return err
	}

	switch m := msg.(type) {
	case protocol.MatchStateTick:
		if t.scoreChanged(sessionID, m.State) {
			t.logger.Info("Transport: session %s score %d-%d at tick %d", sessionID, m.State.LeftScore, m.State.RightScore, m.Tick)
		} else if m.Tick%tickLogEvery == 0 {
			t.logger.Debug("Transport: session %s tick %d ball (%.0f, %.0f)", sessionID, m.Tick, m.State.BallX, m.State.BallY)
		}
	case protocol.MatchEnded:
		t.forget(sessionID)
		t.logger.Info("Transport: session %s ended %d-%d (aborted=%v reason=%q)", sessionID, m.LeftScore, m.RightScore, m.Aborted, m.Reason)
	default:
		t.logger.Info("Transport: %s -> session %s", msg.MessageType(), sessionID)
	}
	return nil
}

func (t *logTransport) account(msg protocol.Message) (int, error) {
	data, err := t.codec.Encode(msg)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to encode %s", msg.MessageType())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Messages++
	t.stats.Bytes += len(data)
	return len(data), nil
}

func (t *logTransport) scoreChanged(sessionID domain.SessionID, state protocol.State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	score := [2]int{state.LeftScore, state.RightScore}
	changed := t.scores[sessionID] != score
	t.scores[sessionID] = score
	return changed
}

func (t *logTransport) forget(sessionID domain.SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.scores, sessionID)
}

// Stats returns the traffic counted so far.
func (t *logTransport) Stats() transportStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
