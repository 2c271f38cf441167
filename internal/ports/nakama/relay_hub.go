package nakama

import (
	"errors"
	"fmt"
	"sync"

	"paddleduel/internal/domain"
	"paddleduel/internal/protocol"
)

var (
	// ErrNoRoute means no relay is registered for the session.
	ErrNoRoute = errors.New("no relay route for session")
	// ErrRouteFull means a state frame was dropped because the relay fell behind.
	ErrRouteFull = errors.New("relay queue full")
)

// relayFrame is one encoded message waiting for the match loop.
type relayFrame struct {
	opCode   int64
	data     []byte
	reliable bool
}

// relayRoute buffers a session's outgoing frames between the session's tick
// goroutine and the Nakama match loop that owns the presences.
type relayRoute struct {
	mu       sync.Mutex
	capacity int
	pending  []relayFrame
	started  *relayFrame
	latest   *relayFrame
	ended    bool
	closed   bool
}

// RelayHub routes session broadcasts to relay matches.
type RelayHub struct {
	codec    protocol.Codec
	capacity int

	mu     sync.RWMutex
	routes map[domain.SessionID]*relayRoute
}

// NewRelayHub creates a hub encoding frames with codec. Each route holds at most capacity frames.
func NewRelayHub(codec protocol.Codec, capacity int) *RelayHub {
	if capacity < 1 {
		capacity = 1
	}
	return &RelayHub{
		codec:    codec,
		capacity: capacity,
		routes:   make(map[domain.SessionID]*relayRoute),
	}
}

// Codec returns the wire codec frames are encoded with.
func (h *RelayHub) Codec() protocol.Codec { return h.codec }

// Open registers an empty route for a session.
func (h *RelayHub) Open(sessionID domain.SessionID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.routes[sessionID]; ok {
		return fmt.Errorf("relay route for session %s already open", sessionID)
	}
	h.routes[sessionID] = &relayRoute{capacity: h.capacity}
	return nil
}

// Close marks the route finished. The relay match drains what is left and then removes it.
func (h *RelayHub) Close(sessionID domain.SessionID) {
	if route := h.route(sessionID); route != nil {
		route.mu.Lock()
		route.closed = true
		route.mu.Unlock()
	}
}

// Remove drops the route.
func (h *RelayHub) Remove(sessionID domain.SessionID) {
	h.mu.Lock()
	delete(h.routes, sessionID)
	h.mu.Unlock()
}

// Publish encodes msg and queues it for the session's relay match. It never
// blocks. When the queue is full the oldest state frame is dropped;
// match.started and match.ended are never dropped.
func (h *RelayHub) Publish(sessionID domain.SessionID, msg protocol.Message) error {
	route := h.route(sessionID)
	if route == nil {
		return fmt.Errorf("%w %s", ErrNoRoute, sessionID)
	}
	opCode, reliable, err := opCodeFor(msg)
	if err != nil {
		return err
	}
	data, err := h.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.MessageType(), err)
	}
	frame := relayFrame{opCode: opCode, data: data, reliable: reliable}

	route.mu.Lock()
	defer route.mu.Unlock()
	if route.ended {
		return fmt.Errorf("relay route for session %s already ended", sessionID)
	}
	switch opCode {
	case OpMatchStarted:
		route.started = &frame
	case OpMatchStateTick:
		route.latest = &frame
	case OpMatchEnded:
		route.ended = true
	}

	var dropped bool
	if len(route.pending) >= route.capacity {
		dropped = route.dropOldestState()
	}
	route.pending = append(route.pending, frame)
	if dropped {
		return ErrRouteFull
	}
	return nil
}

// dropOldestState removes the oldest queued state frame. The caller holds mu.
func (r *relayRoute) dropOldestState() bool {
	for i, f := range r.pending {
		if f.opCode == OpMatchStateTick {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return true
		}
	}
	return false
}

// drain hands over every queued frame.
func (r *relayRoute) drain() []relayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

// catchUp returns the frames a late joiner needs: the start frame and the latest state.
func (r *relayRoute) catchUp() []relayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []relayFrame
	if r.started != nil {
		out = append(out, *r.started)
	}
	if r.latest != nil {
		out = append(out, *r.latest)
	}
	return out
}

// finished reports whether the session ended and every frame was delivered.
func (r *relayRoute) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (r.ended || r.closed) && len(r.pending) == 0
}

func (r *relayRoute) hasEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended || r.closed
}

func (h *RelayHub) route(sessionID domain.SessionID) *relayRoute {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.routes[sessionID]
}

func opCodeFor(msg protocol.Message) (opCode int64, reliable bool, err error) {
	switch msg.MessageType() {
	case protocol.TypeMatchStarted:
		return OpMatchStarted, true, nil
	case protocol.TypeMatchStateTick:
		return OpMatchStateTick, false, nil
	case protocol.TypeMatchEnded:
		return OpMatchEnded, true, nil
	default:
		return 0, false, fmt.Errorf("%s cannot be relayed", msg.MessageType())
	}
}
