package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"paddleduel/internal/clock"
	"paddleduel/internal/domain"
	"paddleduel/internal/ports"
	"paddleduel/internal/protocol"
	"paddleduel/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// DefaultInvitationExpiration is how long an invitation stays pending unless configured.
const DefaultInvitationExpiration = 120 * time.Second

// AcceptanceHandler turns an accepted invitation into a match.
type AcceptanceHandler interface {
	OnInvitationAccepted(ctx context.Context, inv domain.Invitation) error
}

// RegistryOption customizes an InvitationRegistry.
type RegistryOption func(*InvitationRegistry)

// WithRegistryLogger sets the logger used for delivery failures.
func WithRegistryLogger(logger runtime.Logger) RegistryOption {
	return func(r *InvitationRegistry) { r.logger = orNop(logger) }
}

// WithIdentityLookup validates user ids before an invitation is created.
func WithIdentityLookup(lookup ports.IdentityLookup) RegistryOption {
	return func(r *InvitationRegistry) { r.identities = lookup }
}

// WithExpiration overrides DefaultInvitationExpiration.
func WithExpiration(d time.Duration) RegistryOption {
	return func(r *InvitationRegistry) { r.expiration = d }
}

// WithInvitationIDs overrides the id generator.
func WithInvitationIDs(next func() domain.InvitationID) RegistryOption {
	return func(r *InvitationRegistry) { r.newID = next }
}

// WithRegistryMetrics records invitation transitions.
func WithRegistryMetrics(m *telemetry.Metrics) RegistryOption {
	return func(r *InvitationRegistry) { r.metrics = m }
}

// WithAcceptanceHandler receives every accepted invitation.
func WithAcceptanceHandler(h AcceptanceHandler) RegistryOption {
	return func(r *InvitationRegistry) { r.handler = h }
}

// InvitationRegistry owns invitation records and their state machine.
//
// Each invitation lives in its own mutex-guarded cell. Status only changes
// through a check-and-set on Pending held under that lock, so an expiry
// timer and a concurrent accept or decline can never both win.
// Lock order is registry, then cell, then directory.
type InvitationRegistry struct {
	directory  *SessionDirectory
	transport  ports.Transport
	clock      clock.Clock
	logger     runtime.Logger
	identities ports.IdentityLookup
	metrics    *telemetry.Metrics
	handler    AcceptanceHandler
	expiration time.Duration
	newID      func() domain.InvitationID

	mu      sync.RWMutex
	cells   map[domain.InvitationID]*invitationCell
	pending map[invitationPair]domain.InvitationID
	closed  bool
}

type invitationPair struct {
	from domain.UserID
	to   domain.UserID
}

type invitationCell struct {
	mu     sync.Mutex
	inv    domain.Invitation
	expiry clock.CancelHandle
}

// NewInvitationRegistry constructs a registry. directory, transport and clk are required.
func NewInvitationRegistry(directory *SessionDirectory, transport ports.Transport, clk clock.Clock, opts ...RegistryOption) *InvitationRegistry {
	r := &InvitationRegistry{
		directory:  directory,
		transport:  transport,
		clock:      clk,
		logger:     nopLogger{},
		expiration: DefaultInvitationExpiration,
		newID:      domain.NewInvitationID,
		cells:      make(map[domain.InvitationID]*invitationCell),
		pending:    make(map[invitationPair]domain.InvitationID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendInvitation creates a pending invitation from one user to another and
// notifies the target. Re-sending while the same ordered pair is still
// pending returns the existing id. Both users are reserved in the directory
// until the invitation resolves; if either is already engaged the call fails
// with ErrUserEngaged.
func (r *InvitationRegistry) SendInvitation(ctx context.Context, from, to domain.UserID) (domain.InvitationID, error) {
	if !from.Valid() || !to.Valid() {
		return "", eris.Wrapf(ErrInvalidArgument, "user ids must be positive, got %d and %d", from, to)
	}
	if from == to {
		return "", eris.Wrapf(ErrInvalidArgument, "user %d cannot invite themselves", from)
	}
	if err := r.checkIdentities(ctx, from, to); err != nil {
		return "", err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrShuttingDown
	}

	key := invitationPair{from: from, to: to}
	if id, ok := r.pending[key]; ok {
		cell := r.cells[id]
		cell.mu.Lock()
		status := cell.inv.Status
		cell.mu.Unlock()
		if status == domain.InvitationPending {
			r.mu.Unlock()
			return id, nil
		}
		delete(r.pending, key)
	}

	id := r.newID()
	if !r.directory.ReservePair(from, to, InvitationOccupation(id)) {
		r.mu.Unlock()
		return "", eris.Wrapf(ErrUserEngaged, "cannot invite user %d from user %d", to, from)
	}

	now := r.clock.Now()
	cell := &invitationCell{inv: domain.Invitation{
		ID:        id,
		From:      from,
		To:        to,
		Status:    domain.InvitationPending,
		CreatedAt: now,
		ExpiresAt: now.Add(r.expiration),
	}}
	cell.mu.Lock()
	cell.expiry = r.clock.After(r.expiration, func() { r.expire(id) })
	inv := cell.inv
	cell.mu.Unlock()

	r.cells[id] = cell
	r.pending[key] = id
	r.mu.Unlock()

	r.metrics.InvitationTransition(ctx, inv.Status.String())
	r.send(ctx, to, protocol.InvitationCreated{
		InvitationID: inv.ID,
		FromUserID:   inv.From,
		ToUserID:     inv.To,
		ExpiresAt:    inv.ExpiresAt.UnixMilli(),
	})
	return id, nil
}

func (r *InvitationRegistry) checkIdentities(ctx context.Context, users ...domain.UserID) error {
	if r.identities == nil {
		return nil
	}
	for _, u := range users {
		ok, err := r.identities.Exists(ctx, u)
		if err != nil {
			return eris.Wrapf(err, "failed to look up user %d", u)
		}
		if !ok {
			return eris.Wrapf(ErrInvalidArgument, "unknown user %d", u)
		}
	}
	return nil
}

// AcceptInvitation accepts a pending invitation on behalf of its target.
// It returns false for unknown ids, the wrong acting user, resolved
// invitations and invitations past their expiry; the last case also
// expires the invitation.
func (r *InvitationRegistry) AcceptInvitation(ctx context.Context, id domain.InvitationID, actingUserID domain.UserID) bool {
	inv, ok := r.resolve(ctx, id, actingUserID, domain.InvitationAccepted)
	if !ok {
		return false
	}

	r.send(ctx, inv.From, protocol.InvitationAccepted{InvitationID: inv.ID, FromUserID: inv.From, ToUserID: inv.To})
	r.handOff(ctx, inv)
	return true
}

// DeclineInvitation declines a pending invitation on behalf of its target.
// Preconditions match AcceptInvitation.
func (r *InvitationRegistry) DeclineInvitation(ctx context.Context, id domain.InvitationID, actingUserID domain.UserID) bool {
	inv, ok := r.resolve(ctx, id, actingUserID, domain.InvitationDeclined)
	if !ok {
		return false
	}

	r.send(ctx, inv.From, protocol.InvitationDeclined{InvitationID: inv.ID, FromUserID: inv.From, ToUserID: inv.To})
	return true
}

func (r *InvitationRegistry) resolve(ctx context.Context, id domain.InvitationID, actingUserID domain.UserID, target domain.InvitationStatus) (domain.Invitation, bool) {
	cell := r.cell(id)
	if cell == nil {
		return domain.Invitation{}, false
	}

	cell.mu.Lock()
	if cell.inv.Status != domain.InvitationPending {
		cell.mu.Unlock()
		return domain.Invitation{}, false
	}
	now := r.clock.Now()
	if cell.inv.PastExpiry(now) {
		r.terminalizeLocked(cell, domain.InvitationExpired, now)
		inv := cell.inv
		cell.mu.Unlock()
		r.announceExpired(ctx, inv)
		return domain.Invitation{}, false
	}
	if actingUserID != cell.inv.To {
		cell.mu.Unlock()
		return domain.Invitation{}, false
	}
	r.terminalizeLocked(cell, target, now)
	inv := cell.inv
	cell.mu.Unlock()

	r.forgetPending(inv)
	r.metrics.InvitationTransition(ctx, inv.Status.String())
	return inv, true
}

// terminalizeLocked is the only place an invitation leaves Pending.
// The caller holds cell.mu.
func (r *InvitationRegistry) terminalizeLocked(cell *invitationCell, status domain.InvitationStatus, now time.Time) bool {
	if cell.inv.Status != domain.InvitationPending || !status.IsTerminal() {
		return false
	}
	cell.inv.Status = status
	cell.inv.ResolvedAt = now
	if cell.expiry != nil {
		cell.expiry.Cancel()
	}
	// Accepted invitations keep their reservations until the coordinator claims them.
	if status != domain.InvitationAccepted {
		occ := InvitationOccupation(cell.inv.ID)
		r.directory.ReleaseIf(cell.inv.From, occ)
		r.directory.ReleaseIf(cell.inv.To, occ)
	}
	return true
}

func (r *InvitationRegistry) handOff(ctx context.Context, inv domain.Invitation) {
	occ := InvitationOccupation(inv.ID)
	if r.handler == nil {
		r.directory.ReleaseIf(inv.From, occ)
		r.directory.ReleaseIf(inv.To, occ)
		return
	}
	if err := r.handler.OnInvitationAccepted(ctx, inv); err != nil {
		r.logger.Warn("InvitationRegistry: invitation %s accepted but no match was created: %v", inv.ID, err)
		r.directory.ReleaseIf(inv.From, occ)
		r.directory.ReleaseIf(inv.To, occ)
	}
}

func (r *InvitationRegistry) expire(id domain.InvitationID) {
	cell := r.cell(id)
	if cell == nil {
		return
	}
	cell.mu.Lock()
	expired := r.terminalizeLocked(cell, domain.InvitationExpired, r.clock.Now())
	inv := cell.inv
	cell.mu.Unlock()

	if expired {
		r.announceExpired(context.Background(), inv)
	}
}

func (r *InvitationRegistry) announceExpired(ctx context.Context, inv domain.Invitation) {
	r.forgetPending(inv)
	r.metrics.InvitationTransition(ctx, inv.Status.String())
	msg := protocol.InvitationExpired{InvitationID: inv.ID, FromUserID: inv.From, ToUserID: inv.To}
	r.send(ctx, inv.From, msg)
	r.send(ctx, inv.To, msg)
}

// HandleUserOffline expires every pending invitation the user is party to
// and returns how many were expired.
func (r *InvitationRegistry) HandleUserOffline(ctx context.Context, userID domain.UserID) int {
	r.mu.RLock()
	var ids []domain.InvitationID
	for key, id := range r.pending {
		if key.from == userID || key.to == userID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	count := 0
	for _, id := range ids {
		cell := r.cell(id)
		if cell == nil {
			continue
		}
		cell.mu.Lock()
		expired := r.terminalizeLocked(cell, domain.InvitationExpired, r.clock.Now())
		inv := cell.inv
		cell.mu.Unlock()
		if expired {
			count++
			r.announceExpired(ctx, inv)
		}
	}
	return count
}

// GetInvitation returns a copy of the invitation record.
func (r *InvitationRegistry) GetInvitation(id domain.InvitationID) (domain.Invitation, bool) {
	cell := r.cell(id)
	if cell == nil {
		return domain.Invitation{}, false
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.inv, true
}

// GetPendingInvitations lists pending invitations addressed to the user, oldest first.
func (r *InvitationRegistry) GetPendingInvitations(userID domain.UserID) []domain.Invitation {
	r.mu.RLock()
	var cells []*invitationCell
	for key, id := range r.pending {
		if key.to == userID {
			cells = append(cells, r.cells[id])
		}
	}
	r.mu.RUnlock()

	out := make([]domain.Invitation, 0, len(cells))
	for _, cell := range cells {
		cell.mu.Lock()
		if cell.inv.Status == domain.InvitationPending {
			out = append(out, cell.inv)
		}
		cell.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops accepting invitations and cancels every expiry timer.
// Pending invitations stay pending.
func (r *InvitationRegistry) Close() {
	r.mu.Lock()
	r.closed = true
	cells := make([]*invitationCell, 0, len(r.cells))
	for _, cell := range r.cells {
		cells = append(cells, cell)
	}
	r.mu.Unlock()

	for _, cell := range cells {
		cell.mu.Lock()
		if cell.expiry != nil {
			cell.expiry.Cancel()
		}
		cell.mu.Unlock()
	}
}

func (r *InvitationRegistry) cell(id domain.InvitationID) *invitationCell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cells[id]
}

func (r *InvitationRegistry) forgetPending(inv domain.Invitation) {
	key := invitationPair{from: inv.From, to: inv.To}
	r.mu.Lock()
	if r.pending[key] == inv.ID {
		delete(r.pending, key)
	}
	r.mu.Unlock()
}

func (r *InvitationRegistry) send(ctx context.Context, userID domain.UserID, msg protocol.Message) {
	if err := r.transport.SendTo(ctx, userID, msg); err != nil {
		r.logger.Warn("InvitationRegistry: failed to deliver %s to user %d: %v", msg.MessageType(), userID, err)
		r.metrics.TransportFailure(ctx, string(msg.MessageType()))
	}
}
