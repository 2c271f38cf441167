package telemetry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the match lifecycle instruments.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	invitations       metric.Int64Counter
	sessions          metric.Int64Counter
	activeSessions    metric.Int64UpDownCounter
	transportFailures metric.Int64Counter
	tickDuration      metric.Float64Histogram
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.invitations, err = meter.Int64Counter("duel.invitations",
		metric.WithDescription("Invitation transitions by resulting status")); err != nil {
		return nil, eris.Wrap(err, "create invitations counter")
	}
	if m.sessions, err = meter.Int64Counter("duel.sessions",
		metric.WithDescription("Completed sessions by outcome")); err != nil {
		return nil, eris.Wrap(err, "create sessions counter")
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("duel.sessions.active",
		metric.WithDescription("Sessions currently running")); err != nil {
		return nil, eris.Wrap(err, "create active sessions counter")
	}
	if m.transportFailures, err = meter.Int64Counter("duel.transport.failures",
		metric.WithDescription("Failed message deliveries by message type")); err != nil {
		return nil, eris.Wrap(err, "create transport failures counter")
	}
	if m.tickDuration, err = meter.Float64Histogram("duel.tick.duration",
		metric.WithDescription("Time spent simulating one tick"),
		metric.WithUnit("ms")); err != nil {
		return nil, eris.Wrap(err, "create tick duration histogram")
	}
	return m, nil
}

// Global returns metrics bound to the global meter provider, or nil if
// the instruments cannot be created.
func Global() *Metrics {
	m, err := NewMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil
	}
	return m
}

// InvitationTransition counts an invitation entering a status.
func (m *Metrics) InvitationTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.invitations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// SessionStarted counts a session becoming active.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionEnded counts a completed session by outcome ("score" or "aborted").
func (m *Metrics) SessionEnded(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// TransportFailure counts a failed delivery.
func (m *Metrics) TransportFailure(ctx context.Context, messageType string) {
	if m == nil {
		return
	}
	m.transportFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("type", messageType)))
}

// TickDuration records how long one simulation tick took.
func (m *Metrics) TickDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Record(ctx, float64(d)/float64(time.Millisecond))
}
