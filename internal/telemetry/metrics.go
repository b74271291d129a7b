package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	SimulationIDKey = attribute.Key("simulation.id")
	DomainTypeKey   = attribute.Key("simulation.domain_type")
	VerbKey         = attribute.Key("lifecycle.verb")
	OutcomeKey      = attribute.Key("lifecycle.outcome")
	ChannelKindKey  = attribute.Key("broadcast.channel_kind")
	EventKey        = attribute.Key("broadcast.event")
	PlanKey         = attribute.Key("billing.plan")
)

// SimMetrics holds the service instruments. A nil *SimMetrics records nothing.
type SimMetrics struct {
	Ticks       metric.Int64Counter       // engine advances
	Active      metric.Int64UpDownCounter // engine entries
	Transitions metric.Int64Counter       // orchestrated verbs by outcome
	Deliveries  metric.Int64Counter       // envelopes handed to members
	Dropped     metric.Int64Counter       // envelopes dropped on full buffers
	Denied      metric.Int64Counter       // authorization denials
	AITokens    metric.Int64Counter
	Payments    metric.Int64Counter
}

// NewSimMetrics registers the instruments on meter.
func NewSimMetrics(meter metric.Meter) (*SimMetrics, error) {
	var err error
	m := &SimMetrics{}

	if m.Ticks, err = meter.Int64Counter("nuwa.engine.ticks",
		metric.WithDescription("Simulation advances applied"),
		metric.WithUnit("{tick}"),
	); err != nil {
		return nil, err
	}
	if m.Active, err = meter.Int64UpDownCounter("nuwa.engine.active",
		metric.WithDescription("Simulations held by the engine"),
		metric.WithUnit("{simulation}"),
	); err != nil {
		return nil, err
	}
	if m.Transitions, err = meter.Int64Counter("nuwa.lifecycle.transitions",
		metric.WithDescription("Lifecycle verbs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.Deliveries, err = meter.Int64Counter("nuwa.broadcast.deliveries",
		metric.WithDescription("Envelopes delivered to channel members"),
	); err != nil {
		return nil, err
	}
	if m.Dropped, err = meter.Int64Counter("nuwa.broadcast.dropped",
		metric.WithDescription("Envelopes dropped because a member buffer was full"),
	); err != nil {
		return nil, err
	}
	if m.Denied, err = meter.Int64Counter("nuwa.access.denied",
		metric.WithDescription("Requests refused by the access resolver"),
	); err != nil {
		return nil, err
	}
	if m.AITokens, err = meter.Int64Counter("nuwa.ai.tokens",
		metric.WithDescription("Tokens reported by the text generation provider"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if m.Payments, err = meter.Int64Counter("nuwa.billing.payments",
		metric.WithDescription("Payment state changes"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Default builds instruments on the global meter provider, which is a no-op
// until Setup installs an exporter.
func Default() *SimMetrics {
	m, err := NewSimMetrics(otel.Meter("github.com/nuwa-agi/nuwa"))
	if err != nil {
		return nil
	}
	return m
}

func (m *SimMetrics) Tick(simID string) {
	if m == nil {
		return
	}
	m.Ticks.Add(context.Background(), 1, metric.WithAttributes(SimulationIDKey.String(simID)))
}

func (m *SimMetrics) ActiveDelta(n int64) {
	if m == nil {
		return
	}
	m.Active.Add(context.Background(), n)
}

func (m *SimMetrics) Transition(ctx context.Context, verb, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.Add(ctx, 1, metric.WithAttributes(VerbKey.String(verb), OutcomeKey.String(outcome)))
}

func (m *SimMetrics) Delivered(kind, event string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Deliveries.Add(context.Background(), int64(n), metric.WithAttributes(ChannelKindKey.String(kind), EventKey.String(event)))
}

func (m *SimMetrics) Drop(kind, event string) {
	if m == nil {
		return
	}
	m.Dropped.Add(context.Background(), 1, metric.WithAttributes(ChannelKindKey.String(kind), EventKey.String(event)))
}

func (m *SimMetrics) Deny(ctx context.Context, verb string) {
	if m == nil {
		return
	}
	m.Denied.Add(ctx, 1, metric.WithAttributes(VerbKey.String(verb)))
}

func (m *SimMetrics) Tokens(ctx context.Context, engine string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AITokens.Add(ctx, n, metric.WithAttributes(attribute.String("ai.engine", engine)))
}

func (m *SimMetrics) Payment(ctx context.Context, plan, status string) {
	if m == nil {
		return
	}
	m.Payments.Add(ctx, 1, metric.WithAttributes(PlanKey.String(plan), OutcomeKey.String(status)))
}
