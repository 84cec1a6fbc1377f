package workerpresentation

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const relayPeer = "broker"

// Relay forwards every event from the in-process bus to an external publisher.
type Relay struct {
	target  outbox.Publisher
	tracer  observability.Tracer
	log     observability.Logger
	counter observability.Counter
	latency observability.Histogram
}

func NewRelay(target outbox.Publisher, tel observability.Observability) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Relay{
		target:  target,
		tracer:  tel.Tracer(),
		log:     tel.Logger().With(observability.F("component", "relay")),
		counter: tel.Metrics().Counter(observability.MExternalRequests),
		latency: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Register subscribes the relay to all events of sub.
func (r *Relay) Register(sub outbox.Subscriber) {
	sub.Subscribe("*", r.Handle)
}

func (r *Relay) Handle(ctx context.Context, e outbox.Event) error {
	name := e.EventName()
	ctx, span := r.tracer.Start(ctx, "Relay."+name, attribute.String("messaging.destination", name))
	defer span.End()

	attrs := map[string]string{"event": name}
	if k, ok := e.(outbox.Keyed); ok {
		attrs["event_id"] = k.EventKey()
	}
	ctx = WithEventContext(ctx, r.log, attrs)
	logger := logctx.FromOr(ctx, r.log)

	start := time.Now()
	err := r.target.Publish(ctx, e)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.counter.Add(1,
		observability.L("peer", relayPeer),
		observability.L("endpoint", name),
		observability.L("outcome", outcome),
	)
	r.latency.Observe(time.Since(start).Seconds(),
		observability.L("peer", relayPeer),
		observability.L("endpoint", name),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("event_relay_failed", observability.F("error", err.Error()))
		return err
	}
	span.SetStatus(codes.Ok, "")
	logger.Debug("event_relayed")
	return nil
}
