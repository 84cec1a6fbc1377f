package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
	outcomeSuccess = "success"
	outcomeError   = "error"
	statusOK       = "OK"
	statusCanceled = "CONTEXT_CANCELED"
)

// Instrument carries the RED metrics, tracer and base logger shared by the use cases of one service.
type Instrument struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstrument(tel observability.Observability, service string) *Instrument {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Instrument{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the service logger.
func (in *Instrument) Logger() observability.Logger { return in.log }

// Run tracks one use case execution from Start to End.
type Run struct {
	useCase string
	span    trace.Span
	start   time.Time
	log     observability.Logger
	in      *Instrument
	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the span "UC.<spanName>" and binds use_case to the request logger.
func (in *Instrument) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx, logger := logctx.Enrich(ctx, in.log, observability.F("use_case", useCase))
	return ctx, &Run{
		useCase: useCase,
		span:    span,
		start:   time.Now(),
		log:     logger,
		in:      in,
		outcome: outcomeSuccess,
		status:  statusOK,
	}
}

// Logger returns the request logger bound to this run.
func (r *Run) Logger() observability.Logger { return r.log }

// Span returns the use case span.
func (r *Run) Span() trace.Span { return r.span }

// Fail marks the run as failed with a SCREAMING_SNAKE status code.
func (r *Run) Fail(status string) {
	r.outcome, r.status = outcomeError, status
}

// Annotate adds fields to the final use_case_done record.
func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

// End closes the span, records RED metrics and writes the single use_case_done record.
func (r *Run) End(ctx context.Context, err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == outcomeSuccess {
		r.outcome = outcomeError
		if r.status == statusOK {
			r.status = "INTERNAL"
		}
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.log.Info("use_case_done", fields...)
}

// Publish hands events to pub with a short timeout and records external call metrics.
// Failures are logged on the run and never returned: events are best effort after commit.
func (r *Run) Publish(ctx context.Context, pub outbox.Publisher, events ...outbox.Event) {
	if pub == nil {
		return
	}
	for _, e := range events {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		pubStart := time.Now()
		pubOutcome := outcomeSuccess

		err := pub.Publish(pubCtx, e)
		if err == nil && pubCtx.Err() != nil {
			err = pubCtx.Err()
			pubOutcome = "canceled"
		} else if err != nil {
			pubOutcome = outcomeError
		}
		cancel()

		r.in.extCounter.Add(1,
			observability.L("peer", publishPeer),
			observability.L("endpoint", e.EventName()),
			observability.L("outcome", pubOutcome),
		)
		r.in.extHistogram.Observe(time.Since(pubStart).Seconds(),
			observability.L("peer", publishPeer),
			observability.L("endpoint", e.EventName()),
		)

		if err != nil {
			r.Annotate(observability.F("event_publish_error", err.Error()))
			r.log.Warn("event_publish_failed",
				observability.F("event", e.EventName()),
				observability.F("error", err.Error()),
			)
			continue
		}
		if r.span != nil {
			r.span.AddEvent(e.EventName())
		}
	}
}

// CheckContext fails the run when ctx is already done.
func (r *Run) CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		r.Fail(statusCanceled)
		return err
	}
	return nil
}
