package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/syndicate"

// Tracer provides OpenTelemetry tracing for syndicate.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new syndicate tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a new span for a notification delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, notificationID, kind, targetID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "syndicate.delivery",
		trace.WithAttributes(
			attribute.String("syndicate.notification_id", notificationID),
			attribute.String("syndicate.kind", kind),
			attribute.String("syndicate.target_id", targetID),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode int, err string) {
	if statusCode != 0 {
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
	if err != "" {
		span.SetAttributes(attribute.String("syndicate.error", err))
	}
	span.End()
}
