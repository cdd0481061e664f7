package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Carrier is the W3C trace context persisted next to deferred work (outbox
// rows, reminder jobs) so the span chain survives the hop through the table.
type Carrier struct {
	Traceparent string
	Tracestate  string
}

func CarrierFromContext(ctx context.Context) Carrier {
	m := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, m)
	return Carrier{Traceparent: m.Get("traceparent"), Tracestate: m.Get("tracestate")}
}

func (c Carrier) Empty() bool {
	return c.Traceparent == "" && c.Tracestate == ""
}

// Context returns parent continued from c, or parent itself when c is empty.
func (c Carrier) Context(parent context.Context) context.Context {
	if c.Empty() {
		return parent
	}
	m := propagation.MapCarrier{}
	m.Set("traceparent", c.Traceparent)
	if c.Tracestate != "" {
		m.Set("tracestate", c.Tracestate)
	}
	return otel.GetTextMapPropagator().Extract(parent, m)
}
