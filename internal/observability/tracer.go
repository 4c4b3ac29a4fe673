package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Version is stamped into the service resource and printed by the CLI.
var Version = "dev"

// StartSpan creates a new span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// TraceID returns the trace id carried by ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Common attribute keys for reconciliation spans
var (
	AttrGateway  = attribute.Key("gatewayctl.gateway")
	AttrAPIID    = attribute.Key("gatewayctl.api_id")
	AttrProtocol = attribute.Key("gatewayctl.protocol")
	AttrStage    = attribute.Key("gatewayctl.stage")
	AttrState    = attribute.Key("gatewayctl.state")
	AttrRunID    = attribute.Key("gatewayctl.run_id")
)
