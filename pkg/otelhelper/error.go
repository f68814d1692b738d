package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on the span and marks its status failed. The optional
// attributes identify the embark entity the failure concerns, attached to the
// recorded error event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err, trace.WithAttributes(attrs...))
}
