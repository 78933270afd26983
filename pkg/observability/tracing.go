// Package observability provides tracing for bulk fetch and bulk execute
// calls.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans created by this module.
const InstrumentationName = "github.com/ajitpratap0/arrowodbc"

// Span wraps an otel span and collects attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// SetAttribute records a typed attribute. Unknown types are rendered with %v.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Fail records err and marks the span as failed.
func (s *Span) Fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End flushes the collected attributes and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// SpanFromContext returns the span carried by ctx. Ending it is left to
// whoever started it.
func SpanFromContext(ctx context.Context) *Span {
	return &Span{span: trace.SpanFromContext(ctx)}
}

// Tracer creates spans for one component ("reader", "writer").
type Tracer struct {
	component string
}

// NewTracer returns a tracer for component. Spans go to the global tracer
// provider, so nothing is recorded until one is installed.
func NewTracer(component string) *Tracer {
	return &Tracer{component: component}
}

// StartSpan starts a span named "<component>.<operation>".
func (t *Tracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, t.component+"."+operation)
	s := &Span{span: span}
	s.SetAttribute("arrowodbc.component", t.component)
	return ctx, s
}

// TraceBatch runs fn inside a span carrying the batch size. The number of
// rows fn reports is recorded as well.
func (t *Tracer) TraceBatch(ctx context.Context, operation string, batchSize int, fn func(context.Context) (int, error)) (int, error) {
	ctx, span := t.StartSpan(ctx, operation)
	defer span.End()

	span.SetAttribute("batch.size", batchSize)
	rows, err := fn(ctx)
	span.SetAttribute("batch.rows", rows)
	if err != nil {
		span.Fail(err)
		return rows, err
	}
	span.span.SetStatus(codes.Ok, "")
	return rows, nil
}
