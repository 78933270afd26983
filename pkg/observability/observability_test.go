package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestTraceBatch(t *testing.T) {
	rec := installRecorder(t)
	tr := NewTracer("reader")

	rows, err := tr.TraceBatch(context.Background(), "fetch", 100, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, rows)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reader.fetch", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := map[string]interface{}{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "reader", attrs["arrowodbc.component"])
	assert.Equal(t, int64(100), attrs["batch.size"])
	assert.Equal(t, int64(42), attrs["batch.rows"])
}

func TestTraceBatchError(t *testing.T) {
	rec := installRecorder(t)
	boom := errors.New("driver gone")

	_, err := NewTracer("writer").TraceBatch(context.Background(), "execute", 5, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "driver gone", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
}

func TestInitTracing(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var out bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.PrettyPrint = false
	cfg.Writer = &out
	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	_, span := NewTracer("writer").StartSpan(context.Background(), "execute")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "writer.execute")
}

func TestSpanFromContextAddsEvents(t *testing.T) {
	rec := installRecorder(t)

	_, err := NewTracer("reader").TraceBatch(context.Background(), "fetch", 2, func(ctx context.Context) (int, error) {
		SpanFromContext(ctx).AddEvent("buffer grown", attribute.String("column", "notes"))
		return 2, nil
	})
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "buffer grown", spans[0].Events()[0].Name)
}
