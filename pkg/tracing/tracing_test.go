package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	t.Run("no tracer installed", func(t *testing.T) {
		SetTracer(nil)
		ctx, span := StartSpan(context.Background(), "test.NoTracer")
		defer span.End()
		assert.Empty(t, GetTraceID(ctx))
		assert.Empty(t, GetTraceParent(ctx))
	})

	t.Run("recording tracer", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		SetTracer(provider.Tracer("test"))
		defer SetTracer(nil)

		ctx, span := StartSpan(context.Background(), "test.Recording")
		SetAttributes(ctx, map[string]string{"tenant_id": "t1"})
		assert.NotEmpty(t, GetTraceID(ctx))
		assert.Contains(t, GetTraceParent(ctx), GetTraceID(ctx))
		span.End()

		ended := recorder.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, "test.Recording", ended[0].Name())
	})
}
