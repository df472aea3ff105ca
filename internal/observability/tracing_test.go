package observability

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetled/store/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(config.DefaultTracingConfig())
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.StartSpan(context.Background(), "noop", attribute.String("k", "v"))
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_RecordsSpansWithAttributes(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tracer := NewTracerWithExporter(config.DefaultTracingConfig(), exp)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	ctx, parent := tracer.StartSpan(context.Background(), "home", attribute.String("view.name", "index.html"))
	_, child := tracer.StartSpan(ctx, "render")
	child.End()
	parent.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "render", spans[0].Name)
	assert.Equal(t, "home", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Contains(t, spans[1].Attributes, attribute.String("view.name", "index.html"))
}

func TestTracer_ConcurrentSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tracer := NewTracerWithExporter(config.DefaultTracingConfig(), exp)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, span := tracer.StartSpan(context.Background(), "concurrent-span", attribute.Int("id", id))
			span.End()
		}(i)
	}
	wg.Wait()

	assert.Len(t, exp.GetSpans(), 10)
}
