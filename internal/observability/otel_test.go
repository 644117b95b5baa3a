package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/d9705996/huddle/internal/observability"
)

func TestNew_ResourceAndScopes(t *testing.T) {
	ctx := context.Background()
	obs, log, err := observability.New(ctx, &observability.Config{
		ServiceName:    "huddle",
		ServiceVersion: "v1.2.3",
		Environment:    "staging",
		LogLevel:       "error",
	})
	require.NoError(t, err)
	t.Cleanup(func() { obs.Shutdown(context.Background()) })
	require.NotNil(t, log)

	attrs := map[attribute.Key]string{}
	for _, kv := range obs.Resource().Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "huddle", attrs["service.name"])
	assert.Equal(t, "v1.2.3", attrs["service.version"])
	assert.Equal(t, "staging", attrs["deployment.environment"])

	counter, err := obs.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	_, span := obs.Tracer("test").Start(ctx, "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
