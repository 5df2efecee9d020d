package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap/zaptest"
)

func TestProviderSnapshot(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, &Config{ServiceName: "ff-test", ServiceVersion: "dev", Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	meter := p.Meter("test")
	ops, err := meter.Int64Counter("ops_total")
	require.NoError(t, err)
	hist, err := meter.Float64Histogram("duration_seconds")
	require.NoError(t, err)

	ops.Add(ctx, 2, metric.WithAttributes(attribute.String("operation", "b")))
	ops.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "a")))
	hist.Record(ctx, 0.5)
	hist.Record(ctx, 1.5)

	samples, err := p.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, Sample{Name: "duration_seconds", Value: 2, Count: 2}, samples[0])
	assert.Equal(t, Sample{Name: "ops_total", Attributes: "operation=a", Value: 1}, samples[1])
	assert.Equal(t, Sample{Name: "ops_total", Attributes: "operation=b", Value: 2}, samples[2])
}

func TestProviderEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, &Config{ServiceName: "ff-test"})
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	samples, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
