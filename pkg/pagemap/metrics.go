package pagemap

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// engineMetrics counts kernel round-trips made by the engine
type engineMetrics struct {
	callsCtr    metric.Int64Counter
	errorsCtr   metric.Int64Counter
	durationHst metric.Float64Histogram
	pagesHst    metric.Int64Histogram
}

func newEngineMetrics(meter metric.Meter, logger *zap.Logger) *engineMetrics {
	m := &engineMetrics{}
	var err error

	m.callsCtr, err = meter.Int64Counter(
		"pagemap_operations_total",
		metric.WithDescription("Page introspection operations performed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create operations counter", zap.Error(err))
		m.callsCtr = nil
	}

	m.errorsCtr, err = meter.Int64Counter(
		"pagemap_errors_total",
		metric.WithDescription("Page introspection operations that failed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create errors counter", zap.Error(err))
		m.errorsCtr = nil
	}

	m.durationHst, err = meter.Float64Histogram(
		"pagemap_operation_duration_seconds",
		metric.WithDescription("Duration of page introspection operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0),
	)
	if err != nil {
		logger.Debug("Failed to create duration histogram", zap.Error(err))
		m.durationHst = nil
	}

	m.pagesHst, err = meter.Int64Histogram(
		"pagemap_resident_pages",
		metric.WithDescription("Resident pages found per residency check"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create resident pages histogram", zap.Error(err))
		m.pagesHst = nil
	}

	return m
}

// record is deferred by every operation with the operation's final error
func (m *engineMetrics) record(op string, start time.Time, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("operation", op))

	if m.callsCtr != nil {
		m.callsCtr.Add(ctx, 1, attrs)
	}
	if err != nil && m.errorsCtr != nil {
		m.errorsCtr.Add(ctx, 1, attrs)
	}
	if m.durationHst != nil {
		m.durationHst.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func (m *engineMetrics) recordResident(n int) {
	if m.pagesHst != nil {
		m.pagesHst.Record(context.Background(), int64(n))
	}
}
