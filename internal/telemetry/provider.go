// Package telemetry collects the metrics ff's packages record so a command can
// report them when it exits.
package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// Config holds telemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Global installs the provider as the process-wide meter provider
	Global bool
	Logger *zap.Logger
}

// Provider owns an in-process meter provider read on demand
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	reader        *sdkmetric.ManualReader
	logger        *zap.Logger
}

// Sample is one aggregated series
type Sample struct {
	Name       string  `json:"name" yaml:"name"`
	Attributes string  `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Value      float64 `json:"value" yaml:"value"`
	// Count is set for histograms, Value then holds the sum
	Count uint64 `json:"count,omitempty" yaml:"count,omitempty"`
}

// NewProvider creates the meter provider
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
		resource.WithProcessPID(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	p := &Provider{
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		),
		reader: reader,
		logger: logger,
	}

	if config.Global {
		otel.SetMeterProvider(p.meterProvider)
	}

	return p, nil
}

// Meter returns a meter from this provider
func (p *Provider) Meter(name string) metric.Meter {
	return p.meterProvider.Meter(name)
}

// Snapshot collects every series recorded so far, sorted by name
func (p *Provider) Snapshot(ctx context.Context) ([]Sample, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	var samples []Sample
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					samples = append(samples, Sample{Name: m.Name, Attributes: formatAttributes(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					samples = append(samples, Sample{Name: m.Name, Attributes: formatAttributes(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					samples = append(samples, Sample{Name: m.Name, Attributes: formatAttributes(dp.Attributes), Value: float64(dp.Sum), Count: dp.Count})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					samples = append(samples, Sample{Name: m.Name, Attributes: formatAttributes(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			default:
				p.logger.Debug("Skipping unsupported aggregation", zap.String("metric", m.Name))
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Attributes < samples[j].Attributes
	})
	return samples, nil
}

// Shutdown flushes and stops the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

func formatAttributes(set attribute.Set) string {
	parts := make([]string, 0, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(parts, ",")
}
