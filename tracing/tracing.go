// Package tracing installs the OpenTelemetry tracer provider used by the
// monitor's emit spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/leeforge/monitor/errors"
)

// InstrumentationName names the tracer the monitor emits spans on.
const InstrumentationName = "github.com/leeforge/monitor"

// Config describes the tracer provider.
type Config struct {
	ServiceName  string  `mapstructure:"service-name" json:"serviceName" yaml:"service-name" default:"monitord"`
	Version      string  `mapstructure:"version" json:"version" yaml:"version"`
	Environment  string  `mapstructure:"environment" json:"environment" yaml:"environment"`
	SamplingRate float64 `mapstructure:"sampling-rate" json:"samplingRate" yaml:"sampling-rate" default:"1"`
	// Synchronous exports each span as it ends instead of batching.
	Synchronous bool `mapstructure:"synchronous" json:"synchronous" yaml:"synchronous"`
}

// Provider owns an SDK tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a tracer provider exporting to exporter and installs it
// as the global provider. A nil exporter records spans without exporting.
func NewProvider(cfg Config, exporter sdktrace.SpanExporter) (*Provider, error) {
	if cfg.SamplingRate < 0 || cfg.SamplingRate > 1 {
		return nil, apperrors.NewConfiguration("tracing sampling rate must be within [0, 1]").
			WithDetail("samplingRate", cfg.SamplingRate)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "monitord"
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
		attribute.String("environment", cfg.Environment),
	)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		sdktrace.WithResource(res),
	}
	if exporter != nil {
		if cfg.Synchronous {
			opts = append(opts, sdktrace.WithSyncer(exporter))
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &Provider{tp: tp}, nil
}

// Tracer returns the tracer the monitor should use.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(InstrumentationName)
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
