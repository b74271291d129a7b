package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config selects the OTLP exporters. Exporters are skipped when Endpoint is empty.
type Config struct {
	ServiceName    string  `json:",default=nuwa"`
	ServiceVersion string  `json:",default=dev"`
	Environment    string  `json:",default=development"`
	Endpoint       string  `json:",optional"`
	Insecure       bool    `json:",default=true"`
	EnableTracing  bool    `json:",default=true"`
	EnableMetrics  bool    `json:",default=true"`
	SamplingRatio  float64 `json:",default=1"`
}

// Provider owns the SDK providers installed as otel globals.
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Metrics        *SimMetrics
}

// Setup installs exporters according to c and returns the instruments.
// With no endpoint it only builds instruments on the global no-op providers.
func Setup(ctx context.Context, c Config) (*Provider, error) {
	p := &Provider{}
	if c.Endpoint != "" {
		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(c.ServiceName),
				semconv.ServiceVersionKey.String(c.ServiceVersion),
				semconv.DeploymentEnvironmentKey.String(c.Environment),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
		if c.EnableTracing {
			opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.Endpoint)}
			if c.Insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
			exp, err := otlptracehttp.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("failed to init tracing: %w", err)
			}
			p.TracerProvider = trace.NewTracerProvider(
				trace.WithResource(res),
				trace.WithBatcher(exp, trace.WithBatchTimeout(5*time.Second)),
				trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(c.SamplingRatio))),
			)
			otel.SetTracerProvider(p.TracerProvider)
		}
		if c.EnableMetrics {
			opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.Endpoint)}
			if c.Insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
			exp, err := otlpmetrichttp.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("failed to init metrics: %w", err)
			}
			p.MeterProvider = metric.NewMeterProvider(
				metric.WithResource(res),
				metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(30*time.Second))),
			)
			otel.SetMeterProvider(p.MeterProvider)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	m, err := NewSimMetrics(otel.Meter("github.com/nuwa-agi/nuwa"))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	p.Metrics = m
	return p, nil
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown TracerProvider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown MeterProvider: %w", err))
		}
	}
	return errors.Join(errs...)
}
