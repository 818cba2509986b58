package instrumentation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the OpenTelemetry meter/tracer providers for the process
// lifetime and exposes the Metrics recorder built on top of them. Callers
// build exactly one Provider at startup and Shutdown it on exit.
type Provider struct {
	cfg Config

	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *Metrics

	// isPrometheus is true when cfg.MetricsExporter == "prometheus"; the
	// exporter registers itself against the default Prometheus registry, so
	// MetricsHandler just needs to know whether to serve it.
	isPrometheus bool
}

// NewProvider builds a Provider from cfg. When cfg.Enabled is false, it
// returns a disabled Provider whose Metrics() methods are all safe,
// zero-cost no-ops (every Metrics method nil-checks its instrument before
// recording).
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{cfg: cfg}

	if !cfg.Enabled {
		m, err := NewMetrics(otel.GetMeterProvider().Meter(TracerName), false)
		if err != nil {
			return nil, fmt.Errorf("build disabled metrics recorder: %w", err)
		}
		p.metrics = m
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	mp, isProm, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("build meter provider: %w", err)
	}
	p.meterProvider = mp
	p.isPrometheus = isProm
	otel.SetMeterProvider(mp)

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("build tracer provider: %w", err)
	}
	p.tracerProvider = tp
	otel.SetTracerProvider(tp)

	m, err := NewMetrics(mp.Meter(TracerName), false)
	if err != nil {
		return nil, fmt.Errorf("build metrics recorder: %w", err)
	}
	p.metrics = m

	return p, nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, bool, error) {
	var readers []metric.Option

	switch cfg.MetricsExporter {
	case "otlp":
		exp, err := otlpmetrichttp.New(ctx, otlpMetricOptions(cfg)...)
		if err != nil {
			return nil, false, fmt.Errorf("build otlp metric exporter: %w", err)
		}
		readers = append(readers, metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(DefaultMetricInterval))))
	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, false, fmt.Errorf("build stdout metric exporter: %w", err)
		}
		readers = append(readers, metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(DefaultMetricInterval))))
	default: // "prometheus"
		exp, err := prometheus.New()
		if err != nil {
			return nil, false, fmt.Errorf("build prometheus exporter: %w", err)
		}
		readers = append(readers, metric.WithReader(exp))
		opts := append([]metric.Option{metric.WithResource(res)}, readers...)
		return metric.NewMeterProvider(opts...), true, nil
	}

	opts := append([]metric.Option{metric.WithResource(res)}, readers...)
	return metric.NewMeterProvider(opts...), false, nil
}

func otlpMetricOptions(cfg Config) []otlpmetrichttp.Option {
	var opts []otlpmetrichttp.Option
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.OTLPEndpoint))
	}
	if cfg.OTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	sampler := sdktrace.TraceIDRatioBased(cfg.TraceSamplingRate)

	switch cfg.TracingExporter {
	case "otlp":
		var opts []otlptracehttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("build otlp trace exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		), nil
	case "stdout":
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("build stdout trace exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		), nil
	default: // "none"
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		), nil
	}
}

// Enabled reports whether this Provider was built from an enabled Config.
func (p *Provider) Enabled() bool {
	return p != nil && p.cfg.Enabled
}

// Metrics returns the metrics recorder. Safe to call on a disabled
// Provider; every Metrics method is a no-op when its instrument is nil.
func (p *Provider) Metrics() *Metrics {
	if p == nil {
		return nil
	}
	return p.metrics
}

// MetricsHandler returns the HTTP handler the admin server mounts at
// GET /metrics (spec §6.3 /metrics); cfg.PrometheusEndpoint is not
// consulted for that path. Returns nil when the
// provider isn't configured for Prometheus export (disabled, or using an
// OTLP/stdout push exporter instead).
func (p *Provider) MetricsHandler() http.Handler {
	if p == nil || !p.isPrometheus {
		return nil
	}
	return promhttp.Handler()
}

// Tracer returns a tracer scoped to name, falling back to the global
// tracer provider when instrumentation is disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return p.tracerProvider.Tracer(name)
}

// Shutdown flushes and closes the meter and tracer providers. Safe to call
// on a disabled or nil Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	if p.tracerProvider != nil {
		if e := p.tracerProvider.Shutdown(ctx); e != nil {
			err = fmt.Errorf("shutdown tracer provider: %w", e)
		}
	}
	if p.meterProvider != nil {
		if e := p.meterProvider.Shutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("shutdown meter provider: %w", e)
		}
	}
	return err
}
