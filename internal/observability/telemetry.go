package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds telemetry configuration
type Config struct {
	Enabled     bool    `koanf:"enabled"`
	Exporter    string  `koanf:"exporter"`     // otlp-http, none
	Endpoint    string  `koanf:"endpoint"`     // localhost:4318; empty uses OTEL_EXPORTER_OTLP_ENDPOINT
	Insecure    bool    `koanf:"insecure"`     // plain HTTP to the collector
	ServiceName string  `koanf:"service_name"` // gatewayctl
	SampleRate  float64 `koanf:"sample_rate"`  // 0.0 to 1.0
}

// Run identifies the provisioning run on the exported resource, so traces
// can be filtered by stage and target account.
type Run struct {
	Stage     string
	Region    string
	AccountID string
}

type provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

var global = disabled()

func disabled() *provider {
	return &provider{tracer: noop.NewTracerProvider().Tracer("")}
}

// resourceAttributes describes the tool and the account it provisions.
func resourceAttributes(cfg Config, run Run) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(Version),
		semconv.CloudProviderAWS,
	}
	if run.Stage != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(run.Stage))
	}
	if run.Region != "" {
		attrs = append(attrs, semconv.CloudRegion(run.Region))
	}
	if run.AccountID != "" {
		attrs = append(attrs, semconv.CloudAccountID(run.AccountID))
	}
	return attrs
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// Init installs the tracer used for the spans of one run. With telemetry
// disabled every span is a no-op.
func Init(ctx context.Context, cfg Config, run Run) error {
	if !cfg.Enabled {
		global = disabled()
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "gatewayctl"
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg, run)...))
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp-http", "otlp", "":
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("create OTLP exporter: %w", err)
		}
		exporter = exp
	case "none":
		exporter = discardExporter{}
	default:
		return fmt.Errorf("unknown exporter: %s", cfg.Exporter)
	}

	// a run is short-lived; spans are flushed once at Shutdown
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	global = &provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}
	return nil
}

// Shutdown flushes the spans of the run and disables tracing. Callers
// bound it with a deadline; an unreachable collector only loses spans.
func Shutdown(ctx context.Context) error {
	p := global
	if p.tp == nil {
		return nil
	}
	global = disabled()
	return errors.Join(p.tp.ForceFlush(ctx), p.tp.Shutdown(ctx))
}

// Tracer returns the tracer of the current run.
func Tracer() trace.Tracer {
	return global.tracer
}

// Enabled reports whether spans of the current run are exported.
func Enabled() bool {
	return global.tp != nil
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }
