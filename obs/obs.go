// Package obs wires OpenTelemetry tracing for the turn pipeline.
package obs

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"voiceagent/core"
)

const instrumentationName = "voiceagent/obs"

type Exporter string

const (
	ExporterNone   Exporter = "none"
	ExporterStdout Exporter = "stdout"
)

// Options configures tracing.
type Options struct {
	ServiceName string   `json:"service_name"`
	Environment string   `json:"environment"`
	Exporter    Exporter `json:"exporter"`
	SampleRatio float64  `json:"sample_ratio"`
}

var (
	mu       sync.RWMutex
	provider *sdktrace.TracerProvider
)

type noopSpanExporter struct{}

func (noopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (noopSpanExporter) Shutdown(context.Context) error { return nil }

// Init installs a global tracer provider and returns its shutdown function.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "voiceagent"
	}
	if opts.SampleRatio <= 0 || opts.SampleRatio > 1 {
		opts.SampleRatio = 1
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", opts.ServiceName)}
	if opts.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", opts.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("obs: build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch opts.Exporter {
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("obs: build exporter: %w", err)
		}
	case ExporterNone, "":
		exporter = noopSpanExporter{}
	default:
		return nil, fmt.Errorf("obs: unknown exporter %q", opts.Exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	mu.Lock()
	provider = tp
	mu.Unlock()
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer exposes the configured tracer, or the global no-op one before Init.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return otel.Tracer(instrumentationName)
	}
	return provider.Tracer(instrumentationName)
}

// StartStage opens a span for one pipeline stage.
func StartStage(ctx context.Context, stage core.Stage, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("voice.stage", string(stage)))
	return Tracer().Start(ctx, "turn."+string(stage), trace.WithAttributes(attrs...))
}

// EndSpan records err on span, classified by kind, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("voice.error_kind", string(core.KindOf(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
