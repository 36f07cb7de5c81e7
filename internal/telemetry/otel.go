package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName             = "quad9-domains"
	defaultShutdownTimeout = 5 * time.Second
)

// Options configures span export for one run.
type Options struct {
	Endpoint        string // OTLP/HTTP host:port; empty disables export
	Insecure        bool
	ServiceName     string
	ServiceVersion  string
	ShutdownTimeout time.Duration
}

// Shutdown flushes pending spans. It never blocks longer than the configured
// timeout, so a dead collector cannot hold up the exit of a run.
type Shutdown func() error

// Init installs a global tracer provider exporting over OTLP/HTTP. With no
// endpoint the default non-recording provider stays in place.
func Init(ctx context.Context, o Options) (Shutdown, error) {
	if o.Endpoint == "" {
		return func() error { return nil }, nil
	}
	clientOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.Endpoint)}
	if o.Insecure {
		clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	tp := newProvider(exp, o)
	otel.SetTracerProvider(tp)
	return shutdownFunc(tp, o.ShutdownTimeout), nil
}

func newProvider(exp trace.SpanExporter, o Options) *trace.TracerProvider {
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(o.ServiceName),
			semconv.ServiceVersion(o.ServiceVersion),
		),
	)
	return trace.NewTracerProvider(
		trace.WithBatcher(exp, trace.WithBatchTimeout(3*time.Second)),
		trace.WithResource(res),
	)
}

func shutdownFunc(tp *trace.TracerProvider, timeout time.Duration) Shutdown {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}
}

// Tracer returns the tracer used for per-source fetch spans.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}
