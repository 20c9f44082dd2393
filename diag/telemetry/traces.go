package telemetry

import (
	"context"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/log"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// traceHandler owns the tracer provider that records spans for inbound
// proxy requests and the backend calls they fan out to. Spans are exported
// over OTLP in batches.
type traceHandler struct {
	provider *trace.TracerProvider
	log      log.Logger
}

// newTraceHandler returns nil when OTLP export is disabled or the exporter
// cannot be built; proxy handlers then run without span recording.
func newTraceHandler(ctx context.Context, resource *resource.Resource, conf *config.TraceConfig, log log.Logger) *traceHandler {
	if !conf.Otlp.Enabled {
		return nil
	}
	logger := log.WithPrefix("traces")
	providerOpts := []trace.TracerProviderOption{trace.WithResource(resource)}
	switch conf.Otlp.Protocol {
	case "grpc":
		var opts []otlptracegrpc.Option
		if conf.Otlp.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(conf.Otlp.Endpoint))
		}
		opts = append(opts, otlptracegrpc.WithInsecure())
		r, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			logger.Errorf("failed to configure OTLP gRPC exporter: %s", err)
			return nil
		}
		providerOpts = append(providerOpts, trace.WithBatcher(r))
	case "http", "https":
		var opts []otlptracehttp.Option
		if conf.Otlp.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(conf.Otlp.Endpoint))
		}
		if conf.Otlp.Protocol == "http" {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		r, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			logger.Errorf("failed to configure OTLP HTTP exporter: %s", err)
			return nil
		}
		providerOpts = append(providerOpts, trace.WithBatcher(r))
	}

	var ep string
	if conf.Otlp.Endpoint != "" {
		ep = " to " + conf.Otlp.Endpoint
	}
	logger.Reportf("otlp exporter enabled over %s%s", conf.Otlp.Protocol, ep)
	return newTraceHandlerWithOpts(providerOpts, logger)
}

func newTraceHandlerWithOpts(opts []trace.TracerProviderOption, log log.Logger) *traceHandler {
	provider := trace.NewTracerProvider(opts...)
	return &traceHandler{
		provider: provider,
		log:      log,
	}
}

func (t *traceHandler) Shutdown() {
	t.log.Reportf("flushing pending spans")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.provider.Shutdown(ctx); err != nil {
		t.log.Errorf("failed to flush spans: %s", err)
	}
	t.log.Reportf("tracer provider stopped")
}
