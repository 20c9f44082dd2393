package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	otelhost "go.opentelemetry.io/contrib/instrumentation/host"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type metricsHandler struct {
	cacheLookups     otelmetric.Int64Counter
	plateValidations otelmetric.Int64Counter
	upstreamFailures otelmetric.Int64Counter
	provider         *metric.MeterProvider
	registry         *prometheus.Registry
	log              log.Logger

	ctx       context.Context
	ctxCancel func()
}

const (
	meterName = "github.com/mottu/patio-proxy"
)

func newMetricsHandler(ctx context.Context, resource *resource.Resource, conf *config.MetricsConfig, log log.Logger) *metricsHandler {
	if !conf.Prometheus.Enabled && !conf.Otlp.Enabled {
		return nil
	}
	logger := log.WithPrefix("metrics")
	providerOpts := []metric.Option{metric.WithResource(resource)}
	var registry *prometheus.Registry
	if conf.Prometheus.Enabled {
		registry = prometheus.NewRegistry()
		exporter, err := promexporter.New(
			promexporter.WithRegisterer(registry),
			promexporter.WithNamespace("mottu"),
			promexporter.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes))
		if err != nil {
			logger.Errorf("failed to configure Prometheus exporter: %s", err)
			return nil
		}
		providerOpts = append(providerOpts, metric.WithReader(exporter))
		logger.Reportf("prometheus exporter enabled on /metrics")
	}
	if conf.Otlp.Enabled {
		switch conf.Otlp.Protocol {
		case "grpc":
			var opts []otlpmetricgrpc.Option
			if conf.Otlp.Endpoint != "" {
				opts = append(opts, otlpmetricgrpc.WithEndpoint(conf.Otlp.Endpoint))
			}
			opts = append(opts, otlpmetricgrpc.WithInsecure())
			r, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				logger.Errorf("failed to configure OTLP gRPC exporter: %s", err)
				return nil
			}
			providerOpts = append(providerOpts, metric.WithReader(metric.NewPeriodicReader(r)))
		case "http", "https":
			var opts []otlpmetrichttp.Option
			if conf.Otlp.Endpoint != "" {
				opts = append(opts, otlpmetrichttp.WithEndpoint(conf.Otlp.Endpoint))
			}
			if conf.Otlp.Protocol == "http" {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
			r, err := otlpmetrichttp.New(ctx, opts...)
			if err != nil {
				logger.Errorf("failed to configure OTLP HTTP exporter: %s", err)
				return nil
			}
			providerOpts = append(providerOpts, metric.WithReader(metric.NewPeriodicReader(r)))
		}
		var ep string
		if conf.Otlp.Endpoint != "" {
			ep = " to " + conf.Otlp.Endpoint
		}
		logger.Reportf("otlp exporter enabled over %s%s", conf.Otlp.Protocol, ep)
	}
	h := newMetricsHandlerWithOpts(providerOpts, logger)
	if h != nil {
		h.registry = registry
	}
	return h
}

func newMetricsHandlerWithOpts(opts []metric.Option, logger log.Logger) *metricsHandler {
	provider := metric.NewMeterProvider(opts...)
	meter := provider.Meter(meterName)

	err := otelruntime.Start(otelruntime.WithMeterProvider(provider))
	if err != nil {
		logger.Errorf("failed to start runtime metrics: %s", err)
	}
	err = otelhost.Start(otelhost.WithMeterProvider(provider))
	if err != nil {
		logger.Errorf("failed to start host metrics: %s", err)
	}

	cacheLookups, err := meter.Int64Counter("cache.lookups.total",
		otelmetric.WithDescription("Total number of response cache lookups."))
	if err != nil {
		logger.Errorf("failed to configure cache lookups counter: %s", err)
		return nil
	}

	plateValidations, err := meter.Int64Counter("plate.validations.total",
		otelmetric.WithDescription("Total number of license plate validations."))
	if err != nil {
		logger.Errorf("failed to configure plate validations counter: %s", err)
		return nil
	}

	upstreamFailures, err := meter.Int64Counter("upstream.failures.total",
		otelmetric.WithDescription("Total number of failed backend calls relayed to clients."))
	if err != nil {
		logger.Errorf("failed to configure upstream failures counter: %s", err)
		return nil
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &metricsHandler{
		cacheLookups:     cacheLookups,
		plateValidations: plateValidations,
		upstreamFailures: upstreamFailures,
		provider:         provider,
		log:              logger,
		ctx:              ctx,
		ctxCancel:        ctxCancel,
	}
}

func (m *metricsHandler) addCacheLookup(category string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(m.ctx, 1, otelmetric.WithAttributes(
		attribute.Key("category").String(category),
		attribute.Key("result").String(result),
	))
}

func (m *metricsHandler) addPlateValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.plateValidations.Add(m.ctx, 1, otelmetric.WithAttributes(
		attribute.Key("result").String(result),
	))
}

func (m *metricsHandler) addUpstreamFailure(route string, status int) {
	code := "transport"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.upstreamFailures.Add(m.ctx, 1, otelmetric.WithAttributes(
		attribute.Key("route").String(route),
		attribute.Key("status").String(code),
	))
}

func (m *metricsHandler) shutdown() {
	m.log.Reportf("initiating server shutdown")
	m.ctxCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.provider.Shutdown(ctx)
	if err != nil {
		m.log.Errorf("shutdown error: %s", err)
	}
	m.log.Reportf("server shutdown complete")
}
