// Package metrics wires the OpenTelemetry meter provider and the Prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

func getReaders(ctx context.Context, cfg Config) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	for _, rc := range cfg.Readers {
		switch rc.Exporter {
		case PrometheusExporter:
			promExporter, err := prometheus.New()
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}

			readers = append(readers, promExporter)
		case OTLPExporter:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(rc.Endpoint),
				otlpmetricgrpc.WithHeaders(rc.Headers),
			}

			if rc.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}

			exp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}

			readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.ExportInterval)))
		default:
			return nil, fmt.Errorf("unknown metric exporter %q", rc.Exporter)
		}
	}

	return readers, nil
}

// NewMetricProvider builds a meter provider with the configured readers and
// installs it as the global provider. Without readers, instruments are still
// created but nothing is exported.
func NewMetricProvider(ctx context.Context, options ...OptionFn) (MetricProvider, error) {
	cfg := buildConfig(options)

	readers, err := getReaders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	metricsOps := make([]sdkmetric.Option, 0, len(readers)+1)
	for _, reader := range readers {
		metricsOps = append(metricsOps, sdkmetric.WithReader(reader))
	}

	metricsOps = append(metricsOps, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	meterProvider := sdkmetric.NewMeterProvider(metricsOps...)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// ServePrometheus exposes /metrics on port until ctx is cancelled.
func ServePrometheus(ctx context.Context, port int, log logger.LoggerInterface) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving prometheus metrics", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
