package commands

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/observability"
)

// buildObservability wires a structured logger and a diff.Metrics instrument
// set backed by a Prometheus registry, following the TracingHandler pattern
// from pkg/observability.NewTracingHandler and the exporter/MeterProvider
// pairing from internal/observability.PrometheusHandler — adapted here to
// actually share the MeterProvider the exporter reads from, so instruments
// created against it are the ones promhttp serves.
func buildObservability(serviceName string, debugTrace bool) (*slog.Logger, metric.Meter, http.Handler, error) {
	level := slog.LevelInfo
	if debugTrace {
		level = slog.LevelDebug
	}

	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(observability.NewTracingHandler(jsonHandler, serviceName, "", observability.ModeCLI))

	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := meterProvider.Meter(serviceName)

	return logger, meter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// buildDiffMetrics is a thin convenience wrapper over diff.NewMetrics for
// command code that only needs the instrument set, not the raw meter.
func buildDiffMetrics(meter metric.Meter) (*diff.Metrics, error) {
	return diff.NewMetrics(meter)
}
