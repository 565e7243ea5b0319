package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry providers for one process. All methods
// are safe on a nil receiver so tests can pass nil.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	panelLoads     otelmetric.Int64Counter
	panelDuration  otelmetric.Float64Histogram
}

// Logger is the subset of logger.Logger needed at startup.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

func New(serviceName string, log Logger) *Observability {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter, metrics disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return &Observability{tracerProvider: tp}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	panelLoads, _ := meter.Int64Counter(
		"dashboard.panel.loads",
		otelmetric.WithDescription("Dashboard panel loads by panel and outcome"),
	)

	panelDuration, _ := meter.Float64Histogram(
		"dashboard.panel.duration",
		otelmetric.WithDescription("Time from panel request to committed state"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          meter,
		panelLoads:     panelLoads,
		panelDuration:  panelDuration,
	}
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func (o *Observability) RecordPanelLoad(ctx context.Context, panel, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("panel", panel),
		attribute.String("outcome", outcome),
	)
	if o.panelLoads != nil {
		o.panelLoads.Add(ctx, 1, attrs)
	}
	if o.panelDuration != nil {
		o.panelDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
