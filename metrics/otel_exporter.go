package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter             metric.Meter
	deliveriesCounter metric.Int64ObservableCounter
	attemptsCounter   metric.Int64ObservableCounter
	failureCounter    metric.Int64ObservableCounter
	queueDepthGauge   metric.Int64ObservableGauge
	activeGauge       metric.Int64ObservableGauge
	latencyGauge      metric.Float64ObservableGauge
	attemptLatency    metric.Float64Histogram
	deliveryDuration  metric.Float64Histogram
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	return newOTelExporter(collector, exporter)
}

// newOTelExporter builds the exporter on any reader, so tests can use a manual one
func newOTelExporter(collector Collector, reader sdkmetric.Reader) (*OTelExporter, error) {
	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"chainhook",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Deliveries counter by terminal outcome
	oe.deliveriesCounter, err = oe.meter.Int64ObservableCounter(
		"delivery.count",
		metric.WithDescription("Number of deliveries by lifecycle stage"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeDeliveries),
	)
	if err != nil {
		return fmt.Errorf("creating deliveries counter: %w", err)
	}

	// Attempts counter by outcome
	oe.attemptsCounter, err = oe.meter.Int64ObservableCounter(
		"delivery.attempts",
		metric.WithDescription("Number of HTTP delivery attempts by outcome"),
		metric.WithUnit("{attempts}"),
		metric.WithInt64Callback(oe.observeAttempts),
	)
	if err != nil {
		return fmt.Errorf("creating attempts counter: %w", err)
	}

	// Failure counter by class
	oe.failureCounter, err = oe.meter.Int64ObservableCounter(
		"delivery.failures",
		metric.WithDescription("Number of failed attempts by failure class"),
		metric.WithUnit("{attempts}"),
		metric.WithInt64Callback(oe.observeFailures),
	)
	if err != nil {
		return fmt.Errorf("creating failure counter: %w", err)
	}

	// Queue depth gauge
	oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"delivery.queue.depth",
		metric.WithDescription("Number of deliveries waiting for a worker"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeQueueDepth),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	// Active deliveries gauge
	oe.activeGauge, err = oe.meter.Int64ObservableGauge(
		"delivery.active",
		metric.WithDescription("Number of deliveries currently in flight"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeActive),
	)
	if err != nil {
		return fmt.Errorf("creating active deliveries gauge: %w", err)
	}

	// Latency gauge (per-attempt and end-to-end averages)
	oe.latencyGauge, err = oe.meter.Float64ObservableGauge(
		"delivery.latency.avg",
		metric.WithDescription("Average delivery latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithFloat64Callback(oe.observeLatency),
	)
	if err != nil {
		return fmt.Errorf("creating latency gauge: %w", err)
	}

	// Per-attempt latency distribution
	oe.attemptLatency, err = oe.meter.Float64Histogram(
		"delivery.attempt.latency",
		metric.WithDescription("Distribution of per-attempt HTTP latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return fmt.Errorf("creating attempt latency histogram: %w", err)
	}

	// End-to-end delivery duration distribution (includes backoff waits)
	oe.deliveryDuration, err = oe.meter.Float64Histogram(
		"delivery.duration",
		metric.WithDescription("Distribution of end-to-end delivery duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000),
	)
	if err != nil {
		return fmt.Errorf("creating delivery duration histogram: %w", err)
	}

	return nil
}

// RecordAttemptLatency feeds one attempt's latency into the histogram
func (oe *OTelExporter) RecordAttemptLatency(d time.Duration) {
	oe.attemptLatency.Record(context.Background(), float64(d)/float64(time.Millisecond))
}

// RecordDeliveryDuration feeds one delivery's end-to-end duration into the histogram
func (oe *OTelExporter) RecordDeliveryDuration(d time.Duration) {
	oe.deliveryDuration.Record(context.Background(), float64(d)/float64(time.Millisecond))
}

// observeDeliveries is a callback that reports delivery lifecycle counts
func (oe *OTelExporter) observeDeliveries(ctx context.Context, observer metric.Int64Observer) error {
	snap, err := oe.collector.Collect(ctx)
	if err != nil {
		return err
	}

	observer.Observe(snap.DeliveriesStarted, metric.WithAttributes(
		attribute.String("stage", "started"),
	))
	observer.Observe(snap.DeliveriesCompleted, metric.WithAttributes(
		attribute.String("stage", "completed"),
	))
	observer.Observe(snap.DeliveriesSucceeded, metric.WithAttributes(
		attribute.String("stage", "succeeded"),
	))
	observer.Observe(snap.DeliveriesFailed, metric.WithAttributes(
		attribute.String("stage", "failed"),
	))

	return nil
}

// observeAttempts is a callback that reports attempt counts by outcome
func (oe *OTelExporter) observeAttempts(ctx context.Context, observer metric.Int64Observer) error {
	snap, err := oe.collector.Collect(ctx)
	if err != nil {
		return err
	}

	observer.Observe(snap.AttemptsSucceeded, metric.WithAttributes(
		attribute.String("outcome", "success"),
	))
	observer.Observe(snap.AttemptsFailed, metric.WithAttributes(
		attribute.String("outcome", "failure"),
	))

	return nil
}

// observeFailures is a callback that reports failed attempts by class
func (oe *OTelExporter) observeFailures(ctx context.Context, observer metric.Int64Observer) error {
	snap, err := oe.collector.Collect(ctx)
	if err != nil {
		return err
	}

	for class, count := range snap.FailuresByClass {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("failure.class", class),
		))
	}

	return nil
}

// observeQueueDepth is a callback that reports the work queue depth
func (oe *OTelExporter) observeQueueDepth(ctx context.Context, observer metric.Int64Observer) error {
	snap, err := oe.collector.Collect(ctx)
	if err != nil {
		return err
	}

	observer.Observe(snap.QueueDepth)
	return nil
}

// observeActive is a callback that reports in-flight delivery count
func (oe *OTelExporter) observeActive(ctx context.Context, observer metric.Int64Observer) error {
	snap, err := oe.collector.Collect(ctx)
	if err != nil {
		return err
	}

	observer.Observe(snap.ActiveDeliveries)
	return nil
}

// observeLatency is a callback that reports average latencies
func (oe *OTelExporter) observeLatency(ctx context.Context, observer metric.Float64Observer) error {
	snap, err := oe.collector.Collect(ctx)
	if err != nil {
		return err
	}

	observer.Observe(float64(snap.AverageAttemptLatency.Milliseconds()), metric.WithAttributes(
		attribute.String("scope", "attempt"),
	))
	observer.Observe(float64(snap.AverageDeliveryDuration.Milliseconds()), metric.WithAttributes(
		attribute.String("scope", "delivery"),
	))

	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
