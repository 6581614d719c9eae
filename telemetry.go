package cqrs

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/io-da/cqrs"

// Metric instrument names.
const (
	MetricDispatchCount    = "cqrs.dispatch.count"
	MetricDispatchDuration = "cqrs.dispatch.duration"
)

// Span and metric attribute keys.
const (
	attrCategory   = "cqrs.category"
	attrContract   = "cqrs.contract"
	attrIdentifier = "cqrs.identifier"
	attrDispatchID = "cqrs.dispatch_id"
	attrScope      = "cqrs.scope"
	attrOutcome    = "cqrs.outcome"
	attrKind       = "cqrs.failure_kind"
)

type telemetry struct {
	tracer   trace.Tracer
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

func newTelemetry(cfg *Config) *telemetry {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	count, err := meter.Int64Counter(MetricDispatchCount,
		metric.WithDescription("Number of dispatched commands and queries."),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		otel.Handle(err)
		count, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter(MetricDispatchCount)
	}
	duration, err := meter.Float64Histogram(MetricDispatchDuration,
		metric.WithDescription("Duration of command and query dispatches."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		otel.Handle(err)
		duration, _ = noop.NewMeterProvider().Meter(instrumentationName).Float64Histogram(MetricDispatchDuration)
	}

	return &telemetry{
		tracer:   tp.Tracer(instrumentationName),
		count:    count,
		duration: duration,
	}
}
