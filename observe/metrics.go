// Package observe exposes beat tracker metrics through OpenTelemetry with a
// Prometheus scrape endpoint. Tests should build [Metrics] from their own
// [metric.MeterProvider] via [NewMetrics].
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/RyanBlaney/sonido-pulse"

// Skip reasons recorded on FramesSkipped
const (
	ReasonNoSignal   = "no_signal"
	ReasonIneligible = "ineligible"
	ReasonOffBeat    = "off_beat"
	ReasonDegenerate = "degenerate_interval"
)

// Metrics holds the instruments updated by the detection loop.
type Metrics struct {
	// FramesProcessed counts every frame read from the source
	FramesProcessed metric.Int64Counter

	// FramesSkipped counts frames that produced no beat, by attribute "reason"
	FramesSkipped metric.Int64Counter

	// Beats counts emitted beats
	Beats metric.Int64Counter

	// SinkErrors counts failed deliveries
	SinkErrors metric.Int64Counter

	// TempoBPM is the smoothed tempo after the latest beat
	TempoBPM metric.Float64Gauge

	// FrameDuration tracks analysis time per frame
	FrameDuration metric.Float64Histogram

	// InputLevel is the RMS level of the latest frame in dBFS
	InputLevel metric.Float64Gauge
}

// frameBuckets are in seconds; a 1024-sample frame at 44.1 kHz lasts ~23 ms.
var frameBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("sonido_pulse.frames.processed",
		metric.WithDescription("Audio frames read from the source."),
	); err != nil {
		return nil, err
	}
	if met.FramesSkipped, err = m.Int64Counter("sonido_pulse.frames.skipped",
		metric.WithDescription("Frames that produced no beat, by reason."),
	); err != nil {
		return nil, err
	}
	if met.Beats, err = m.Int64Counter("sonido_pulse.beats",
		metric.WithDescription("Beats emitted to the sink."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("sonido_pulse.sink.errors",
		metric.WithDescription("Beat messages that could not be delivered."),
	); err != nil {
		return nil, err
	}
	if met.TempoBPM, err = m.Float64Gauge("sonido_pulse.tempo",
		metric.WithDescription("Smoothed tempo after the latest beat."),
		metric.WithUnit("{beat}/min"),
	); err != nil {
		return nil, err
	}
	if met.FrameDuration, err = m.Float64Histogram("sonido_pulse.frame.duration",
		metric.WithDescription("Analysis time per frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}

	if met.InputLevel, err = m.Float64Gauge("sonido_pulse.input.level",
		metric.WithDescription("RMS level of the latest audio frame."),
		metric.WithUnit("dB"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return met
}

// RecordFrame counts a processed frame with its analysis time and level.
func (m *Metrics) RecordFrame(ctx context.Context, elapsed time.Duration, levelDB float64) {
	m.FramesProcessed.Add(ctx, 1)
	m.FrameDuration.Record(ctx, elapsed.Seconds())
	m.InputLevel.Record(ctx, levelDB)
}

// RecordSkip counts a frame that did not yield a beat.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	m.FramesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBeat counts a beat and publishes the new tempo.
func (m *Metrics) RecordBeat(ctx context.Context, bpm float64) {
	m.Beats.Add(ctx, 1)
	m.TempoBPM.Record(ctx, bpm)
}
