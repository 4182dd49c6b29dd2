package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jerry88277/meetchi"

// Metrics holds every OpenTelemetry instrument the gateway records
// against. A package-level Default is provided for convenience; tests
// should build their own via NewMetrics to avoid cross-test pollution,
// mirroring MrWong99-glyphoxa/internal/observe's Metrics/DefaultMetrics
// split.
type Metrics struct {
	SessionsOpened metric.Int64Counter
	SessionsClosed metric.Int64Counter
	ActiveSessions metric.Int64UpDownCounter

	VADFlushDuration    metric.Float64Histogram
	ASRPartialDuration  metric.Float64Histogram
	ASRFinalDuration    metric.Float64Histogram
	PolishDuration      metric.Float64Histogram
	AlignDuration       metric.Float64Histogram

	ASRTimeouts    metric.Int64Counter
	PolishFailures metric.Int64Counter
}

// NewMetrics builds a Metrics bound to the given provider (pass
// otel.GetMeterProvider() in production, a fresh SDK provider in tests).
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	var m Metrics
	var err error

	if m.SessionsOpened, err = meter.Int64Counter("meetchi.sessions.opened"); err != nil {
		return nil, err
	}
	if m.SessionsClosed, err = meter.Int64Counter("meetchi.sessions.closed"); err != nil {
		return nil, err
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter("meetchi.sessions.active"); err != nil {
		return nil, err
	}
	if m.VADFlushDuration, err = meter.Float64Histogram("meetchi.vad.flush.duration"); err != nil {
		return nil, err
	}
	if m.ASRPartialDuration, err = meter.Float64Histogram("meetchi.asr.partial.duration"); err != nil {
		return nil, err
	}
	if m.ASRFinalDuration, err = meter.Float64Histogram("meetchi.asr.final.duration"); err != nil {
		return nil, err
	}
	if m.PolishDuration, err = meter.Float64Histogram("meetchi.polish.duration"); err != nil {
		return nil, err
	}
	if m.AlignDuration, err = meter.Float64Histogram("meetchi.align.duration"); err != nil {
		return nil, err
	}
	if m.ASRTimeouts, err = meter.Int64Counter("meetchi.asr.timeouts"); err != nil {
		return nil, err
	}
	if m.PolishFailures, err = meter.Int64Counter("meetchi.polish.failures"); err != nil {
		return nil, err
	}

	return &m, nil
}

// Default is a lazily-safe Metrics instance bound to the global
// MeterProvider, usable before InitProvider has been called (the OTel API
// package returns no-op instruments from the default provider).
var Default, _ = NewMetrics(otel.GetMeterProvider())
