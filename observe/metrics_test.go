package observe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordFrame(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFrame(ctx, 200*time.Microsecond, -20)
	m.RecordFrame(ctx, 300*time.Microsecond, -12.5)

	rm := collect(t, reader)

	frames := findMetric(rm, "sonido_pulse.frames.processed")
	require.NotNil(t, frames)
	sum, ok := frames.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	duration := findMetric(rm, "sonido_pulse.frame.duration")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)

	level := findMetric(rm, "sonido_pulse.input.level")
	require.NotNil(t, level)
	gauge, ok := level.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, -12.5, gauge.DataPoints[0].Value)
}

func TestRecordSkip_ByReason(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSkip(ctx, ReasonIneligible)
	m.RecordSkip(ctx, ReasonIneligible)
	m.RecordSkip(ctx, ReasonNoSignal)

	met := findMetric(collect(t, reader), "sonido_pulse.frames.skipped")
	require.NotNil(t, met)
	sum := met.Data.(metricdata.Sum[int64])

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		reason, ok := dp.Attributes.Value(attribute.Key("reason"))
		require.True(t, ok)
		got[reason.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{ReasonIneligible: 2, ReasonNoSignal: 1}, got)
}

func TestRecordBeat(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBeat(ctx, 120)
	m.RecordBeat(ctx, 122.4)

	rm := collect(t, reader)

	beats := findMetric(rm, "sonido_pulse.beats")
	require.NotNil(t, beats)
	assert.Equal(t, int64(2), beats.Data.(metricdata.Sum[int64]).DataPoints[0].Value)

	tempo := findMetric(rm, "sonido_pulse.tempo")
	require.NotNil(t, tempo)
	gauge, ok := tempo.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 122.4, gauge.DataPoints[0].Value)
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	assert.NotPanics(t, func() {
		ctx := context.Background()
		m.RecordFrame(ctx, time.Millisecond, -120)
		m.RecordSkip(ctx, ReasonOffBeat)
		m.RecordBeat(ctx, 120)
		m.SinkErrors.Add(ctx, 1)
	})
}

func TestProvider_ServesPrometheus(t *testing.T) {
	p, err := InitProvider(ProviderConfig{ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider)
	require.NoError(t, err)
	m.RecordBeat(context.Background(), 120)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sonido_pulse_beats")
	assert.Contains(t, string(body), "sonido_pulse_tempo")
	assert.Contains(t, string(body), `service_name="sonido-pulse"`)
}

func TestServer_StartStop(t *testing.T) {
	p, err := InitProvider(ProviderConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	srv, err := NewServer("127.0.0.1:0", p.Handler())
	require.NoError(t, err)
	srv.Start()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
