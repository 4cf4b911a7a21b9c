package otel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/merbs-org/clientauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type stubSource struct {
	mu       sync.Mutex
	counters map[clientauth.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (s *stubSource) MetricsSnapshot() clientauth.MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := clientauth.MetricsSnapshot{
		Counters:   make(map[clientauth.MetricID]uint64, len(s.counters)),
		Histograms: map[clientauth.MetricID][]uint64{},
	}
	for id, v := range s.counters {
		snap.Counters[id] = v
	}
	if s.latency != nil {
		snap.Histograms[clientauth.MetricLoginLatency] = append([]uint64(nil), s.latency...)
	}
	return snap
}

func (s *stubSource) DroppedEvents() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

func lookup(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m, ok := lookup(rm, name)
	if !ok {
		t.Fatalf("%s not collected", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("%s: want one int64 sum point, got %T", name, m.Data)
	}
	if !sum.IsMonotonic {
		t.Fatalf("%s is not monotonic", name)
	}
	return sum.DataPoints[0].Value
}

func bucketsOf(t *testing.T, rm metricdata.ResourceMetrics, name string) map[string]int64 {
	t.Helper()
	m, ok := lookup(rm, name)
	if !ok {
		t.Fatalf("%s not collected", name)
	}
	g, ok := m.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("%s: want int64 gauge, got %T", name, m.Data)
	}
	out := make(map[string]int64, len(g.DataPoints))
	for _, dp := range g.DataPoints {
		le, ok := dp.Attributes.Value(attribute.Key("le"))
		if !ok {
			t.Fatalf("%s point without le attribute", name)
		}
		out[le.AsString()] = dp.Value
	}
	return out
}

func TestExporterCollects(t *testing.T) {
	reader, provider := newReader()
	src := &stubSource{
		counters: map[clientauth.MetricID]uint64{
			clientauth.MetricLoginSuccess:     3,
			clientauth.MetricSessionExpired:   2,
			clientauth.MetricActivityRecorded: 40,
		},
		latency: []uint64{2, 0, 1, 0, 0, 0, 0, 1},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("clientauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	t.Cleanup(func() { _ = exp.Close() })

	rm := collect(t, reader)
	if got := sumOf(t, rm, "clientauth_login_success_total"); got != 3 {
		t.Fatalf("login success = %d, want 3", got)
	}
	if got := sumOf(t, rm, "clientauth_login_failure_total"); got != 0 {
		t.Fatalf("login failure = %d, want 0", got)
	}
	if got := sumOf(t, rm, "clientauth_events_dropped_total"); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	if got := sumOf(t, rm, "clientauth_login_latency_seconds_count"); got != 4 {
		t.Fatalf("latency count = %d, want 4", got)
	}

	buckets := bucketsOf(t, rm, "clientauth_login_latency_seconds_bucket")
	want := map[string]int64{
		"0.05": 2, "0.1": 2, "0.25": 3, "0.5": 3, "1": 3, "2.5": 3, "5": 3, "+Inf": 4,
	}
	if len(buckets) != len(want) {
		t.Fatalf("got %d bucket points, want %d", len(buckets), len(want))
	}
	for le, v := range want {
		if buckets[le] != v {
			t.Fatalf("bucket le=%s = %d, want %d", le, buckets[le], v)
		}
	}
}

func TestExporterFollowsSource(t *testing.T) {
	reader, provider := newReader()
	src := &stubSource{counters: map[clientauth.MetricID]uint64{clientauth.MetricLogout: 1}}

	exp, err := NewExporterFromSource(provider.Meter("clientauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	t.Cleanup(func() { _ = exp.Close() })

	if got := sumOf(t, collect(t, reader), "clientauth_logout_total"); got != 1 {
		t.Fatalf("logout = %d, want 1", got)
	}

	src.mu.Lock()
	src.counters[clientauth.MetricLogout] = 5
	src.mu.Unlock()

	if got := sumOf(t, collect(t, reader), "clientauth_logout_total"); got != 5 {
		t.Fatalf("logout = %d, want 5", got)
	}
}

func TestExporterCloseStopsReporting(t *testing.T) {
	reader, provider := newReader()
	src := &stubSource{counters: map[clientauth.MetricID]uint64{clientauth.MetricLoginSuccess: 1}}

	exp, err := NewExporterFromSource(provider.Meter("clientauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m, ok := lookup(collect(t, reader), "clientauth_login_success_total")
	if ok {
		if sum, isSum := m.Data.(metricdata.Sum[int64]); isSum && len(sum.DataPoints) > 0 {
			t.Fatalf("closed exporter still reported %d points", len(sum.DataPoints))
		}
	}

	var nilExp *Exporter
	if err := nilExp.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestExporterWithEngine(t *testing.T) {
	reader, provider := newReader()
	engine, err := clientauth.New().WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	exp, err := NewExporter(provider.Meter("clientauth-test"), engine)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	t.Cleanup(func() { _ = exp.Close() })

	if got := sumOf(t, collect(t, reader), "clientauth_session_created_total"); got != 0 {
		t.Fatalf("session created = %d, want 0", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("clientauth-test")

	if _, err := NewExporterFromSource(nil, &stubSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("nil meter: got %v", err)
	}
	if _, err := NewExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil source: got %v", err)
	}
	if _, err := NewExporter(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil engine: got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &stubSource{
		counters: map[clientauth.MetricID]uint64{clientauth.MetricLoginSuccess: 0},
		latency:  []uint64{1},
	}

	exp, err := NewExporterFromSource(provider.Meter("clientauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	t.Cleanup(func() { _ = exp.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[clientauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
