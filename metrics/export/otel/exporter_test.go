package otel

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	authcore "github.com/calyptra/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (s *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return s.snapshot }
func (s *fakeSource) AuditDropped() uint64                      { return s.dropped }

func newFakeSource() *fakeSource {
	return &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricAuthSuccess: 9,
				authcore.MetricOTPIssued:   2,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricAuthLatency: {1, 1, 0, 0, 0, 0, 0, 2},
			},
		},
		dropped: 3,
	}
}

func collect(t *testing.T, source *fakeSource) map[string]metricdata.Metrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewExporterFromSource(provider.Meter("authcore-test"), source)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	byName := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func sumValue(t *testing.T, metrics map[string]metricdata.Metrics, name string) int64 {
	t.Helper()
	m, ok := metrics[name]
	if !ok {
		t.Fatalf("metric %s not observed", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("metric %s has %d points", name, len(sum.DataPoints))
	}
	return sum.DataPoints[0].Value
}

func gaugeValue(t *testing.T, metrics map[string]metricdata.Metrics, name string) int64 {
	t.Helper()
	m, ok := metrics[name]
	if !ok {
		t.Fatalf("metric %s not observed", name)
	}
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Gauge[int64]", name, m.Data)
	}
	if len(gauge.DataPoints) != 1 {
		t.Fatalf("metric %s has %d points", name, len(gauge.DataPoints))
	}
	return gauge.DataPoints[0].Value
}

func TestExporterObservesCounters(t *testing.T) {
	metrics := collect(t, newFakeSource())

	if got := sumValue(t, metrics, "authcore_auth_success_total"); got != 9 {
		t.Fatalf("auth success = %d, want 9", got)
	}
	if got := sumValue(t, metrics, "authcore_otp_issued_total"); got != 2 {
		t.Fatalf("otp issued = %d, want 2", got)
	}
	if got := sumValue(t, metrics, "authcore_login_success_total"); got != 0 {
		t.Fatalf("login success = %d, want 0", got)
	}
	if got := sumValue(t, metrics, "authcore_audit_dropped_total"); got != 3 {
		t.Fatalf("audit dropped = %d, want 3", got)
	}
}

func TestExporterObservesHistogramBuckets(t *testing.T) {
	metrics := collect(t, newFakeSource())

	// Cumulative: 1, 2, 2, 2, 2, 2, 2, 4.
	wants := map[string]int64{
		"authcore_auth_latency_seconds_bucket_le_0_005": 1,
		"authcore_auth_latency_seconds_bucket_le_0_01":  2,
		"authcore_auth_latency_seconds_bucket_le_0_5":   2,
		"authcore_auth_latency_seconds_bucket_le_inf":   4,
		"authcore_auth_latency_seconds_count":           4,
	}
	for name, want := range wants {
		if got := gaugeValue(t, metrics, name); got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestExporterNilArguments(t *testing.T) {
	if _, err := NewExporterFromSource(nil, newFakeSource()); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}

	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	if _, err := NewExporterFromSource(provider.Meter("x"), nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestCloseUnregisters(t *testing.T) {
	source := newFakeSource()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	exporter, err := NewExporterFromSource(provider.Meter("authcore-test"), source)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				t.Fatalf("metric %s still observed after Close", m.Name)
			}
		}
	}
}
