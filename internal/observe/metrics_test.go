package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v, want nil", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v, want nil", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation = %T, want Sum[int64]", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordRuleApplied(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRuleApplied(ctx, "Replace", 3, 2)
	m.RecordRuleApplied(ctx, "Remove", 0, 4)
	m.RecordRuleApplied(ctx, "Add", 1, 0)

	got := collect(t, reader)
	tests := []struct {
		name string
		want int64
	}{
		{"stashkeeper.rules.applied", 3},
		{"stashkeeper.items.added", 4},
		{"stashkeeper.items.removed", 6},
	}
	for _, tt := range tests {
		data, ok := got[tt.name]
		if !ok {
			t.Errorf("metric %s not recorded", tt.name)
			continue
		}
		if v := sumOf(t, data); v != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, v, tt.want)
		}
	}
}

func TestRecordContainerHandled(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordContainerHandled(ctx, "initialize", 0.0002)
	m.RecordContainerHandled(ctx, "reset", 0.0004)
	m.RecordRuleRegistered(ctx, "Add")

	got := collect(t, reader)
	if v := sumOf(t, got["stashkeeper.containers.handled"]); v != 2 {
		t.Errorf("containers.handled = %d, want 2", v)
	}
	if v := sumOf(t, got["stashkeeper.rules.registered"]); v != 1 {
		t.Errorf("rules.registered = %d, want 1", v)
	}

	hist, ok := got["stashkeeper.container.duration"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("container.duration = %T, want Histogram[float64]", got["stashkeeper.container.duration"])
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("duration count = %d, want 2", count)
	}
}
