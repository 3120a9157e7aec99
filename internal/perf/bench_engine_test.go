package perf

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vialtrack/vialtrack/internal/inventory"
	"github.com/vialtrack/vialtrack/internal/inventory/fixture"
	jobmetrics "github.com/vialtrack/vialtrack/internal/jobs"
)

func BenchmarkEngineCompute(b *testing.B) {
	engine := inventory.NewEngine(inventory.EngineOptions{Catalog: inventory.DefaultCatalog()})
	in := fixture.Generate(fixture.Options{Vials: 5000, Seed: 1, TreatedShare: 0.6})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Compute(in)
	}
}

func BenchmarkEngineComputeSorted(b *testing.B) {
	engine := inventory.NewEngine(inventory.EngineOptions{Catalog: inventory.DefaultCatalog(), SortByDate: true})
	in := fixture.Generate(fixture.Options{Vials: 5000, Seed: 1, TreatedShare: 0.6})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Compute(in)
	}
}

type staticSource struct {
	in inventory.Input
}

func (s staticSource) ShipmentRows(context.Context) ([]inventory.Row, error) {
	return s.in.ShipmentRows, nil
}

func (s staticSource) TreatmentRows(context.Context) ([]inventory.Row, error) {
	return s.in.TreatmentRows, nil
}

func (s staticSource) ReportedInventory(context.Context) (inventory.ReportedInventory, error) {
	return s.in.Reported, nil
}

func TestFullRecomputeLatencyTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("latency check skipped in short mode")
	}
	in := fixture.Generate(fixture.Options{Vials: 2000, Seed: 3, TreatedShare: 0.5})
	svc := inventory.NewService(
		inventory.NewEngine(inventory.EngineOptions{Catalog: inventory.DefaultCatalog()}),
		staticSource{in: in},
		inventory.ServiceConfig{},
	)

	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		start := time.Now()
		if _, err := svc.Snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 2*time.Second {
		t.Fatalf("full recompute latency regression: p95=%s", p95)
	}
}

func TestReconcileJobDurationRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	for i := 0; i < 5; i++ {
		tracker := metrics.Track("inventory:reconcile")
		time.Sleep(5 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending tracker: %v", err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var histogram *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "vialtrack_job_duration_seconds" && len(mf.GetMetric()) > 0 {
			histogram = mf.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil {
		t.Fatal("expected job duration histogram")
	}
	if histogram.GetSampleCount() != 5 {
		t.Fatalf("expected 5 samples, got %d", histogram.GetSampleCount())
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
