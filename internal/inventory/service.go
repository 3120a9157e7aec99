package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source supplies the raw logs of the current dataset. Rows must be returned
// in recorded order.
type Source interface {
	ShipmentRows(ctx context.Context) ([]Row, error)
	TreatmentRows(ctx context.Context) ([]Row, error)
	ReportedInventory(ctx context.Context) (ReportedInventory, error)
}

// DatasetReader is implemented by sources that can read all three tables
// from one consistent view. Service prefers it over three separate reads.
type DatasetReader interface {
	Dataset(ctx context.Context) (Input, error)
}

// DatasetWriter replaces the stored dataset with a freshly uploaded one.
type DatasetWriter interface {
	ReplaceDataset(ctx context.Context, in Input) error
}

// MetricsRecorder observes completed computations.
type MetricsRecorder interface {
	ObserveSnapshot(snap Snapshot, took time.Duration)
}

// ReconcileScheduler queues a background reconcile run.
type ReconcileScheduler interface {
	ScheduleReconcile(ctx context.Context, reason string) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Logger    *slog.Logger
	Cache     *Cache
	Writer    DatasetWriter
	Metrics   MetricsRecorder
	Scheduler ReconcileScheduler
}

// Service serves snapshots of the current dataset to HTTP handlers and jobs.
type Service struct {
	engine    *Engine
	source    Source
	cache     *Cache
	writer    DatasetWriter
	logger    *slog.Logger
	metrics   MetricsRecorder
	scheduler ReconcileScheduler
	builds    singleflight.Group
	now       func() time.Time
}

// NewService builds Service.
func NewService(engine *Engine, source Source, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:    engine,
		source:    source,
		cache:     cfg.Cache,
		writer:    cfg.Writer,
		logger:    logger,
		metrics:   cfg.Metrics,
		scheduler: cfg.Scheduler,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the snapshot of the current dataset, computing it when the
// cache holds none. Concurrent callers share one computation.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	key, err := s.cache.BuildKey(ctx, "inventory", "snapshot")
	if err != nil {
		s.logger.Warn("inventory cache key", slog.Any("error", err))
		return s.rebuild(ctx)
	}
	ch := s.builds.DoChan(key, func() (interface{}, error) {
		return s.cache.FetchSnapshot(ctx, key, s.rebuild)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// Invalidate drops every cached snapshot.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Refresh invalidates the cache and computes a new snapshot.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if err := s.Invalidate(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("inventory: invalidate cache: %w", err)
	}
	return s.Snapshot(ctx)
}

// Ingest stores an uploaded dataset, invalidates the cache and returns its snapshot.
func (s *Service) Ingest(ctx context.Context, in Input) (Snapshot, error) {
	if s.writer == nil {
		return s.Preview(in), nil
	}
	if err := s.writer.ReplaceDataset(ctx, in); err != nil {
		return Snapshot{}, fmt.Errorf("inventory: store dataset: %w", err)
	}
	snap, err := s.Refresh(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	// A queue outage does not fail an upload that is already stored.
	if s.scheduler != nil {
		if err := s.scheduler.ScheduleReconcile(ctx, "dataset upload "+snap.ID); err != nil {
			s.logger.Warn("schedule reconcile after upload", slog.Any("error", err))
		}
	}
	return snap, nil
}

// Preview computes a snapshot for in without touching storage or cache.
func (s *Service) Preview(in Input) Snapshot {
	start := time.Now()
	snap := s.stamp(s.engine.Compute(in))
	s.observe(snap, time.Since(start))
	return snap
}

// UnitJourney returns the journey of unitID in the current snapshot.
func (s *Service) UnitJourney(ctx context.Context, unitID string) (UnitJourney, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return UnitJourney{}, err
	}
	return snap.UnitJourney(unitID)
}

// InventoryForProduct returns the location views of product.
func (s *Service) InventoryForProduct(ctx context.Context, product string) ([]LocationView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.InventoryForProduct(product)
}

// DiscrepancyForProduct returns the depot discrepancies of product.
func (s *Service) DiscrepancyForProduct(ctx context.Context, product string) ([]DiscrepancyRecord, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.DiscrepancyForProduct(product)
}

// LocationDetail returns the drill-down view of location.
func (s *Service) LocationDetail(ctx context.Context, location string) (LocationDetail, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return LocationDetail{}, err
	}
	return snap.LocationDetail(location)
}

func (s *Service) rebuild(ctx context.Context) (Snapshot, error) {
	if s.source == nil {
		return Snapshot{}, fmt.Errorf("%w: no source configured", ErrSourceUnavailable)
	}
	start := time.Now()
	in, err := s.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := s.stamp(s.engine.Compute(in))
	took := time.Since(start)
	s.observe(snap, took)
	s.logger.Info("inventory snapshot computed",
		slog.String("snapshot_id", snap.ID),
		slog.Int("shipments", snap.Summary.TotalShipments),
		slog.Int("treatments", snap.Summary.TotalTreatments),
		slog.Int("unresolved_treatments", len(snap.Unresolved)),
		slog.Int("discrepancy", snap.Reconciliation.AbsoluteTotal()),
		slog.Duration("took", took),
	)
	if len(snap.Unresolved) > 0 {
		s.logger.Warn("treatments without shipment history", slog.Int("count", len(snap.Unresolved)))
	}
	return snap, nil
}

// load reads the three tables, concurrently unless the source offers a
// consistent single read.
func (s *Service) load(ctx context.Context) (Input, error) {
	if reader, ok := s.source.(DatasetReader); ok {
		in, err := reader.Dataset(ctx)
		if err != nil {
			return Input{}, sourceError(err)
		}
		return in, nil
	}
	var in Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.source.ShipmentRows(gctx)
		if err != nil {
			return fmt.Errorf("load shipments: %w", err)
		}
		in.ShipmentRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.source.TreatmentRows(gctx)
		if err != nil {
			return fmt.Errorf("load treatments: %w", err)
		}
		in.TreatmentRows = rows
		return nil
	})
	g.Go(func() error {
		rep, err := s.source.ReportedInventory(gctx)
		if err != nil {
			return fmt.Errorf("load reported inventory: %w", err)
		}
		in.Reported = rep
		return nil
	})
	if err := g.Wait(); err != nil {
		return Input{}, sourceError(err)
	}
	return in, nil
}

func sourceError(err error) error {
	if errors.Is(err, ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}

func (s *Service) stamp(snap Snapshot) Snapshot {
	snap.ID = uuid.NewString()
	snap.GeneratedAt = s.now()
	return snap
}

func (s *Service) observe(snap Snapshot, took time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(snap, took)
	}
}
