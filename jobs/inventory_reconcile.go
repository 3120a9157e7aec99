package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vialtrack/vialtrack/internal/inventory"
	jobmetrics "github.com/vialtrack/vialtrack/internal/jobs"
)

const (
	// TaskInventoryReconcile rebuilds the inventory snapshot and raises discrepancy alerts.
	TaskInventoryReconcile = "inventory:reconcile"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InventoryReconcilePayload carries scheduling metadata.
type InventoryReconcilePayload struct {
	Reason       string    `json:"reason"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewInventoryReconcileTask constructs an Asynq task for a reconcile run.
func NewInventoryReconcileTask(reason string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(InventoryReconcilePayload{Reason: reason, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryReconcile, body, asynq.Queue(QueueDefault)), nil
}

// SnapshotRefresher rebuilds the current snapshot from the source.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (inventory.Snapshot, error)
}

// TaskEnqueuer submits follow-up tasks.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// InventoryReconcileJob refreshes the snapshot and enqueues one alert per
// product with a non-zero discrepancy.
type InventoryReconcileJob struct {
	Service  SnapshotRefresher
	Enqueuer TaskEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewInventoryReconcileJob wires dependencies for the reconcile handler.
func NewInventoryReconcileJob(service SnapshotRefresher, enqueuer TaskEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryReconcileJob {
	return &InventoryReconcileJob{Service: service, Enqueuer: enqueuer, Logger: logger, Metrics: metrics}
}

// Handle processes reconcile tasks.
func (j *InventoryReconcileJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("inventory reconcile: handler not configured")
	}
	var payload InventoryReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskInventoryReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	snap, err := j.Service.Refresh(ctx)
	if err != nil {
		logger.Error("refresh inventory snapshot", slog.Any("error", err))
		return err
	}

	alerts := 0
	for _, p := range snap.Reconciliation.Products {
		if p.Severity == inventory.SeverityNone {
			continue
		}
		j.metrics().AddDiscrepancyAlert(p.Product, string(p.Severity))
		if j.Enqueuer == nil {
			continue
		}
		task, err := NewDiscrepancyAlertTask(DiscrepancyAlertPayload{
			SnapshotID:       snap.ID,
			Product:          p.Product,
			TotalDiscrepancy: p.TotalDiscrepancy,
			MismatchedVials:  p.MismatchedVials,
			Severity:         string(p.Severity),
		})
		if err != nil {
			return err
		}
		if _, err := j.Enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
			logger.Error("enqueue discrepancy alert", slog.String("product", p.Product), slog.Any("error", err))
			return err
		}
		alerts++
	}

	logger.Info("inventory reconcile completed",
		slog.String("snapshot_id", snap.ID),
		slog.Int("discrepancy", snap.Reconciliation.AbsoluteTotal()),
		slog.Int("alerts", alerts),
	)
	return nil
}

func (j *InventoryReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *InventoryReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
