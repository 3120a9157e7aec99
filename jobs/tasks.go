package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDiscrepancyAlert is raised for each product whose depot counts disagree.
	TaskDiscrepancyAlert = "inventory:discrepancy-alert"
)

// DiscrepancyAlertPayload describes one product discrepancy found by a reconcile run.
type DiscrepancyAlertPayload struct {
	SnapshotID       string `json:"snapshot_id"`
	Product          string `json:"product"`
	TotalDiscrepancy int    `json:"total_discrepancy"`
	MismatchedVials  int    `json:"mismatched_vials"`
	Severity         string `json:"severity"`
}

// NewDiscrepancyAlertTask constructs an Asynq task.
func NewDiscrepancyAlertTask(payload DiscrepancyAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscrepancyAlert, data, asynq.Queue(QueueDefault)), nil
}

// AlertHandler processes TaskDiscrepancyAlert tasks.
type AlertHandler struct {
	Logger *slog.Logger
}

// Handle logs the alert. Delivery channels hook in here.
func (h AlertHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DiscrepancyAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("inventory discrepancy detected",
		slog.String("snapshot_id", payload.SnapshotID),
		slog.String("product", payload.Product),
		slog.Int("total_discrepancy", payload.TotalDiscrepancy),
		slog.Int("mismatched_vials", payload.MismatchedVials),
		slog.String("severity", payload.Severity),
	)
	return nil
}
