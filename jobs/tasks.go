package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alexandreseverogh/netimobiliaria/internal/audit"
	"github.com/alexandreseverogh/netimobiliaria/internal/catalog"
	jobmetrics "github.com/alexandreseverogh/netimobiliaria/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditPurge trims audit entries past the retention window.
	TaskAuditPurge = "audit:purge"
	// TaskCatalogWarmup refreshes the feature catalog cache.
	TaskCatalogWarmup = "catalog:warmup"
)

// AuditPurgePayload carries the retention window for a purge run.
type AuditPurgePayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(payload AuditPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data), nil
}

// NewCatalogWarmupTask constructs an Asynq task.
func NewCatalogWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogWarmup, nil)
}

// NewAuditPurgeHandler returns the handler for TaskAuditPurge tasks.
func NewAuditPurgeHandler(svc *audit.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("audit_purge")
		var payload AuditPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.RetentionDays < 1 {
			return tracker.End(asynq.SkipRetry)
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -payload.RetentionDays)
		purged, err := svc.PurgeBefore(ctx, cutoff)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("audit purge complete", slog.Int64("purged", purged), slog.Time("cutoff", cutoff))
		return tracker.End(nil)
	}
}

// NewCatalogWarmupHandler returns the handler for TaskCatalogWarmup tasks.
func NewCatalogWarmupHandler(svc *catalog.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("catalog_warmup")
		svc.Invalidate()
		slugs, err := svc.ActiveFeatureSlugs(ctx)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("catalog warmup complete", slog.Int("features", len(slugs)))
		return tracker.End(nil)
	}
}
