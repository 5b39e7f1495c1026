package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
)

const outboxRetentionDays = 30

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	// DLQ is optional. When set, the job also reports the dead-letter backlog.
	DLQ       dlqBacklogRepo
	Retention int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type dlqBacklogRepo interface {
	Backlog(ctx context.Context) ([]outbox.DLQBacklog, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		dlq:       params.DLQ,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxRetentionRepo
	dlq       dlqBacklogRepo
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox_retention" }

// Run prunes published outbox rows older than the retention window.
// Unpublished and dead-lettered rows are never touched; dead letters are
// reported so lost orders surface in the logs.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "outbox retention cleanup complete")

	if j.dlq == nil {
		return nil
	}
	backlog, err := j.dlq.Backlog(ctx)
	if err != nil {
		return fmt.Errorf("outbox dlq backlog: %w", err)
	}
	for _, b := range backlog {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"event_type":   b.EventType,
			"error_reason": b.Reason,
			"count":        b.Count,
			"oldest":       b.Oldest,
		})
		if b.EventType == enums.EventOrderPlaced || b.EventType == enums.EventCartReconcileRequired {
			j.logg.Warn(logCtx, "outbox dlq holds undelivered critical events")
			continue
		}
		j.logg.Info(logCtx, "outbox dlq backlog")
	}
	return nil
}
