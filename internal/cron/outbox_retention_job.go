package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

const (
	outboxRetentionDays = 30
	outboxMaxAttempts   = 10
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteDeadBefore(ctx context.Context, cutoff time.Time, maxAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	// Retention is in days; rows younger than that are kept.
	Retention int
	// MaxAttempts must match the publisher so only parked rows count as dead.
	MaxAttempts int
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	repo        outboxRetentionRepo
	retention   int
	maxAttempts int
	now         func() time.Time
}

// NewOutboxRetentionJob prunes old outbox rows that will never be published
// again: the published ones and the ones parked in the DLQ.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		repo:        params.Repository,
		retention:   params.Retention,
		maxAttempts: params.MaxAttempts,
		now:         time.Now,
	}
	if job.retention <= 0 {
		job.retention = outboxRetentionDays
	}
	if job.maxAttempts <= 0 {
		job.maxAttempts = outboxMaxAttempts
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes both row classes; a failure in one does not skip the other.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	sweeps := []struct {
		field string
		run   func() (int64, error)
	}{
		{"published_rows", func() (int64, error) { return j.repo.DeletePublishedBefore(ctx, cutoff) }},
		{"dead_rows", func() (int64, error) { return j.repo.DeleteDeadBefore(ctx, cutoff, j.maxAttempts) }},
	}

	fields := map[string]any{"cutoff": cutoff, "retention_days": j.retention}
	var err error
	for _, s := range sweeps {
		n, sweepErr := s.run()
		if sweepErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.field, sweepErr))
			continue
		}
		fields[s.field] = n
	}
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}
