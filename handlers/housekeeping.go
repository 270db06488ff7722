package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// Housekeeping deletes finished jobs, with their parameters and
// allocations, once they are older than retention_days.
type Housekeeping struct {
	jobs    *job.Store
	logger  *zap.SugaredLogger
	timeNow func() time.Time
}

// NewHousekeeping creates the housekeeping handler.
func NewHousekeeping(jobs *job.Store, log *zap.SugaredLogger) *Housekeeping {
	return &Housekeeping{jobs: jobs, logger: log, timeNow: time.Now}
}

func (h *Housekeeping) Name() string {
	return TypeHousekeeping
}

func (h *Housekeeping) Execute(ctx context.Context, j *job.Job) error {
	days, err := intParam(j, "retention_days", DefaultRetentionDays)
	if err != nil {
		return err
	}
	if days < 1 {
		return errors.NewInvalidRequestError("job %d: retention_days must be at least 1, got %d", j.ID, days)
	}

	cutoff := h.timeNow().AddDate(0, 0, -days)
	n, err := h.jobs.PurgeBefore(ctx, cutoff)
	if err != nil {
		return errors.Wrapf(err, "job %d", j.ID)
	}

	logger.FromContext(ctx, h.logger).Infow("Purged finished jobs",
		logger.FieldCount, n,
		"retention_days", days,
		"cutoff", cutoff.Format(time.RFC3339))
	return nil
}
