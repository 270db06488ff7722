package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// Evaluator submits jobs for overdue definitions.
type Evaluator struct {
	store    *Store
	logger   *zap.SugaredLogger
	timeNow  func() time.Time
	location *time.Location
}

// NewEvaluator creates an evaluator over store.
func NewEvaluator(store *Store, log *zap.SugaredLogger) *Evaluator {
	if log == nil {
		log = logger.ComponentLogger("schedule")
	}
	return &Evaluator{store: store, logger: log, timeNow: time.Now, location: time.Local}
}

// SetLocation sets the zone daily trigger times are read in.
func (e *Evaluator) SetLocation(loc *time.Location) {
	if loc != nil {
		e.location = loc
	}
}

// SubmitOverdue evaluates every active definition once and returns the ids
// of the jobs it submitted. A misconfigured definition is logged and its
// error returned combined with any others; the remaining definitions are
// still evaluated.
func (e *Evaluator) SubmitOverdue(ctx context.Context) ([]int64, error) {
	defs, err := e.store.ListDefinitions(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduled jobs")
	}

	now := e.timeNow().In(e.location)
	var submitted []int64
	var errs error

	for _, d := range defs {
		if err := ctx.Err(); err != nil {
			return submitted, errors.CombineErrors(errs, err)
		}

		jobID, err := e.evaluate(ctx, d, now)
		if err != nil {
			e.logger.Errorw("Scheduled job evaluation failed",
				logger.FieldDefinitionID, d.ID,
				logger.FieldJobType, d.JobType,
				logger.FieldError, err)
			errs = errors.CombineErrors(errs, err)
			continue
		}
		if jobID != 0 {
			submitted = append(submitted, jobID)
		}
	}

	return submitted, errs
}

// evaluate submits one job for d if it is overdue. Returns 0 when nothing
// was submitted.
func (e *Evaluator) evaluate(ctx context.Context, d *Definition, now time.Time) (int64, error) {
	overdue, err := d.IsOverdue(now)
	if err != nil {
		return 0, err
	}
	if !overdue {
		return 0, nil
	}

	j, err := d.CreateJob(now)
	if err != nil {
		return 0, err
	}

	if err := e.store.SubmitJob(ctx, d, j, now); err != nil {
		if errors.IsConcurrencyConflict(err) {
			e.logger.Warnw("Scheduled job already submitted by another evaluator",
				logger.FieldDefinitionID, d.ID,
				logger.FieldError, err)
			return 0, nil
		}
		return 0, err
	}

	e.logger.Infow("Submitted scheduled job",
		logger.FieldDefinitionID, d.ID,
		logger.FieldJobID, j.ID,
		logger.FieldJobType, j.Type,
		"rule", d.Rule())
	return j.ID, nil
}
