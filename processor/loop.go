// Package processor runs submitted jobs one at a time under a single-runner
// lock, recovering jobs abandoned by a crashed runner before claiming new ones.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/db"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// RecoveryCause is recorded on jobs found processing at cycle start.
const RecoveryCause = "recovered after runner crash"

// Summary describes one processing cycle.
type Summary struct {
	RunID     string
	LockHeld  bool // another runner owned the cycle; nothing was done
	Recovered int
	Completed int
	Failed    int
	Conflicts int
	Duration  time.Duration
}

// Claimed is the number of jobs this cycle moved to processing.
func (s Summary) Claimed() int {
	return s.Completed + s.Failed
}

// Loop claims and executes submitted jobs.
type Loop struct {
	jobs     *job.Store
	registry *job.Registry
	locker   Locker
	logger   *zap.SugaredLogger

	metrics         *Metrics
	metricsTextfile string

	timeNow func() time.Time
}

// NewLoop creates a processing loop. A nil logger uses the "processor"
// component logger.
func NewLoop(jobs *job.Store, registry *job.Registry, locker Locker, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = logger.ComponentLogger("processor")
	}
	return &Loop{
		jobs:     jobs,
		registry: registry,
		locker:   locker,
		logger:   log,
		timeNow:  time.Now,
	}
}

// SetMetrics records cycle outcomes on m. When textfile is non-empty the
// registry is written there after every cycle that held the lock.
func (l *Loop) SetMetrics(m *Metrics, textfile string) {
	l.metrics = m
	l.metricsTextfile = textfile
}

// RunCycle performs one cycle: take the lock, fail every job left processing
// by a previous runner, then claim and execute submitted jobs oldest first
// until none remain or ctx is cancelled.
//
// A lock held by another runner is not an error; the returned summary has
// LockHeld set. Handler errors and panics fail the job and the loop moves
// on. Store errors end the cycle and are returned.
func (l *Loop) RunCycle(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	ctx = logger.WithRunID(ctx, summary.RunID)
	log := logger.FromContext(ctx, l.logger)

	acquired, err := l.locker.TryLock()
	if err != nil {
		return summary, errors.Wrap(err, "failed to acquire processor lock")
	}
	if !acquired {
		log.Infow("Processor lock held by another runner, skipping cycle")
		l.metrics.lockHeld()
		summary.LockHeld = true
		return summary, nil
	}
	defer func() {
		if err := l.locker.Unlock(); err != nil {
			log.Warnw("Failed to release processor lock", logger.FieldError, err)
		}
	}()

	start := l.timeNow()
	defer func() { l.finish(log, &summary, start) }()

	recovered, err := l.recoverOrphans(ctx, log)
	summary.Recovered = recovered
	if err != nil {
		return summary, err
	}

	for {
		if ctx.Err() != nil {
			log.Infow("Processing interrupted, leaving remaining jobs submitted")
			return summary, nil
		}

		next, err := l.jobs.NextSubmitted(ctx)
		if err != nil {
			return summary, errors.Wrap(err, "failed to fetch next submitted job")
		}
		if next == nil {
			return summary, nil
		}

		outcome, err := l.process(ctx, next)
		if err != nil {
			return summary, err
		}
		switch outcome {
		case outcomeCompleted:
			summary.Completed++
		case outcomeFailed:
			summary.Failed++
		case outcomeConflict:
			summary.Conflicts++
		}
	}
}

// recoverOrphans fails every job still marked processing. With the lock
// held no other runner can be executing them.
func (l *Loop) recoverOrphans(ctx context.Context, log *zap.SugaredLogger) (int, error) {
	orphans, err := l.jobs.ListByStatus(ctx, job.StatusProcessing)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list processing jobs")
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	log.Warnw("Found jobs left processing by a previous runner", logger.FieldCount, len(orphans))

	recovered := 0
	for _, j := range orphans {
		err := l.jobs.MarkFailed(ctx, j.ID, job.StatusProcessing, RecoveryCause)
		if errors.IsConcurrencyConflict(err) {
			log.Warnw("Orphaned job changed during recovery",
				logger.FieldJobID, j.ID,
				logger.FieldError, err)
			continue
		}
		if err != nil {
			return recovered, errors.Wrapf(err, "failed to recover job %d", j.ID)
		}
		log.Infow("Recovered orphaned job",
			logger.FieldJobID, j.ID,
			logger.FieldJobType, j.Type)
		recovered++
	}
	return recovered, nil
}

// process claims j, runs its handler and records the outcome. Only store
// failures are returned.
func (l *Loop) process(ctx context.Context, j *job.Job) (string, error) {
	ctx = logger.WithJobID(ctx, j.ID)
	log := logger.FromContext(ctx, l.logger).With(logger.FieldJobType, j.Type)

	if err := l.jobs.UpdateStatus(ctx, j.ID, job.StatusProcessing, job.StatusSubmitted); err != nil {
		if errors.IsConcurrencyConflict(err) || errors.IsNotFoundError(err) {
			log.Warnw("Job no longer submitted, skipping", logger.FieldError, err)
			l.metrics.jobFinished(j.Type, outcomeConflict, 0)
			return outcomeConflict, nil
		}
		return "", errors.Wrapf(err, "failed to claim job %d", j.ID)
	}
	j.Status = job.StatusProcessing
	log.Infow("Processing job")

	started := l.timeNow()
	execErr := l.execute(ctx, j)
	elapsed := l.timeNow().Sub(started)

	// the final transition is written even when ctx was cancelled mid-job
	settleCtx := context.WithoutCancel(ctx)

	if execErr != nil {
		log.Errorw("Job failed",
			logger.FieldError, execErr,
			logger.FieldDurationMS, elapsed.Milliseconds())
		if err := l.jobs.MarkFailed(settleCtx, j.ID, job.StatusProcessing, execErr.Error()); err != nil {
			return l.settleError(log, j, err)
		}
		j.Status = job.StatusFailed
		l.metrics.jobFinished(j.Type, outcomeFailed, elapsed)
		return outcomeFailed, nil
	}

	if err := l.jobs.UpdateStatus(settleCtx, j.ID, job.StatusCompleted, job.StatusProcessing); err != nil {
		return l.settleError(log, j, err)
	}
	j.Status = job.StatusCompleted
	log.Infow("Job completed", logger.FieldDurationMS, elapsed.Milliseconds())
	l.metrics.jobFinished(j.Type, outcomeCompleted, elapsed)
	return outcomeCompleted, nil
}

func (l *Loop) settleError(log *zap.SugaredLogger, j *job.Job, err error) (string, error) {
	if errors.IsConcurrencyConflict(err) {
		log.Warnw("Job changed while executing, outcome not recorded", logger.FieldError, err)
		l.metrics.jobFinished(j.Type, outcomeConflict, 0)
		return outcomeConflict, nil
	}
	if db.IsBusy(err) || db.IsDatabaseClosed(err) {
		log.Errorw("Database unavailable, job stays processing until the next cycle recovers it",
			logger.FieldError, err)
	}
	return "", errors.Wrapf(err, "failed to record outcome of job %d", j.ID)
}

// execute runs the handler, turning a panic into an error.
func (l *Loop) execute(ctx context.Context, j *job.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("handler for %s panicked: %v", j.Type, r)
		}
	}()
	return l.registry.Execute(ctx, j)
}

func (l *Loop) finish(log *zap.SugaredLogger, summary *Summary, start time.Time) {
	end := l.timeNow()
	summary.Duration = end.Sub(start)
	l.metrics.cycleFinished(end, summary.Recovered)

	fields := []interface{}{
		"recovered", summary.Recovered,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"conflicts", summary.Conflicts,
		logger.FieldDurationMS, summary.Duration.Milliseconds(),
	}
	if mem, err := getMemoryStats(); err == nil {
		fields = append(fields,
			"memory_used_mb", int(mem.UsedMB),
			"memory_total_mb", int(mem.TotalMB),
			"memory_used_pct", int(mem.UsedRatio*100))
	}
	log.Infow("Processing cycle finished", fields...)

	if l.metrics != nil && l.metricsTextfile != "" {
		if err := l.metrics.WriteTextfile(l.metricsTextfile); err != nil {
			log.Warnw("Failed to write metrics textfile",
				logger.FieldPath, l.metricsTextfile,
				logger.FieldError, err)
		}
	}
}
