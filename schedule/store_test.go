package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	lhtest "github.com/sirstudly/littlehotelier-sub001/internal/testing"
	"github.com/sirstudly/littlehotelier-sub001/job"
)

func TestCreateAndGetDefinition(t *testing.T) {
	store := NewStore(lhtest.CreateTestDB(t))
	ctx := context.Background()

	last := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	d := &Definition{
		JobType:           "allocation-scraper",
		Description:       "hourly grid scrape",
		RepeatTimeMinutes: 60,
		Active:            true,
		LastRunDate:       &last,
		Params:            map[string]string{"start_date": "TODAY", "end_date": "TODAY+14"},
	}
	require.NoError(t, store.CreateDefinition(ctx, d))
	require.NotZero(t, d.ID)

	got, err := store.GetDefinition(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "allocation-scraper", got.JobType)
	assert.Equal(t, "hourly grid scrape", got.Description)
	assert.Equal(t, 60, got.RepeatTimeMinutes)
	assert.Empty(t, got.RepeatDailyAt)
	assert.True(t, got.Active)
	require.NotNil(t, got.LastRunDate)
	assert.True(t, last.Equal(*got.LastRunDate))
	assert.Equal(t, d.Params, got.Params)

	_, err = store.GetDefinition(ctx, 999)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCreateDefinitionRejectsMissingRecurrence(t *testing.T) {
	store := NewStore(lhtest.CreateTestDB(t))

	err := store.CreateDefinition(context.Background(), &Definition{JobType: "report", Active: true})
	assert.True(t, errors.Is(err, ErrNoRecurrence))
}

func TestListDefinitionsAndSetActive(t *testing.T) {
	store := NewStore(lhtest.CreateTestDB(t))
	ctx := context.Background()

	a := &Definition{JobType: "a", RepeatTimeMinutes: 5, Active: true}
	b := &Definition{JobType: "b", RepeatDailyAt: "06:30", Active: true}
	require.NoError(t, store.CreateDefinition(ctx, a))
	require.NoError(t, store.CreateDefinition(ctx, b))

	require.NoError(t, store.SetActive(ctx, a.ID, false))

	active, err := store.ListDefinitions(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
	assert.Equal(t, "06:30", active[0].RepeatDailyAt)

	all, err := store.ListDefinitions(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.True(t, errors.IsNotFoundError(store.SetActive(ctx, 999, true)))
}

func TestSubmitJobAdvancesLastRun(t *testing.T) {
	database := lhtest.CreateTestDB(t)
	store := NewStore(database)
	jobs := job.NewStore(database)
	ctx := context.Background()

	d := &Definition{JobType: "report", RepeatTimeMinutes: 60, Active: true, Params: map[string]string{"day": "TODAY"}}
	require.NoError(t, store.CreateDefinition(ctx, d))

	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	j, err := d.CreateJob(now)
	require.NoError(t, err)
	require.NoError(t, store.SubmitJob(ctx, d, j, now))
	require.NotZero(t, j.ID)
	require.NotNil(t, d.LastRunDate)
	assert.Equal(t, now, *d.LastRunDate)

	stored, err := jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSubmitted, stored.Status)
	assert.Equal(t, "2024-05-10", stored.Params["day"])

	reloaded, err := store.GetDefinition(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, now.Equal(*reloaded.LastRunDate))

	overdue, err := reloaded.IsOverdue(now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, overdue, "advanced definition must not re-fire immediately")
}

func TestSubmitJobStaleEvaluationConflicts(t *testing.T) {
	database := lhtest.CreateTestDB(t)
	store := NewStore(database)
	jobs := job.NewStore(database)
	ctx := context.Background()

	require.NoError(t, store.CreateDefinition(ctx, &Definition{JobType: "report", RepeatTimeMinutes: 60, Active: true}))
	defs, err := store.ListDefinitions(ctx, true)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	// two evaluators loaded the same never-run definition
	first, err := store.GetDefinition(ctx, defs[0].ID)
	require.NoError(t, err)
	second, err := store.GetDefinition(ctx, defs[0].ID)
	require.NoError(t, err)

	now := time.Now()
	j1, err := first.CreateJob(now)
	require.NoError(t, err)
	require.NoError(t, store.SubmitJob(ctx, first, j1, now))

	j2, err := second.CreateJob(now)
	require.NoError(t, err)
	err = store.SubmitJob(ctx, second, j2, now)
	assert.True(t, errors.IsConcurrencyConflict(err))
	assert.Zero(t, j2.ID)

	all, err := jobs.ListJobs(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1, "only one job submitted")
}

func TestEvaluatorSubmitOverdue(t *testing.T) {
	database := lhtest.CreateTestDB(t)
	store := NewStore(database)
	jobs := job.NewStore(database)
	ctx := context.Background()

	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	due := &Definition{JobType: "allocation-scraper", RepeatTimeMinutes: 60, Active: true,
		LastRunDate: ptr(now.Add(-90 * time.Minute)), Params: map[string]string{"end_date": "TODAY+4"}}
	fresh := &Definition{JobType: "report", RepeatTimeMinutes: 60, Active: true, LastRunDate: ptr(now.Add(-5 * time.Minute))}
	daily := &Definition{JobType: "bookings-enrichment", RepeatDailyAt: "14:00", Active: true}
	inactive := &Definition{JobType: "housekeeping", RepeatTimeMinutes: 1, Active: false}
	for _, d := range []*Definition{due, fresh, daily, inactive} {
		require.NoError(t, store.CreateDefinition(ctx, d))
	}

	evaluator := NewEvaluator(store, zaptest.NewLogger(t).Sugar())
	evaluator.timeNow = func() time.Time { return now }
	evaluator.SetLocation(time.UTC)

	submitted, err := evaluator.SubmitOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, submitted, 2)

	first, err := jobs.GetJob(ctx, submitted[0])
	require.NoError(t, err)
	assert.Equal(t, "allocation-scraper", first.Type)
	assert.Equal(t, "2024-05-14", first.Params["end_date"])

	second, err := jobs.GetJob(ctx, submitted[1])
	require.NoError(t, err)
	assert.Equal(t, "bookings-enrichment", second.Type)

	// second pass at the same instant submits nothing
	again, err := evaluator.SubmitOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestEvaluatorReportsMisconfiguredDefinition(t *testing.T) {
	database := lhtest.CreateTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	require.NoError(t, store.CreateDefinition(ctx, &Definition{JobType: "report", RepeatTimeMinutes: 1, Active: true}))

	// bypass validation to simulate a row edited by hand
	_, err := database.Exec(`INSERT INTO scheduled_jobs (job_type, active, created_at, updated_at)
		VALUES ('broken', 1, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	evaluator := NewEvaluator(store, zaptest.NewLogger(t).Sugar())
	submitted, err := evaluator.SubmitOverdue(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRecurrence))
	assert.Len(t, submitted, 1, "valid siblings still run")
}

func TestEvaluatorDailyTriggerUsesLocation(t *testing.T) {
	database := lhtest.CreateTestDB(t)
	store := NewStore(database)
	ctx := context.Background()

	require.NoError(t, store.CreateDefinition(ctx, &Definition{JobType: "report", RepeatDailyAt: "14:00", Active: true}))

	// 15:00 UTC is 11:00 in a UTC-4 zone, before the trigger
	evaluator := NewEvaluator(store, zaptest.NewLogger(t).Sugar())
	evaluator.timeNow = func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) }
	evaluator.SetLocation(time.FixedZone("UTC-4", -4*60*60))

	submitted, err := evaluator.SubmitOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, submitted)

	evaluator.SetLocation(time.UTC)
	submitted, err = evaluator.SubmitOverdue(ctx)
	require.NoError(t, err)
	assert.Len(t, submitted, 1)
}
