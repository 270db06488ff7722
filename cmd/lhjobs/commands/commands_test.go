package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/handlers"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/schedule"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("database.path", filepath.Join(dir, "lhjobs.db"))
	v.Set("processor.lock_path", filepath.Join(dir, "lhjobs.lock"))
	v.Set("scrape.base_url", "https://hotels.example.com")
	v.Set("scrape.property_id", "7")
	v.Set("scrape.cookie", "session=secret")
	cfg, err := config.LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"start_date=TODAY", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"start_date": "TODAY", "note": "a=b", "empty": ""}, params)

	_, err = parseParams([]string{"start_date"})
	assert.True(t, errors.IsInvalidRequestError(err))
	_, err = parseParams([]string{"=x"})
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestNewAdHocJobResolvesTokens(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	j, err := newAdHocJob(handlers.TypeAllocationScraper, map[string]string{
		"start_date": "TODAY",
		"end_date":   "TODAY+4",
		"label":      "TODAY is fine",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, job.StatusSubmitted, j.Status)
	assert.Equal(t, "2024-05-10", j.Params["start_date"])
	assert.Equal(t, "2024-05-14", j.Params["end_date"])
	assert.Equal(t, "TODAY is fine", j.Params["label"])

	_, err = newAdHocJob("", nil, now)
	assert.Error(t, err)
}

func TestWriteConfig(t *testing.T) {
	cfg := testConfig(t)
	redacted := cfg.Redacted()

	for format, want := range map[string]string{
		"toml": "[scrape]",
		"yaml": "scrape:",
		"json": `"scrape": {`,
	} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeConfig(&buf, redacted, format))
			assert.Contains(t, buf.String(), want)
			assert.Contains(t, buf.String(), "hotels.example.com")
			assert.NotContains(t, buf.String(), "secret")
		})
	}

	assert.Error(t, writeConfig(&bytes.Buffer{}, redacted, "xml"))
}

func TestAppRunCycle(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	assert.Equal(t, []string{handlers.TypeAllocationScraper, handlers.TypeBookingsEnrichment, handlers.TypeHousekeeping},
		a.registry.Names())

	require.NoError(t, a.schedules.CreateDefinition(ctx, &schedule.Definition{
		JobType:           handlers.TypeHousekeeping,
		RepeatTimeMinutes: 60,
		Active:            true,
		Params:            map[string]string{"retention_days": "30"},
	}))
	adhoc, err := job.New("no-such-type", nil)
	require.NoError(t, err)
	require.NoError(t, a.jobs.CreateJob(ctx, adhoc))

	res, err := a.runCycle(ctx, true)
	require.NoError(t, err)
	assert.Len(t, res.Submitted, 1)
	assert.Equal(t, 1, res.Summary.Completed)
	assert.Equal(t, 1, res.Summary.Failed)

	failed, err := a.jobs.GetJob(ctx, adhoc.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, failed.Status)

	// the definition ran; a second cycle has nothing to do
	res, err = a.runCycle(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, res.Submitted)
	assert.Zero(t, res.Summary.Claimed())

	// --no-schedule never evaluates definitions
	res, err = a.runCycle(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, res.Submitted)
}

func TestUserAgent(t *testing.T) {
	cfg := testConfig(t)
	assert.Contains(t, userAgent(cfg), "lhjobs/")

	cfg.Scrape.UserAgent = "custom"
	assert.Equal(t, "custom", userAgent(cfg))
}

func TestDaemonReload(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg := testConfig(t)
	d, err := newDaemon(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	first := d.entry
	require.Len(t, d.cron.Entries(), 1)

	// unchanged schedule keeps the entry, new settings wait for the next cycle
	same := *cfg
	same.Scrape.PropertyID = "8"
	require.NoError(t, d.reload(&same))
	assert.Equal(t, first, d.entry)
	assert.Same(t, &same, d.pending)

	changed := same
	changed.Daemon.CycleSchedule = "@every 1h"
	require.NoError(t, d.reload(&changed))
	assert.NotEqual(t, first, d.entry)
	assert.Equal(t, "@every 1h", d.schedule)
	require.Len(t, d.cron.Entries(), 1)

	broken := changed
	broken.Daemon.CycleSchedule = "whenever"
	assert.Error(t, d.reload(&broken))
	assert.Equal(t, "@every 1h", d.schedule)

	old := d.app
	a, err := d.current()
	require.NoError(t, err)
	assert.NotSame(t, old, a)
	assert.Equal(t, "@every 1h", d.cfg.Daemon.CycleSchedule)
	assert.Nil(t, d.pending)
}

func TestDaemonCycleOverlapAcrossReschedule(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg := testConfig(t)
	d, err := newDaemon(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	d.app.registry.Register(job.NewHandlerFunc("slow", func(ctx context.Context, j *job.Job) error {
		close(started)
		<-release
		return nil
	}))
	slow, err := job.New("slow", nil)
	require.NoError(t, err)
	require.NoError(t, d.app.jobs.CreateJob(context.Background(), slow))

	old := d.app
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.cycle()
	}()
	<-started

	// the new cron entry fires while the old entry's cycle is running
	changed := *cfg
	changed.Daemon.CycleSchedule = "@every 1h"
	require.NoError(t, d.reload(&changed))
	d.cycle()

	d.mu.Lock()
	assert.Same(t, old, d.app, "app kept while a cycle runs")
	assert.NotNil(t, d.pending)
	d.mu.Unlock()

	close(release)
	<-done

	got, err := old.jobs.GetJob(context.Background(), slow.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)

	// the next cycle applies the parked config
	d.cycle()
	d.mu.Lock()
	assert.NotSame(t, old, d.app)
	assert.Nil(t, d.pending)
	current := d.app
	d.mu.Unlock()

	got, err = current.jobs.GetJob(context.Background(), slow.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
}
