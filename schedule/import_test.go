package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	lhtest "github.com/sirstudly/littlehotelier-sub001/internal/testing"
)

const yamlDefinitions = `
definitions:
  - job_type: allocation-scraper
    description: hourly grid scrape
    repeat_time_minutes: 60
    params:
      start_date: TODAY
      end_date: TODAY+14
  - job_type: housekeeping
    repeat_daily_at: "03:15"
    active: false
    params:
      retention_days: "30"
`

const tomlDefinitions = `
[[definitions]]
job_type = "bookings-enrichment"
repeat_daily_at = "07:00"

[definitions.params]
start_date = "TODAY-1"
end_date = "TODAY+1"
`

func TestDecodeYAML(t *testing.T) {
	defs, err := Decode(strings.NewReader(yamlDefinitions), FormatYAML)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "allocation-scraper", defs[0].JobType)
	assert.Equal(t, 60, defs[0].RepeatTimeMinutes)
	assert.True(t, defs[0].Active)
	assert.Equal(t, "TODAY+14", defs[0].Params["end_date"])

	assert.Equal(t, "03:15", defs[1].RepeatDailyAt)
	assert.False(t, defs[1].Active)
}

func TestDecodeTOML(t *testing.T) {
	defs, err := Decode(strings.NewReader(tomlDefinitions), FormatTOML)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "bookings-enrichment", defs[0].JobType)
	assert.Equal(t, "07:00", defs[0].RepeatDailyAt)
	assert.Equal(t, "TODAY-1", defs[0].Params["start_date"])
}

func TestDecodeRejectsInvalidDefinition(t *testing.T) {
	_, err := Decode(strings.NewReader("definitions:\n  - job_type: report\n"), FormatYAML)
	assert.True(t, errors.Is(err, ErrNoRecurrence))

	_, err = Decode(strings.NewReader("definitions: [}"), FormatYAML)
	assert.Error(t, err)

	defs, err := Decode(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("jobs.yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFromPath("/etc/lhjobs/schedule.TOML")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)

	_, err = FormatFromPath("jobs.json")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestImportFile(t *testing.T) {
	store := NewStore(lhtest.CreateTestDB(t))
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDefinitions), 0o644))

	defs, err := ImportFile(context.Background(), store, path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.NotZero(t, defs[0].ID)

	active, err := store.ListDefinitions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "hourly grid scrape", active[0].Description)
}
