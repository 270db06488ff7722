package config

import (
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}
	if c.Processor.LockPath == "" {
		return errors.New("processor.lock_path cannot be empty")
	}

	// base_url may be unset for commands that never scrape
	if c.Scrape.BaseURL != "" {
		u, err := url.Parse(c.Scrape.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.Newf("scrape.base_url must be an absolute http(s) URL, got %q", c.Scrape.BaseURL)
		}
	}
	if c.Scrape.RequestsPerMinute < 0 {
		return errors.Newf("scrape.requests_per_minute must be >= 0, got %d", c.Scrape.RequestsPerMinute)
	}
	if c.Scrape.Timeout < 0 {
		return errors.Newf("scrape.timeout must be >= 0, got %s", c.Scrape.Timeout)
	}
	if c.Scrape.WindowDays < 0 {
		return errors.Newf("scrape.window_days must be >= 0, got %d", c.Scrape.WindowDays)
	}

	if _, err := cron.ParseStandard(c.Daemon.CycleSchedule); err != nil {
		return errors.Wrapf(err, "daemon.cycle_schedule %q", c.Daemon.CycleSchedule)
	}
	if c.Daemon.Timezone != "" {
		if _, err := time.LoadLocation(c.Daemon.Timezone); err != nil {
			return errors.Wrapf(err, "daemon.timezone %q", c.Daemon.Timezone)
		}
	}
	return nil
}
