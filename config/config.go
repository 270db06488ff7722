// Package config loads lhjobs configuration from TOML files and LHJOBS_*
// environment variables.
package config

import "time"

// Config is the lhjobs configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Processor ProcessorConfig `mapstructure:"processor" toml:"processor" yaml:"processor" json:"processor"`
	Scrape    ScrapeConfig    `mapstructure:"scrape" toml:"scrape" yaml:"scrape" json:"scrape"`
	Daemon    DaemonConfig    `mapstructure:"daemon" toml:"daemon" yaml:"daemon" json:"daemon"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// ProcessorConfig configures the processor cycle
type ProcessorConfig struct {
	// Advisory lock file shared by every runner
	LockPath        string `mapstructure:"lock_path" toml:"lock_path" yaml:"lock_path" json:"lock_path"`
	// Empty disables the node-exporter textfile
	MetricsTextfile string `mapstructure:"metrics_textfile" toml:"metrics_textfile" yaml:"metrics_textfile" json:"metrics_textfile"`
}

// ScrapeConfig configures access to the vendor back office
type ScrapeConfig struct {
	BaseURL           string        `mapstructure:"base_url" toml:"base_url" yaml:"base_url" json:"base_url"`
	PropertyID        string        `mapstructure:"property_id" toml:"property_id" yaml:"property_id" json:"property_id"`
	Cookie            string        `mapstructure:"cookie" toml:"cookie" yaml:"cookie" json:"cookie"`
	UserAgent         string        `mapstructure:"user_agent" toml:"user_agent" yaml:"user_agent" json:"user_agent"`
	// Zero disables pacing
	RequestsPerMinute int           `mapstructure:"requests_per_minute" toml:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	LabelSeparator    string        `mapstructure:"label_separator" toml:"label_separator" yaml:"label_separator" json:"label_separator"`
	GridURL           string        `mapstructure:"grid_url" toml:"grid_url" yaml:"grid_url" json:"grid_url"`
	BookingsURL       string        `mapstructure:"bookings_url" toml:"bookings_url" yaml:"bookings_url" json:"bookings_url"`
	BlockPrivateIP    bool          `mapstructure:"block_private_ip" toml:"block_private_ip" yaml:"block_private_ip" json:"block_private_ip"`
	Timeout           time.Duration `mapstructure:"timeout" toml:"timeout" yaml:"timeout" json:"timeout"`
	WindowDays        int           `mapstructure:"window_days" toml:"window_days" yaml:"window_days" json:"window_days"`
}

// DaemonConfig configures the long-running daemon
type DaemonConfig struct {
	// Cron expression or @every descriptor
	CycleSchedule string `mapstructure:"cycle_schedule" toml:"cycle_schedule" yaml:"cycle_schedule" json:"cycle_schedule"`
	// Empty means the local zone
	Timezone string `mapstructure:"timezone" toml:"timezone" yaml:"timezone" json:"timezone"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// Redacted returns a copy safe to print, with the session cookie masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Scrape.Cookie != "" {
		out.Scrape.Cookie = "********"
	}
	return out
}

// Location resolves daemon.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Daemon.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Daemon.Timezone)
}
