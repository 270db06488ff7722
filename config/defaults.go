package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "lhjobs.db")

	v.SetDefault("processor.lock_path", "lhjobs.lock")
	v.SetDefault("processor.metrics_textfile", "")

	v.SetDefault("scrape.base_url", "")
	v.SetDefault("scrape.property_id", "")
	v.SetDefault("scrape.cookie", "")
	v.SetDefault("scrape.grid_url", "")
	v.SetDefault("scrape.bookings_url", "")
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("scrape.requests_per_minute", 20) // polite pacing against the back office
	v.SetDefault("scrape.label_separator", " - ")
	v.SetDefault("scrape.block_private_ip", true)
	v.SetDefault("scrape.timeout", 30*time.Second)
	v.SetDefault("scrape.window_days", 14)

	v.SetDefault("daemon.cycle_schedule", "@every 5m")
	v.SetDefault("daemon.timezone", "")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("scrape.cookie", "LHJOBS_SCRAPE_COOKIE")
	v.BindEnv("database.path", "LHJOBS_DATABASE_PATH")
}
