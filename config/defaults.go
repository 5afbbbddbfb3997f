package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "extractd.db")

	// Requests workspace defaults
	v.SetDefault("requests.base_path", "/var/lib/extractd/requests")

	// Orchestrator defaults, used until settings are stored in the database
	v.SetDefault("orchestrator.mode", "ALWAYS_ON")
	v.SetDefault("orchestrator.frequency_seconds", 20)
	v.SetDefault("orchestrator.standby_reminder_days", 0)

	// Outgoing mail defaults
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.from", "extractd@localhost")
	v.SetDefault("smtp.enabled", false)

	// Language defaults
	v.SetDefault("language.default", "en")
	v.SetDefault("language.available", []string{"en", "fr"})
}

// BindSensitiveEnvVars binds credentials to environment variables so they
// never need to live in a config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("smtp.user", "EXTRACT_SMTP_USER")
	v.BindEnv("smtp.password", "EXTRACT_SMTP_PASSWORD")
}
