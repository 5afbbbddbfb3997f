// Package config provides the extractd core configuration, loaded with Viper
// from TOML files and EXTRACT_-prefixed environment variables.
package config

// Config is the root extractd configuration
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	Requests     RequestsConfig     `mapstructure:"requests"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Smtp         SmtpConfig         `mapstructure:"smtp"`
	Language     LanguageConfig     `mapstructure:"language"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RequestsConfig holds settings for the per-request data workspaces
type RequestsConfig struct {
	BasePath string `mapstructure:"base_path"` // absolute folder containing one subfolder per request
}

// OrchestratorConfig holds the fallback scheduling settings used when the
// system parameters table carries no stored values yet.
type OrchestratorConfig struct {
	Mode                string `mapstructure:"mode"`                  // ALWAYS_ON, TIME_WINDOWS or DISABLED
	FrequencySeconds    int    `mapstructure:"frequency_seconds"`     // poll frequency for all monitoring tasks
	StandbyReminderDays int    `mapstructure:"standby_reminder_days"` // 0 disables standby reminders
}

// SmtpConfig holds the outgoing mail settings handed to the notification sender
type SmtpConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	From     string `mapstructure:"from"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LanguageConfig holds the application display language settings
type LanguageConfig struct {
	Default   string   `mapstructure:"default"`   // locale code used when a user has none
	Available []string `mapstructure:"available"` // locales notifications can be rendered in
}
