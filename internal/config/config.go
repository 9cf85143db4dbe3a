package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Logging      LoggingConfig
	Reminders    RemindersConfig
	DailyCheckin DailyCheckinConfig
	Push         PushConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// RemindersConfig holds medication reminder scheduling configuration
type RemindersConfig struct {
	// ForwardDays is the size of the rolling scheduling window
	ForwardDays          int
	SnoozeMinutes        int
	RemindLaterMinutes   int
	DefaultFollowUpDelay time.Duration
	SettingsCacheTTL     time.Duration
	// RefreshInterval is how often the forward window is topped up
	RefreshInterval      time.Duration
}

// DailyCheckinConfig holds the daily check-in prompt configuration
type DailyCheckinConfig struct {
	Enabled  bool
	Time     string
	Timezone string
}

// PushConfig holds delivery targets for shown notifications
type PushConfig struct {
	// URLs are shoutrrr service URLs. Empty keeps delivery log-only.
	URLs    []string
	Timeout time.Duration
}

// Load reads configuration from an optional .env file, environment
// variables and defaults
func Load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Reminder defaults
	v.SetDefault("reminders.forwarddays", 3)
	v.SetDefault("reminders.snoozeminutes", 10)
	v.SetDefault("reminders.remindlaterminutes", 10)
	v.SetDefault("reminders.defaultfollowupdelay", 30*time.Minute)
	v.SetDefault("reminders.settingscachettl", 5*time.Minute)
	v.SetDefault("reminders.refreshinterval", time.Hour)

	// Daily check-in defaults
	v.SetDefault("dailycheckin.enabled", false)
	v.SetDefault("dailycheckin.time", "21:00")
	v.SetDefault("dailycheckin.timezone", "UTC")

	// Push defaults
	v.SetDefault("push.urls", []string{})
	v.SetDefault("push.timeout", 10*time.Second)
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")

	// Reminders
	v.BindEnv("reminders.forwarddays", "REMINDER_FORWARD_DAYS")
	v.BindEnv("reminders.snoozeminutes", "REMINDER_SNOOZE_MINUTES")
	v.BindEnv("reminders.remindlaterminutes", "REMINDER_REMIND_LATER_MINUTES")
	v.BindEnv("reminders.defaultfollowupdelay", "REMINDER_FOLLOW_UP_DELAY")
	v.BindEnv("reminders.settingscachettl", "REMINDER_SETTINGS_CACHE_TTL")
	v.BindEnv("reminders.refreshinterval", "REMINDER_REFRESH_INTERVAL")

	// Daily check-in
	v.BindEnv("dailycheckin.enabled", "DAILY_CHECKIN_ENABLED")
	v.BindEnv("dailycheckin.time", "DAILY_CHECKIN_TIME")
	v.BindEnv("dailycheckin.timezone", "DAILY_CHECKIN_TIMEZONE", "TZ")

	// Push
	v.BindEnv("push.urls", "PUSH_URLS")
	v.BindEnv("push.timeout", "PUSH_TIMEOUT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Reminders.ForwardDays < 1 {
		return fmt.Errorf("reminders.forwarddays must be at least 1")
	}

	if c.Reminders.SnoozeMinutes < 1 || c.Reminders.RemindLaterMinutes < 1 {
		return fmt.Errorf("reminders snooze durations must be positive")
	}

	if c.Reminders.DefaultFollowUpDelay < 0 {
		return fmt.Errorf("reminders.defaultfollowupdelay must not be negative")
	}

	if c.Reminders.RefreshInterval < time.Minute {
		return fmt.Errorf("reminders.refreshinterval must be at least one minute")
	}

	if _, _, err := model.ParseTimeOfDay(c.DailyCheckin.Time); err != nil {
		return fmt.Errorf("dailycheckin.time: %w", err)
	}

	if _, err := model.LoadLocation(c.DailyCheckin.Timezone); err != nil {
		return fmt.Errorf("dailycheckin.timezone: %w", err)
	}

	return nil
}
