package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Auction   AuctionConfig   `yaml:"auction"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// SMTPConfig holds outbound email settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	// SendSpacing is the minimum delay between consecutive sends,
	// required by the provider's rate limits.
	SendSpacing time.Duration `yaml:"send_spacing"`
}

// AuctionConfig holds auction-specific settings.
type AuctionConfig struct {
	// CronSecret authenticates the external scheduler's close-check calls.
	CronSecret string `yaml:"cron_secret"`
	// AdminUser and AdminPassword guard the /admin endpoints (HTTP Basic).
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
	// AdminEmails receive the winners list when the auction closes.
	AdminEmails []string `yaml:"admin_emails"`
	// BaseURL is used to build links in outgoing emails.
	BaseURL string `yaml:"base_url"`
}

// RateLimitConfig holds bid-placement rate limit settings.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// SchedulerConfig holds the optional in-process close-check ticker
// settings, for deployments without an external cron.
type SchedulerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	LeaderElection LeaderConfig  `yaml:"leader_election"`
}

// LeaderConfig holds Kubernetes leader election settings.
type LeaderConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// Load reads a YAML configuration file from the given path. Secrets may
// additionally come from the environment (or a .env file next to the
// working directory), which takes precedence over the YAML values.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		SMTP: SMTPConfig{
			Port:        587,
			SendSpacing: 800 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 30,
			Window:      time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: time.Minute,
			LeaderElection: LeaderConfig{
				Enabled:        false,
				LeaseName:      "auctiond-leader",
				LeaseNamespace: "default",
				LeaseDuration:  15 * time.Second,
				RenewDeadline:  10 * time.Second,
				RetryPeriod:    2 * time.Second,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	overlayEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// overlayEnv applies secret values from the environment so they can be
// kept out of the config file.
func overlayEnv(cfg *Config) {
	if v := os.Getenv("AUCTION_CRON_SECRET"); v != "" {
		cfg.Auction.CronSecret = v
	}
	if v := os.Getenv("AUCTION_ADMIN_PASSWORD"); v != "" {
		cfg.Auction.AdminPassword = v
	}
	if v := os.Getenv("AUCTION_SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("AUCTION_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Auction.CronSecret == "" {
		return fmt.Errorf("auction.cron_secret must be set")
	}
	if c.Auction.AdminUser == "" || c.Auction.AdminPassword == "" {
		return fmt.Errorf("auction.admin_user and auction.admin_password must be set")
	}
	if c.SMTP.SendSpacing < 0 {
		return fmt.Errorf("smtp.send_spacing must not be negative")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive when the scheduler is enabled")
	}
	return nil
}
