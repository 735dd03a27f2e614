package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stepweaver/silent-auction/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
server:
  port: 9090
database:
  host: "db.example.com"
  port: 5433
  user: "auction"
  password: "secret"
  dbname: "auction"
  sslmode: "require"
smtp:
  host: "smtp.example.com"
  username: "mailer"
  password: "mailpass"
  from: "auction@example.com"
auction:
  cron_secret: "cron-secret"
  admin_user: "admin"
  admin_password: "hunter2"
  admin_emails: ["ops@example.com"]
telemetry:
  service_name: "my-auction"
  otlp_endpoint: "localhost:4318"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Telemetry.ServiceName != "my-auction" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-auction")
				}
				if len(cfg.Auction.AdminEmails) != 1 || cfg.Auction.AdminEmails[0] != "ops@example.com" {
					t.Errorf("got admin emails %v, want [ops@example.com]", cfg.Auction.AdminEmails)
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
auction:
  cron_secret: "s"
  admin_user: "admin"
  admin_password: "p"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Host != "localhost" {
					t.Errorf("got db host %q, want %q", cfg.Database.Host, "localhost")
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				if cfg.SMTP.SendSpacing != 800*time.Millisecond {
					t.Errorf("got send spacing %v, want 800ms", cfg.SMTP.SendSpacing)
				}
				if cfg.RateLimit.MaxRequests != 30 {
					t.Errorf("got max requests %d, want 30", cfg.RateLimit.MaxRequests)
				}
				if cfg.Telemetry.ServiceName != "auctiond" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "auctiond")
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "missing cron secret rejected",
			yaml: `
auction:
  admin_user: "admin"
  admin_password: "p"
`,
			wantErr: true,
		},
		{
			name: "missing admin credentials rejected",
			yaml: `
auction:
  cron_secret: "s"
`,
			wantErr: true,
		},
		{
			name: "scheduler without interval rejected",
			yaml: `
auction:
  cron_secret: "s"
  admin_user: "admin"
  admin_password: "p"
scheduler:
  enabled: true
  interval: 0s
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("AUCTION_CRON_SECRET", "from-env")
	t.Setenv("AUCTION_SMTP_PASSWORD", "env-mail-pass")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
auction:
  cron_secret: "from-file"
  admin_user: "admin"
  admin_password: "p"
smtp:
  password: "file-mail-pass"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auction.CronSecret != "from-env" {
		t.Errorf("got cron secret %q, want env override", cfg.Auction.CronSecret)
	}
	if cfg.SMTP.Password != "env-mail-pass" {
		t.Errorf("got smtp password %q, want env override", cfg.SMTP.Password)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "auction",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=auction sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
