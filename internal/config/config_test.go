package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v, want nil", err)
	}
	if cfg.Mode != "full" {
		t.Errorf("Mode = %q, want full", cfg.Mode)
	}
	if cfg.Engine.CommissionBps != 25 {
		t.Errorf("CommissionBps = %d, want 25", cfg.Engine.CommissionBps)
	}
	if cfg.Risk.MaxPositionPerOffering != 500 {
		t.Errorf("MaxPositionPerOffering = %d, want 500", cfg.Risk.MaxPositionPerOffering)
	}
	if cfg.Archive.Enabled {
		t.Error("Archive.Enabled = true, want disabled by default")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backfill"
	cfg.LogLevel = "verbose"
	cfg.Server.Port = 0
	cfg.Risk.MaxOrderShares = -1
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{
		`unknown mode "backfill"`,
		`unknown log_level "verbose"`,
		"server: port must be 1-65535",
		"risk: limits must be >= 0",
		"s3: bucket must not be empty",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Database.DSN = "postgres://user:pass@db:5432/paddock"
	cfg.Database.Host = ""
	cfg.Database.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with DSN = %v, want nil", err)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "trading"

[engine]
commission_bps = 50
collect_window = "10m"

[risk]
max_order_shares = 250
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "trading" {
		t.Errorf("Mode = %q, want trading", cfg.Mode)
	}
	if cfg.Engine.CommissionBps != 50 {
		t.Errorf("CommissionBps = %d, want 50", cfg.Engine.CommissionBps)
	}
	if cfg.Engine.CollectWindow.Duration != 10*time.Minute {
		t.Errorf("CollectWindow = %v, want 10m", cfg.Engine.CollectWindow.Duration)
	}
	if cfg.Risk.MaxOrderShares != 250 {
		t.Errorf("MaxOrderShares = %d, want 250", cfg.Risk.MaxOrderShares)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.ClosingWindow.Duration != 5*time.Minute {
		t.Errorf("ClosingWindow = %v, want default 5m", cfg.Engine.ClosingWindow.Duration)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mode = "trading"

[server]
port = 9000
`)
	t.Setenv("PADDOCK_MODE", "auctions")
	t.Setenv("PADDOCK_SERVER_PORT", "9443")
	t.Setenv("PADDOCK_ENGINE_CLOSING_WINDOW", "2m")
	t.Setenv("PADDOCK_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PADDOCK_DATABASE_RUN_MIGRATIONS", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "auctions" {
		t.Errorf("Mode = %q, want auctions", cfg.Mode)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("Server.Port = %d, want 9443", cfg.Server.Port)
	}
	if cfg.Engine.ClosingWindow.Duration != 2*time.Minute {
		t.Errorf("ClosingWindow = %v, want 2m", cfg.Engine.ClosingWindow.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	if cfg.Database.RunMigrations {
		t.Error("RunMigrations = true, want env override to false")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
[engine]
collect_window = "soon"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load with bad duration = nil, want error")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.DSN = "postgres://user:hunter2@db/paddock"
	cfg.Database.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "hunter2"
	cfg.Server.APIKey = "hunter2"

	red := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"Database.DSN":      red.Database.DSN,
		"Database.Password": red.Database.Password,
		"Redis.Password":    red.Redis.Password,
		"S3.AccessKey":      red.S3.AccessKey,
		"S3.SecretKey":      red.S3.SecretKey,
		"Server.APIKey":     red.Server.APIKey,
	} {
		if got != redactedPlaceholder {
			t.Errorf("%s = %q, want %q", name, got, redactedPlaceholder)
		}
	}
	// The original is untouched.
	if cfg.Database.Password != "hunter2" {
		t.Errorf("original Password = %q, want hunter2", cfg.Database.Password)
	}
	// Non-secret fields survive.
	if red.Database.Host != cfg.Database.Host || red.Server.Port != cfg.Server.Port {
		t.Error("redaction altered non-secret fields")
	}
}
