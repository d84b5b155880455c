// Package config defines the top-level configuration for the trading
// platform and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PADDOCK_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	Risk     RiskConfig     `toml:"risk"`
	Auction  AuctionConfig  `toml:"auction"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EngineConfig holds matching engine and trading session parameters.
type EngineConfig struct {
	// CommissionBps is the per-side commission in basis points of notional.
	CommissionBps int64 `toml:"commission_bps"`
	// CollectWindow is how long before trading opens that an offering starts
	// accepting orders for the opening cross.
	CollectWindow duration `toml:"collect_window"`
	// ClosingWindow is how long the closing call auction collects orders
	// after continuous trading ends.
	ClosingWindow duration `toml:"closing_window"`
	// SchedulerInterval is how often offering lifecycle transitions are
	// checked.
	SchedulerInterval duration `toml:"scheduler_interval"`
	// OrderRateLimit caps order submissions per user per window; zero
	// disables the limiter.
	OrderRateLimit  int      `toml:"order_rate_limit"`
	OrderRateWindow duration `toml:"order_rate_window"`
}

// RiskConfig holds the default per-user risk limits applied when a user has
// no stored limits yet. Zero disables the corresponding check.
type RiskConfig struct {
	MaxPositionPerOffering int64 `toml:"max_position_per_offering"`
	MaxPositionValueCents  int64 `toml:"max_position_value_cents"`
	MaxTotalExposureCents  int64 `toml:"max_total_exposure_cents"`
	MaxOrderValueCents     int64 `toml:"max_order_value_cents"`
	MaxOrderShares         int64 `toml:"max_order_shares"`
	DailyTradeLimit        int64 `toml:"daily_trade_limit"`
	DailyVolumeLimitCents  int64 `toml:"daily_volume_limit_cents"`
}

// AuctionConfig holds live auction parameters.
type AuctionConfig struct {
	// BidRateLimit caps bids per user per window; zero disables the limiter.
	BidRateLimit  int      `toml:"bid_rate_limit"`
	BidRateWindow duration `toml:"bid_rate_window"`
}

// ArchiveConfig holds cold-storage sweep parameters.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	Retention duration `toml:"retention"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "paddock",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "paddock-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			CommissionBps:     25,
			CollectWindow:     duration{15 * time.Minute},
			ClosingWindow:     duration{5 * time.Minute},
			SchedulerInterval: duration{time.Second},
			OrderRateLimit:    30,
			OrderRateWindow:   duration{time.Minute},
		},
		Risk: RiskConfig{
			MaxPositionPerOffering: 500,
			MaxPositionValueCents:  5_000_000,
			MaxTotalExposureCents:  20_000_000,
			MaxOrderValueCents:     1_000_000,
			MaxOrderShares:         1_000,
			DailyTradeLimit:        200,
			DailyVolumeLimitCents:  10_000_000,
		},
		Auction: AuctionConfig{
			BidRateLimit:  10,
			BidRateWindow: duration{10 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:   false,
			Interval:  duration{time.Hour},
			Retention: duration{90 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trading":  true,
	"auctions": true,
	"archive":  true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trading, auctions, archive, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when archival is enabled.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be > 0")
		}
	}

	// Engine
	if c.Engine.CommissionBps < 0 {
		errs = append(errs, "engine: commission_bps must be >= 0")
	}
	if c.Engine.CollectWindow.Duration < 0 {
		errs = append(errs, "engine: collect_window must be >= 0")
	}
	if c.Engine.ClosingWindow.Duration <= 0 {
		errs = append(errs, "engine: closing_window must be > 0")
	}
	if c.Engine.SchedulerInterval.Duration <= 0 {
		errs = append(errs, "engine: scheduler_interval must be > 0")
	}
	if c.Engine.OrderRateLimit > 0 && c.Engine.OrderRateWindow.Duration <= 0 {
		errs = append(errs, "engine: order_rate_window must be > 0 when order_rate_limit is set")
	}

	// Risk limits may be zero (disabled) but never negative.
	if c.Risk.MaxPositionPerOffering < 0 || c.Risk.MaxPositionValueCents < 0 ||
		c.Risk.MaxTotalExposureCents < 0 || c.Risk.MaxOrderValueCents < 0 ||
		c.Risk.MaxOrderShares < 0 || c.Risk.DailyTradeLimit < 0 ||
		c.Risk.DailyVolumeLimitCents < 0 {
		errs = append(errs, "risk: limits must be >= 0 (zero disables a check)")
	}

	// Auction
	if c.Auction.BidRateLimit > 0 && c.Auction.BidRateWindow.Duration <= 0 {
		errs = append(errs, "auction: bid_rate_window must be > 0 when bid_rate_limit is set")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
