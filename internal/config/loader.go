package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PADDOCK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PADDOCK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "PADDOCK_DATABASE_DSN")
	setStr(&cfg.Database.Host, "PADDOCK_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PADDOCK_DATABASE_PORT")
	setStr(&cfg.Database.Database, "PADDOCK_DATABASE_NAME")
	setStr(&cfg.Database.User, "PADDOCK_DATABASE_USER")
	setStr(&cfg.Database.Password, "PADDOCK_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PADDOCK_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "PADDOCK_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PADDOCK_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "PADDOCK_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PADDOCK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PADDOCK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PADDOCK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PADDOCK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PADDOCK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PADDOCK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PADDOCK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PADDOCK_S3_REGION")
	setStr(&cfg.S3.Bucket, "PADDOCK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PADDOCK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PADDOCK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PADDOCK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PADDOCK_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setInt64(&cfg.Engine.CommissionBps, "PADDOCK_ENGINE_COMMISSION_BPS")
	setDuration(&cfg.Engine.CollectWindow, "PADDOCK_ENGINE_COLLECT_WINDOW")
	setDuration(&cfg.Engine.ClosingWindow, "PADDOCK_ENGINE_CLOSING_WINDOW")
	setDuration(&cfg.Engine.SchedulerInterval, "PADDOCK_ENGINE_SCHEDULER_INTERVAL")
	setInt(&cfg.Engine.OrderRateLimit, "PADDOCK_ENGINE_ORDER_RATE_LIMIT")
	setDuration(&cfg.Engine.OrderRateWindow, "PADDOCK_ENGINE_ORDER_RATE_WINDOW")

	// ── Risk ──
	setInt64(&cfg.Risk.MaxPositionPerOffering, "PADDOCK_RISK_MAX_POSITION_PER_OFFERING")
	setInt64(&cfg.Risk.MaxPositionValueCents, "PADDOCK_RISK_MAX_POSITION_VALUE_CENTS")
	setInt64(&cfg.Risk.MaxTotalExposureCents, "PADDOCK_RISK_MAX_TOTAL_EXPOSURE_CENTS")
	setInt64(&cfg.Risk.MaxOrderValueCents, "PADDOCK_RISK_MAX_ORDER_VALUE_CENTS")
	setInt64(&cfg.Risk.MaxOrderShares, "PADDOCK_RISK_MAX_ORDER_SHARES")
	setInt64(&cfg.Risk.DailyTradeLimit, "PADDOCK_RISK_DAILY_TRADE_LIMIT")
	setInt64(&cfg.Risk.DailyVolumeLimitCents, "PADDOCK_RISK_DAILY_VOLUME_LIMIT_CENTS")

	// ── Auction ──
	setInt(&cfg.Auction.BidRateLimit, "PADDOCK_AUCTION_BID_RATE_LIMIT")
	setDuration(&cfg.Auction.BidRateWindow, "PADDOCK_AUCTION_BID_RATE_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PADDOCK_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "PADDOCK_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "PADDOCK_ARCHIVE_RETENTION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PADDOCK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PADDOCK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PADDOCK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PADDOCK_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "PADDOCK_MODE")
	setStr(&cfg.LogLevel, "PADDOCK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
