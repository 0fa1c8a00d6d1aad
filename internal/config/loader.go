package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) on top of
// the defaults and applies environment overrides. The result is not
// validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads PAMM_* variables, plus the PORT, DATABASE_URL and
// REDIS_URL names common to hosting platforms.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "PAMM_SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "PAMM_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "PAMM_SERVER_WRITE_TIMEOUT")
	setStr(&cfg.Server.TxToken, "PAMM_SERVER_TX_TOKEN")

	// ── Storage ──
	setStr(&cfg.Database.DSN, "DATABASE_URL")
	setStr(&cfg.Database.DSN, "PAMM_DATABASE_DSN")
	setBool(&cfg.Database.RunMigrations, "PAMM_DATABASE_RUN_MIGRATIONS")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Redis.URL, "PAMM_REDIS_URL")
	setDuration(&cfg.Redis.TTL, "PAMM_REDIS_TTL")

	// ── NATS ──
	setStr(&cfg.NATS.URL, "PAMM_NATS_URL")
	setStr(&cfg.NATS.Stream, "PAMM_NATS_STREAM")
	setStr(&cfg.NATS.SubjectPrefix, "PAMM_NATS_SUBJECT_PREFIX")

	// ── Engine ──
	setStr(&cfg.Engine.AdminPubkey, "PAMM_ENGINE_ADMIN_PUBKEY")
	setUint64(&cfg.Engine.InitialBalance, "PAMM_ENGINE_INITIAL_BALANCE")
	setUint64(&cfg.Engine.FeeRate, "PAMM_ENGINE_FEE_RATE")
	setUint64(&cfg.Engine.FeeBasis, "PAMM_ENGINE_FEE_BASIS")
	setBool(&cfg.Engine.EnforceResolutionTime, "PAMM_ENGINE_ENFORCE_RESOLUTION_TIME")

	// ── Ticker / checkpoints ──
	setBool(&cfg.Ticker.Auto, "PAMM_TICKER_AUTO")
	setDuration(&cfg.Ticker.Interval, "PAMM_TICKER_INTERVAL")
	setUint64(&cfg.Checkpoint.Ticks, "PAMM_CHECKPOINT_TICKS")
	setUint64(&cfg.Checkpoint.TxThreshold, "PAMM_CHECKPOINT_TX_THRESHOLD")
	setInt(&cfg.Checkpoint.SettlementThreshold, "PAMM_CHECKPOINT_SETTLEMENT_THRESHOLD")

	setStr(&cfg.LogLevel, "PAMM_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.

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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
