// Package config loads the market engine's runtime configuration.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional TOML file, a .env file in the working directory, and PAMM_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/processor"
	"github.com/atmx/prediction-amm/internal/safemath"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	NATS       NATSConfig       `toml:"nats"`
	Engine     EngineConfig     `toml:"engine"`
	Ticker     TickerConfig     `toml:"ticker"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	LogLevel   string           `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port         int      `toml:"port"`
	ReadTimeout  duration `toml:"read_timeout"`
	WriteTimeout duration `toml:"write_timeout"`
	IdleTimeout  duration `toml:"idle_timeout"`

	// TxToken is the bearer token POST /api/v1/tx requires. Empty leaves
	// the route open, which Validate allows only without a database.
	TxToken string `toml:"tx_token"`
}

// DatabaseConfig selects PostgreSQL. An empty DSN means in-memory storage.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig enables the read-through cache in front of PostgreSQL.
type RedisConfig struct {
	URL string   `toml:"url"`
	TTL duration `toml:"ttl"`
}

// NATSConfig enables the JetStream event publisher. An empty URL disables it.
type NATSConfig struct {
	URL           string   `toml:"url"`
	Stream        string   `toml:"stream"`
	SubjectPrefix string   `toml:"subject_prefix"`
	MaxAge        duration `toml:"max_age"`
	BufferSize    int      `toml:"buffer_size"`
}

// EngineConfig parameterizes transaction processing.
type EngineConfig struct {
	AdminPubkey           string `toml:"admin_pubkey"` // 64 hex digits
	InitialBalance        uint64 `toml:"initial_balance"`
	FeeRate               uint64 `toml:"fee_rate"`
	FeeBasis              uint64 `toml:"fee_basis"`
	EnforceResolutionTime bool   `toml:"enforce_resolution_time"`
}

// TickerConfig drives the admin clock from inside the server.
type TickerConfig struct {
	Auto     bool     `toml:"auto"`
	Interval duration `toml:"interval"`
}

// CheckpointConfig sets when the world is persisted.
type CheckpointConfig struct {
	Ticks               uint64 `toml:"ticks"`
	TxThreshold         uint64 `toml:"tx_threshold"`
	SettlementThreshold int    `toml:"settlement_threshold"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config suitable for local development.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  duration{10 * time.Second},
			WriteTimeout: duration{10 * time.Second},
			IdleTimeout:  duration{60 * time.Second},
		},
		Database: DatabaseConfig{RunMigrations: true},
		Redis:    RedisConfig{TTL: duration{30 * time.Second}},
		NATS: NATSConfig{
			Stream:        "PAMM_EVENTS",
			SubjectPrefix: "pamm",
			MaxAge:        duration{7 * 24 * time.Hour},
			BufferSize:    1024,
		},
		Engine: EngineConfig{
			InitialBalance: processor.DefaultInitialBalance,
			FeeRate:        safemath.DefaultFeeRate,
			FeeBasis:       safemath.FeeBasisPoints,
		},
		Ticker: TickerConfig{Interval: duration{5 * time.Second}},
		Checkpoint: CheckpointConfig{
			Ticks:               processor.DefaultCheckpointTicks,
			TxThreshold:         processor.DefaultTxSizeThreshold,
			SettlementThreshold: processor.DefaultSettlementThreshold,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if _, err := model.ParsePublicKey(c.Engine.AdminPubkey); err != nil {
		errs = append(errs, "engine.admin_pubkey: "+err.Error())
	}
	if c.Engine.FeeBasis == 0 {
		errs = append(errs, "engine.fee_basis must be positive")
	} else if c.Engine.FeeRate > c.Engine.FeeBasis {
		errs = append(errs, "engine.fee_rate must not exceed engine.fee_basis")
	}
	if c.Ticker.Auto && c.Ticker.Interval.Duration <= 0 {
		errs = append(errs, "ticker.interval must be positive when ticker.auto is set")
	}
	if c.Checkpoint.Ticks == 0 || c.Checkpoint.TxThreshold == 0 || c.Checkpoint.SettlementThreshold <= 0 {
		errs = append(errs, "checkpoint thresholds must be positive")
	}
	if c.Database.DSN != "" && c.Server.TxToken == "" {
		errs = append(errs, "server.tx_token is required with database.dsn")
	}
	if c.Redis.URL != "" && c.Database.DSN == "" {
		errs = append(errs, "redis.url requires database.dsn")
	}
	if c.NATS.URL != "" && (c.NATS.Stream == "" || c.NATS.SubjectPrefix == "") {
		errs = append(errs, "nats.stream and nats.subject_prefix are required with nats.url")
	}

	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// Processor converts the engine and checkpoint sections. It assumes
// Validate has passed.
func (c *Config) Processor() processor.Config {
	key, _ := model.ParsePublicKey(c.Engine.AdminPubkey)
	return processor.Config{
		AdminKey:              key,
		InitialBalance:        c.Engine.InitialBalance,
		FeeRate:               c.Engine.FeeRate,
		FeeBasis:              c.Engine.FeeBasis,
		EnforceResolutionTime: c.Engine.EnforceResolutionTime,
		CheckpointTicks:       c.Checkpoint.Ticks,
		TxSizeThreshold:       c.Checkpoint.TxThreshold,
		SettlementThreshold:   c.Checkpoint.SettlementThreshold,
	}
}
