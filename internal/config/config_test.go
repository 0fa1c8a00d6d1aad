package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "0000000000000001000000000000000200000000000000030000000000000004"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Engine.FeeRate != 100 || cfg.Engine.FeeBasis != 10000 {
		t.Errorf("defaults = %+v", cfg)
	}
	// No admin key configured.
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "admin_pubkey") {
		t.Errorf("Validate = %v, want admin_pubkey error", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	body := `
log_level = "debug"

[server]
port = 9090
read_timeout = "3s"
tx_token = "from-file"

[engine]
admin_pubkey = "` + testKey + `"
initial_balance = 500
enforce_resolution_time = true

[ticker]
auto = true
interval = "250ms"

[checkpoint]
ticks = 10
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAMM_ENGINE_FEE_RATE", "50")
	t.Setenv("PAMM_SERVER_PORT", "9191")
	t.Setenv("PAMM_SERVER_TX_TOKEN", "s3cret")
	t.Setenv("PAMM_CHECKPOINT_TX_THRESHOLD", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, env must win over file", cfg.Server.Port)
	}
	if cfg.Server.TxToken != "s3cret" {
		t.Errorf("tx token = %q, env must win over file", cfg.Server.TxToken)
	}
	if cfg.Server.ReadTimeout.Duration != 3*time.Second || cfg.Server.WriteTimeout.Duration != 10*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Ticker.Interval.Duration != 250*time.Millisecond || !cfg.Ticker.Auto {
		t.Errorf("ticker = %+v", cfg.Ticker)
	}
	if cfg.Checkpoint.TxThreshold != 40 {
		t.Errorf("unparseable override applied: tx threshold %d", cfg.Checkpoint.TxThreshold)
	}

	pc := cfg.Processor()
	if pc.AdminKey[0] != 1 || pc.AdminKey[3] != 4 {
		t.Errorf("admin key = %v", pc.AdminKey)
	}
	if pc.FeeRate != 50 || pc.InitialBalance != 500 || !pc.EnforceResolutionTime || pc.CheckpointTicks != 10 {
		t.Errorf("processor config = %+v", pc)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"fee basis", func(c *Config) { c.Engine.FeeBasis = 0 }, "fee_basis"},
		{"fee rate", func(c *Config) { c.Engine.FeeRate = 20000 }, "fee_rate"},
		{"ticker", func(c *Config) { c.Ticker.Auto = true; c.Ticker.Interval.Duration = 0 }, "ticker.interval"},
		{"checkpoint", func(c *Config) { c.Checkpoint.Ticks = 0 }, "checkpoint"},
		{"db without tx token", func(c *Config) { c.Database.DSN = "postgres://localhost/pamm" }, "server.tx_token"},
		{"redis without db", func(c *Config) { c.Redis.URL = "redis://localhost:6379" }, "redis.url"},
		{"nats stream", func(c *Config) { c.NATS.URL = "nats://localhost:4222"; c.NATS.Stream = "" }, "nats.stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Engine.AdminPubkey = testKey
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want mention of %q", err, tt.want)
			}
		})
	}

	cfg := Defaults()
	cfg.Engine.AdminPubkey = testKey
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
