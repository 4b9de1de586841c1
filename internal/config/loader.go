package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STRATLAB_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment overrides. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STRATLAB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject DSNs and broker URLs at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Storage.PostgresDSN, "STRATLAB_POSTGRES_DSN")
	setStr(&cfg.Storage.ClickhouseDSN, "STRATLAB_CLICKHOUSE_DSN")
	setStr(&cfg.Notify.NATSUrl, "STRATLAB_NATS_URL")
	setStr(&cfg.Server.Addr, "STRATLAB_SERVER_ADDR")
	setStr(&cfg.LogLevel, "STRATLAB_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
