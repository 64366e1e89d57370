package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is everything the ordertrack process reads from the environment.
// A .env file in the working directory is loaded first if present.
type Config struct {
	DataDir      string // default "./data"
	SnapshotFile string // default "orders.json", relative to DataDir
	TickerTable  string // default "ticker_table.csv", relative to DataDir

	NATSURL     string // default nats://localhost:4222
	FeedEnabled bool

	PostgresDSN    string
	ArchiveEnabled bool

	MetricsAddr string // default ":9091"

	AlpacaAPIKeyID string
	AlpacaSecret   string
	AlpacaPaper    bool
}

func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, c.SnapshotFile)
}

func (c *Config) TickerTablePath() string {
	return filepath.Join(c.DataDir, c.TickerTable)
}

// BridgeConfigured reports whether execution credentials are present.
func (c *Config) BridgeConfigured() bool {
	return c.AlpacaAPIKeyID != "" && c.AlpacaSecret != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:      getEnvDefault("OTRACK_DATA_DIR", "./data"),
		SnapshotFile: getEnvDefault("OTRACK_SNAPSHOT_FILE", "orders.json"),
		TickerTable:  getEnvDefault("OTRACK_TICKER_TABLE", "ticker_table.csv"),

		NATSURL:     getEnvDefault("OTRACK_NATS_URL", "nats://localhost:4222"),
		FeedEnabled: getEnvBool("OTRACK_FEED_ENABLED"),

		PostgresDSN:    os.Getenv("OTRACK_POSTGRES_DSN"),
		ArchiveEnabled: getEnvBool("OTRACK_ARCHIVE_ENABLED"),

		MetricsAddr: getEnvDefault("OTRACK_METRICS_ADDR", ":9091"),

		AlpacaAPIKeyID: os.Getenv("ALPACA_API_KEY_ID"),
		AlpacaSecret:   os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaPaper:    getEnvBoolDefault("ALPACA_PAPER", true),
	}

	if cfg.ArchiveEnabled && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("OTRACK_POSTGRES_DSN is required when OTRACK_ARCHIVE_ENABLED is set")
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	default:
		return false
	}
}

func getEnvBoolDefault(key string, def bool) bool {
	if os.Getenv(key) == "" {
		return def
	}
	return getEnvBool(key)
}
