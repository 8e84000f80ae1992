package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/tithe/internal/common"
)

// Configuration keys.
const (
	KeyDatabasePath = "database.path"
	KeyLogLevel     = "logging.level"
	KeyLogFormat    = "logging.format"
	KeyBaseCurrency = "ledger.base_currency"
	KeyRunLogLimit  = "ledger.run_log_limit"
	KeyChunkSize    = "rules.chunk_size"
)

// EnvPrefix namespaces environment overrides, e.g. TITHE_DATABASE_PATH.
const EnvPrefix = "TITHE"

// Config is the resolved application configuration.
type Config struct {
	DatabasePath string
	LogLevel     string
	LogFormat    string
	BaseCurrency string
	RunLogLimit  int
	ChunkSize    int
}

// DefaultDatabasePath returns where the ledger database lives by default.
func DefaultDatabasePath() string {
	return ExpandPath("~/.local/share/tithe/tithe.db")
}

// DefaultConfigDir returns the directory searched for config.yaml.
func DefaultConfigDir() string {
	return ExpandPath("~/.config/tithe")
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyBaseCurrency, "GBP")
	v.SetDefault(KeyRunLogLimit, 50)
	v.SetDefault(KeyChunkSize, 500)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabasePath: ExpandPath(v.GetString(KeyDatabasePath)),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		BaseCurrency: strings.ToUpper(strings.TrimSpace(v.GetString(KeyBaseCurrency))),
		RunLogLimit:  v.GetInt(KeyRunLogLimit),
		ChunkSize:    v.GetInt(KeyChunkSize),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.DatabasePath == "":
		return fmt.Errorf("%s is empty: %w", KeyDatabasePath, common.ErrMissingConfig)
	case len(c.BaseCurrency) != 3:
		return fmt.Errorf("%s %q is not a currency code: %w", KeyBaseCurrency, c.BaseCurrency, common.ErrInvalidConfig)
	case c.RunLogLimit <= 0:
		return fmt.Errorf("%s must be positive: %w", KeyRunLogLimit, common.ErrInvalidConfig)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%s must be positive: %w", KeyChunkSize, common.ErrInvalidConfig)
	}
	return nil
}

// EnsureDatabaseDir creates the directory holding the database file.
func (c Config) EnsureDatabaseDir() error {
	if err := os.MkdirAll(filepath.Dir(c.DatabasePath), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
