package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/pmr/internal/logger"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. PMR_LOG_LEVEL.
const EnvPrefix = "PMR"

// Settings is the supervisor configuration read from <home>/config.toml
// with PMR_* environment overrides.
type Settings struct {
	Home    string        `mapstructure:"-"`
	Log     logger.Config `mapstructure:"log"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tail    TailConfig    `mapstructure:"tail"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	// Textfile is where registry gauges are written for node_exporter's
	// textfile collector. Empty disables the export.
	Textfile string `mapstructure:"textfile"`
}

type TailConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// RegistryPath is the registry document inside home.
func (s Settings) RegistryPath() string { return filepath.Join(s.Home, "dump.json") }

// LogDir is where per-record output files live.
func (s Settings) LogDir() string { return filepath.Join(s.Home, "logs") }

// ResolveHome picks the state directory: explicit flag, then PMR_HOME, then
// ~/.pmr.
func ResolveHome(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvPrefix + "_HOME"); env != "" {
		return filepath.Abs(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory not found: %w", err)
	}
	return filepath.Join(home, ".pmr"), nil
}

// Load reads settings for home. A missing config.toml is fine; a broken one
// is an error.
func Load(home string) (Settings, error) {
	v := viper.New()
	setDefaults(v, home)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(home, "config.toml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, &ParseError{Path: path, Err: err}
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, &ParseError{Path: path, Err: err}
	}
	s.Home = home
	return s, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.color", true)
	v.SetDefault("log.show_time", false)
	v.SetDefault("log.file.path", filepath.Join(home, "pmr.log"))
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "sqlite://"+filepath.Join(home, "history.db"))
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tail.poll_interval", logger.DefaultPollInterval)
}
