package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tuannm99/novaorm"
)

var ErrMissingDatabaseURL = errors.New("config: database_url is not set")

type Config struct {
	AppName     string `mapstructure:"app_name"`
	DatabaseURL string `mapstructure:"database_url"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Pool struct {
		MaxOpen        int           `mapstructure:"max_open"`
		MaxIdle        int           `mapstructure:"max_idle"`
		AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
		DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	} `mapstructure:"pool"`

	Store struct {
		Addr     string `mapstructure:"addr"`
		Database string `mapstructure:"database"`
	} `mapstructure:"store"`

	Log LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"app_name":             "novaorm",
	"database_url":         "",
	"http.addr":            ":3000",
	"pool.max_open":        10,
	"pool.max_idle":        2,
	"pool.acquire_timeout": time.Duration(0),
	"pool.dial_timeout":    5 * time.Second,
	"store.addr":           "127.0.0.1:8866",
	"store.database":       "novasql",
	"log.level":            "info",
	"log.format":           "text",
}

// Load reads configuration with this precedence, highest first:
// environment variables, the YAML file at path (optional), defaults.
// Variables from envFiles (".env" when none are given) are exported first
// without overriding the real environment.
//
// Environment names are the keys upper-cased with '.' as '_' and a NOVA_
// prefix (NOVA_HTTP_ADDR); DATABASE_URL is also read unprefixed.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := loadDotEnv(f); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database_url", "DATABASE_URL", "NOVA_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv exports KEY=VALUE pairs from path. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

// RequireDatabaseURL fails when no connection string was configured.
func (c *Config) RequireDatabaseURL() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func (c *Config) PoolOptions() novaorm.Options {
	opts := novaorm.DefaultOptions()
	opts.MaxOpen = c.Pool.MaxOpen
	opts.MaxIdle = c.Pool.MaxIdle
	opts.AcquireTimeout = c.Pool.AcquireTimeout
	opts.DialTimeout = c.Pool.DialTimeout
	return opts
}

// NewLogger builds a slog logger writing to w. Unknown levels fall back to info.
func NewLogger(lc LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(h)
}
