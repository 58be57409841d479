// Package config loads service configuration from an optional config file
// and RENTCHAIN_-prefixed environment variables. Environment wins.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Store        string        `mapstructure:"store"` // mem or pg
	PGDSN        string        `mapstructure:"pg_dsn"`
	SeedDemo     bool          `mapstructure:"seed_demo"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	RateRPS      float64       `mapstructure:"rate_rps"`
	RateBurst    int           `mapstructure:"rate_burst"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Load reads configuration. A config file is optional; when path is empty,
// ./config.yaml is tried and silently skipped if absent.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("store", "mem")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("seed_demo", true)
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("rate_rps", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("cors_origin", "*")
	v.SetDefault("max_body_bytes", int64(1<<20))
	v.SetDefault("read_timeout", 10*time.Second)
	v.SetDefault("write_timeout", 20*time.Second)
	v.SetDefault("idle_timeout", 60*time.Second)

	v.SetEnvPrefix("RENTCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "mem", "pg":
	default:
		return fmt.Errorf("store must be mem or pg, got %q", c.Store)
	}
	if c.Store == "pg" && c.PGDSN == "" {
		return fmt.Errorf("pg store requires RENTCHAIN_PG_DSN")
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}
