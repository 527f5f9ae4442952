// Package cli translates the viper-backed configuration surface into wired
// grove components for the commands under cmd/grove.
package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/aretw0/grove"
	"github.com/aretw0/grove/internal/logging"
	"github.com/aretw0/grove/pkg/adapters/memory"
	redisstore "github.com/aretw0/grove/pkg/adapters/redis"
	"github.com/aretw0/grove/pkg/ports"
	"github.com/aretw0/grove/pkg/retrier"
)

// Config is the flattened flag/env configuration. Every field maps to a
// persistent flag and a GROVE_* environment variable.
type Config struct {
	Server          string        `mapstructure:"server"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retries         int           `mapstructure:"retries"`
	RetryBase       time.Duration `mapstructure:"retry-base"`
	RetryMultiplier float64       `mapstructure:"retry-multiplier"`
	RetryMaxDelay   time.Duration `mapstructure:"retry-max-delay"`
	Concurrency     int           `mapstructure:"concurrency"`
	LogLevel        string        `mapstructure:"log-level"`
	Redis           string        `mapstructure:"redis"`
}

// Load reads the configuration out of viper.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger builds the process logger from the configured level.
func (c Config) Logger() *slog.Logger {
	return logging.New(logging.ParseLevel(c.LogLevel))
}

// Store builds the session registry: Redis when an address is configured,
// in-process memory otherwise.
func (c Config) Store() ports.SessionStore {
	if c.Redis != "" {
		return redisstore.New(c.Redis, "", 0)
	}
	return memory.NewStore()
}

// Policy builds the retry policy.
func (c Config) Policy() retrier.Policy {
	return retrier.Policy{
		MaxAttempts: c.Retries,
		BaseDelay:   c.RetryBase,
		Multiplier:  c.RetryMultiplier,
		MaxDelay:    c.RetryMaxDelay,
	}
}

// NewClient wires a grove client from the configuration.
func (c Config) NewClient(logger *slog.Logger) (*grove.Client, error) {
	return grove.New(c.Server,
		grove.WithLogger(logger),
		grove.WithTimeout(c.Timeout),
		grove.WithRetryPolicy(c.Policy()),
		grove.WithConcurrency(c.Concurrency),
		grove.WithStore(c.Store()),
	)
}
