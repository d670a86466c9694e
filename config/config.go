package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config é um pacote auxiliar. Poderia ser uma lib externa */

type Config struct {
	Port string `mapstructure:"PORT"`

	// Subscriptions file consumed by the subscription loader
	WebhooksFile string `mapstructure:"WEBHOOKS_FILE"`

	// Redis-backed job store; empty addr falls back to the in-memory store
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Postgres delivery log; empty DSN falls back to the in-memory tracker
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	// Worker pool tunables
	Workers   int `mapstructure:"WORKERS"`
	QueueSize int `mapstructure:"QUEUE_SIZE"`

	// Retry backoff window in milliseconds
	RetryBaseMs int `mapstructure:"RETRY_BASE_MS"`
	RetryCapMs  int `mapstructure:"RETRY_CAP_MS"`

	// Graceful shutdown drain bound in seconds
	DrainTimeoutSec int `mapstructure:"DRAIN_TIMEOUT_SEC"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("WEBHOOKS_FILE", "webhooks.yaml")
	viper.SetDefault("WORKERS", 4)
	viper.SetDefault("QUEUE_SIZE", 64)
	viper.SetDefault("RETRY_BASE_MS", 500)
	viper.SetDefault("RETRY_CAP_MS", 60000)
	viper.SetDefault("DRAIN_TIMEOUT_SEC", 10)

	if err := viper.ReadInConfig(); err != nil {
		// the .env file is optional; environment variables still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// RetryBase returns the backoff base as a duration
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMs) * time.Millisecond
}

// RetryCap returns the backoff cap as a duration
func (c *Config) RetryCap() time.Duration {
	return time.Duration(c.RetryCapMs) * time.Millisecond
}

// DrainTimeout returns the shutdown drain bound as a duration
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSec) * time.Second
}
