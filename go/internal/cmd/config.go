package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/dynasty-draft/go/internal/draft/orchestrator"
	"gopkg.in/yaml.v3"
)

// Config is the server's file configuration. Environment variables override
// individual fields after the file is read.
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	Store       StoreConfig       `yaml:"store"`
	Projection  ProjectionConfig  `yaml:"projection"`
	Recommender RecommenderConfig `yaml:"recommender"`
}

// EngineConfig tunes the orchestrator.
type EngineConfig struct {
	Workers           int           `yaml:"workers"`
	WorkQueueSize     int           `yaml:"work_queue_size"`
	ThinkDelayMin     time.Duration `yaml:"think_delay_min"`
	ThinkDelayMax     time.Duration `yaml:"think_delay_max"`
	ResolveTimeout    time.Duration `yaml:"resolve_timeout"`
	MaxForceAttempts  int           `yaml:"max_force_attempts"`
	ForceRetryBackoff time.Duration `yaml:"force_retry_backoff"`
	SinkMaxRetries    int           `yaml:"sink_max_retries"`
	SinkRetryDelay    time.Duration `yaml:"sink_retry_delay"`
	FlushTimeout      time.Duration `yaml:"flush_timeout"`
	Seed              int64         `yaml:"seed"`
}

// StoreConfig selects where picks and player pools live: "memory" or
// "postgres".
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	NotifyChannel string `yaml:"notify_channel"`
}

// ProjectionConfig enables the Redis read model when Address is set.
type ProjectionConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// RecommenderConfig enables the remote scorer when URL is set.
type RecommenderConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

func defaultConfig() *Config {
	d := orchestrator.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Workers:           d.Workers,
			WorkQueueSize:     d.WorkQueueSize,
			ThinkDelayMin:     d.ThinkDelayMin,
			ThinkDelayMax:     d.ThinkDelayMax,
			ResolveTimeout:    d.ResolveTimeout,
			MaxForceAttempts:  d.MaxForceAttempts,
			ForceRetryBackoff: d.ForceRetryBackoff,
			SinkMaxRetries:    d.SinkMaxRetries,
			SinkRetryDelay:    d.SinkRetryDelay,
			FlushTimeout:      d.FlushTimeout,
		},
		Store: StoreConfig{
			Driver:        "memory",
			NotifyChannel: "draft_outbox_events",
		},
		Projection: ProjectionConfig{
			TTL: 24 * time.Hour,
		},
		Recommender: RecommenderConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Engine.Workers = getEnvAsInt("ENGINE_WORKERS", c.Engine.Workers)
	c.Engine.ThinkDelayMin = getEnvAsDuration("THINK_DELAY_MIN", c.Engine.ThinkDelayMin)
	c.Engine.ThinkDelayMax = getEnvAsDuration("THINK_DELAY_MAX", c.Engine.ThinkDelayMax)
	c.Engine.Seed = int64(getEnvAsInt("ENGINE_SEED", int(c.Engine.Seed)))

	c.Store.Driver = getEnv("DRAFT_STORE", c.Store.Driver)

	c.Projection.Address = getEnv("REDIS_ADDRESS", c.Projection.Address)
	c.Projection.Password = getEnv("REDIS_PASSWORD", c.Projection.Password)

	c.Recommender.URL = getEnv("RECOMMENDER_URL", c.Recommender.URL)
	c.Recommender.Timeout = getEnvAsDuration("RECOMMENDER_TIMEOUT", c.Recommender.Timeout)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Engine.ThinkDelayMin < 0 || c.Engine.ThinkDelayMax < c.Engine.ThinkDelayMin {
		return fmt.Errorf("invalid think delay range %s..%s", c.Engine.ThinkDelayMin, c.Engine.ThinkDelayMax)
	}
	return nil
}

func (c *Config) orchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Workers:           c.Engine.Workers,
		WorkQueueSize:     c.Engine.WorkQueueSize,
		ThinkDelayMin:     c.Engine.ThinkDelayMin,
		ThinkDelayMax:     c.Engine.ThinkDelayMax,
		ResolveTimeout:    c.Engine.ResolveTimeout,
		MaxForceAttempts:  c.Engine.MaxForceAttempts,
		ForceRetryBackoff: c.Engine.ForceRetryBackoff,
		SinkMaxRetries:    c.Engine.SinkMaxRetries,
		SinkRetryDelay:    c.Engine.SinkRetryDelay,
		FlushTimeout:      c.Engine.FlushTimeout,
		Seed:              c.Engine.Seed,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
