package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/headline-goat/funnel-goat/internal/experiment"
)

// Config represents the top-level configuration for funnel-goat.
type Config struct {
	Store       StoreConfig        `koanf:"store"`
	Server      ServerConfig       `koanf:"server"`
	Funnel      FunnelConfig       `koanf:"funnel"`
	Report      ReportConfig       `koanf:"report"`
	Emitter     EmitterConfig      `koanf:"emitter"`
	Log         LogConfig          `koanf:"log"`
	Experiments []ExperimentConfig `koanf:"experiments"`
}

// StoreConfig selects and configures the persistent key/value backend.
type StoreConfig struct {
	Backend string       `koanf:"backend"` // "memory", "sqlite" or "redis"
	SQLite  SQLiteConfig `koanf:"sqlite"`
	Redis   RedisConfig  `koanf:"redis"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Mode string `koanf:"mode"` // "debug" or "release"
}

type FunnelConfig struct {
	ClickValue float64 `koanf:"click_value"`
	Retention  string  `koanf:"retention"` // parsed as time.Duration; empty keeps everything
}

// RetentionWindow returns the parsed retention, zero when unset.
func (c FunnelConfig) RetentionWindow() (time.Duration, error) {
	if c.Retention == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 0, fmt.Errorf("invalid funnel retention %q: %w", c.Retention, err)
	}
	return d, nil
}

type ReportConfig struct {
	TopHelmets int `koanf:"top_helmets"`
}

type EmitterConfig struct {
	Kind  string      `koanf:"kind"` // "none", "log" or "kafka"
	Kafka KafkaConfig `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

type ExperimentConfig struct {
	ID       string          `koanf:"id"`
	Name     string          `koanf:"name"`
	Status   string          `koanf:"status"`
	Variants []VariantConfig `koanf:"variants"`
}

type VariantConfig struct {
	ID     string  `koanf:"id"`
	Weight float64 `koanf:"weight"`
}

// Registry validates the configured experiments and builds the registry.
func (c *Config) Registry() (*experiment.Registry, error) {
	exps := make([]experiment.Experiment, len(c.Experiments))
	for i, ec := range c.Experiments {
		variants := make([]experiment.Variant, len(ec.Variants))
		for j, vc := range ec.Variants {
			variants[j] = experiment.Variant{ID: vc.ID, Weight: vc.Weight}
		}
		exps[i] = experiment.Experiment{
			ID:       ec.ID,
			Name:     ec.Name,
			Status:   experiment.Status(ec.Status),
			Variants: variants,
		}
	}
	return experiment.NewRegistry(exps)
}

// Load loads the configuration from the given file path and environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"store.backend":       "sqlite",
		"store.sqlite.path":   "./fg.db",
		"store.redis.addr":    "localhost:6379",
		"store.redis.db":      0,
		"store.redis.prefix":  "",
		"server.port":         8080,
		"server.mode":         "release",
		"funnel.click_value":  10.0,
		"funnel.retention":    "",
		"report.top_helmets":  10,
		"emitter.kind":        "none",
		"emitter.kafka.topic": "funnel-goat.hits",
		"log.level":           "info",
		"log.development":     false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// FG_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("FG_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FG_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
