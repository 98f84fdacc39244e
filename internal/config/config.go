package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/clarkflip/pf-verify/internal/engine"
)

// EnvPrefix namespaces every environment override, e.g. PFV_SERVER_ADDR.
const EnvPrefix = "PFV_"

type Config struct {
	Server ServerConfig `yaml:"server" envPrefix:"SERVER_"`
	Engine EngineConfig `yaml:"engine" envPrefix:"ENGINE_"`
	Store  StoreConfig  `yaml:"store" envPrefix:"STORE_"`
	Cache  CacheConfig  `yaml:"cache" envPrefix:"CACHE_"`
	NATS   NATSConfig   `yaml:"nats" envPrefix:"NATS_"`
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

type EngineConfig struct {
	FloatConvention string `yaml:"float_convention" env:"FLOAT_CONVENTION"`
	BatchWorkers    int    `yaml:"batch_workers" env:"BATCH_WORKERS"`
	ScanWorkers     int    `yaml:"scan_workers" env:"SCAN_WORKERS"`
}

// StoreConfig points at the sqlite run database. An empty path disables
// persistence.
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// CacheConfig configures the badger outcome cache. An empty dir with
// InMemory false disables it. A zero TTL keeps entries forever.
type CacheConfig struct {
	Dir      string        `yaml:"dir" env:"DIR"`
	InMemory bool          `yaml:"in_memory" env:"IN_MEMORY"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// NATSConfig enables report publishing when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url" env:"URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	TimeFormat string `yaml:"time_format" env:"TIME_FORMAT"`
}

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Engine: EngineConfig{
			FloatConvention: string(engine.DefaultFloatConvention),
			BatchWorkers:    8,
			ScanWorkers:     0,
		},
		Cache: CacheConfig{TTL: 24 * time.Hour},
		NATS:  NATSConfig{SubjectPrefix: "pfverify.reports"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load applies defaults, then the YAML file at path (skipped when path is
// empty), then PFV_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	if _, err := engine.ParseFloatConvention(c.Engine.FloatConvention); err != nil {
		return err
	}
	if c.Engine.BatchWorkers <= 0 {
		return errors.New("engine.batch_workers must be positive")
	}
	if c.Engine.ScanWorkers < 0 {
		return errors.New("engine.scan_workers must not be negative")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	return nil
}

// Convention returns the configured float convention. Load has already
// validated it.
func (c *Config) Convention() engine.FloatConvention {
	conv, err := engine.ParseFloatConvention(c.Engine.FloatConvention)
	if err != nil {
		return engine.DefaultFloatConvention
	}
	return conv
}
