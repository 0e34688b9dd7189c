package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/vario"
)

// Backend kinds.
const (
	backendMemory = "memory"
	backendNATS   = "nats"
	backendSQLite = "sqlite"
	backendRedis  = "redis"
)

// appConfig is the vario CLI configuration file.
type appConfig struct {
	// Engine is the library configuration.
	Engine vario.Config `yaml:"engine"`

	Server  serverConfig  `yaml:"server"`
	Log     logConfig     `yaml:"log"`
	Backend backendConfig `yaml:"backend"`

	// Events enables JetStream ingestion. Requires NATS.
	Events eventsConfig `yaml:"events"`
}

type serverConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsPath     string        `yaml:"metricsPath"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type backendConfig struct {
	// Repository is memory, nats or sqlite.
	Repository string `yaml:"repository"`

	// Sticky is memory, nats, sqlite or redis.
	Sticky string `yaml:"sticky"`

	NATSURL     string `yaml:"natsUrl"`
	SQLitePath  string `yaml:"sqlitePath"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisPrefix string `yaml:"redisPrefix"`
}

type eventsConfig struct {
	// Publish routes HTTP impressions and conversions through JetStream.
	Publish bool `yaml:"publish"`

	// Consume runs the durable consumer that records published events.
	Consume bool `yaml:"consume"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Engine: vario.DefaultConfig(),
		Server: serverConfig{
			Addr:            ":8080",
			MetricsPath:     "/metrics",
			ShutdownTimeout: 10 * time.Second,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
		Log: logConfig{Level: "info", Format: "json"},
		Backend: backendConfig{
			Repository: backendMemory,
			Sticky:     backendMemory,
			NATSURL:    "nats://127.0.0.1:4222",
			SQLitePath: "data/vario.db",
			RedisAddr:  "127.0.0.1:6379",
		},
	}
}

// loadAppConfig reads path, or returns defaults when path is empty.
func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return appConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return appConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	vario.SetDefaults(&cfg.Engine)

	return cfg, cfg.validate()
}

func (c appConfig) validate() error {
	switch c.Backend.Repository {
	case backendMemory, backendNATS, backendSQLite:
	default:
		return fmt.Errorf("unknown repository backend %q", c.Backend.Repository)
	}

	switch c.Backend.Sticky {
	case backendMemory, backendNATS, backendSQLite, backendRedis:
	default:
		return fmt.Errorf("unknown sticky backend %q", c.Backend.Sticky)
	}

	if (c.Events.Publish || c.Events.Consume) && c.Backend.NATSURL == "" {
		return fmt.Errorf("events require backend.natsUrl")
	}

	return c.Engine.Validate()
}

func (c appConfig) usesNATS() bool {
	return c.Backend.Repository == backendNATS || c.Backend.Sticky == backendNATS ||
		c.Events.Publish || c.Events.Consume
}

func (c appConfig) usesSQLite() bool {
	return c.Backend.Repository == backendSQLite || c.Backend.Sticky == backendSQLite
}

// experimentsFile is the definition file read by "vario load".
type experimentsFile struct {
	Experiments []vario.Experiment `yaml:"experiments"`
}

func loadExperimentsFile(path string) ([]vario.Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiments: %w", err)
	}

	var file experimentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse experiments %s: %w", path, err)
	}
	if len(file.Experiments) == 0 {
		return nil, fmt.Errorf("%s defines no experiments", path)
	}

	return file.Experiments, nil
}
