package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds the cache settings. An empty Addr disables the cache
// and the anomaly notification channel.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// EngineConfig holds the anomaly engine limits and the scheduler cadence.
type EngineConfig struct {
	MaxHistory     int           `yaml:"max_history"`
	MaxAnomalies   int           `yaml:"max_anomalies"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	DetectInterval time.Duration `yaml:"detect_interval"`
}

// Config is the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Engine EngineConfig `yaml:"engine"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "anomalies",
		},
		Engine: EngineConfig{
			MaxHistory:     2016,
			MaxAnomalies:   500,
			QueueSize:      10000,
			DetectInterval: time.Minute,
		},
	}
}

// Load reads configuration with priority: defaults < YAML file < env vars.
// A missing file at the default path is not an error; an unreadable or
// malformed explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	return cfg, nil
}
