package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
}

// ServerConfig controls the diagnostics HTTP server.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Host    string `koanf:"host"`
	Mode    string `koanf:"mode"` // debug | release
}

// DatabaseConfig locates the SQLite counter database.
type DatabaseConfig struct {
	Path        string `koanf:"path"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// KafkaConfig describes the bus subscription.
type KafkaConfig struct {
	Brokers     []string `koanf:"brokers"`
	Topic       string   `koanf:"topic"`
	GroupID     string   `koanf:"group_id"`
	DialTimeout string   `koanf:"dial_timeout"` // parsed and validated on startup
}

// SnapshotConfig locates the live JSON snapshot artifact.
type SnapshotConfig struct {
	Path string `koanf:"path"`
}

// ParsedDialTimeout returns the startup dial timeout as a duration.
// Validate guarantees the value parses; the fallback covers a zero Config.
func (c KafkaConfig) ParsedDialTimeout() time.Duration {
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (c *Config) Validate() error {
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
		}
		if strings.TrimSpace(c.Server.Host) == "" {
			return fmt.Errorf("server.host is required")
		}
		if c.Server.Mode != "debug" && c.Server.Mode != "release" {
			return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
		}
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	for _, b := range c.Kafka.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("kafka.brokers must not contain empty entries")
		}
	}
	if strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if strings.TrimSpace(c.Kafka.GroupID) == "" {
		return fmt.Errorf("kafka.group_id is required")
	}
	timeout, err := time.ParseDuration(c.Kafka.DialTimeout)
	if err != nil {
		return fmt.Errorf("invalid kafka.dial_timeout %q: %w", c.Kafka.DialTimeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("kafka.dial_timeout must be > 0")
	}

	if strings.TrimSpace(c.Snapshot.Path) == "" {
		return fmt.Errorf("snapshot.path is required")
	}

	return nil
}

// Load parses config from file + env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.enabled":        true,
		"server.port":           8080,
		"server.host":           "0.0.0.0",
		"server.mode":           "release",
		"database.path":         "data/dowdle.sqlite",
		"database.auto_migrate": true,
		"kafka.brokers":         []string{"127.0.0.1:9092"},
		"kafka.topic":           "buzzline_dowdle",
		"kafka.group_id":        "buzz_dowdle",
		"kafka.dial_timeout":    "10s",
		"snapshot.path":         "data/dowdle_live.json",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("BUZZTRACK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "BUZZTRACK_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
