// Package config loads coasterd's runtime configuration from an optional
// YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config carries every runtime knob of one coasterd node.
type Config struct {
	// Listen is the HTTP API bind address.
	Listen string `yaml:"listen"`
	// RedisAddr is the broker address (host:port). Empty means run
	// standalone on the in-memory broker.
	RedisAddr string `yaml:"redisAddr"`
	// HeartbeatSeconds is the cluster heartbeat interval.
	HeartbeatSeconds int `yaml:"heartbeatSeconds"`
	// LivenessWindowSeconds is how long a silent node counts as alive.
	LivenessWindowSeconds int `yaml:"livenessWindowSeconds"`
	// ReportSeconds is the scheduled status report interval.
	ReportSeconds int `yaml:"reportSeconds"`
	// ShutdownSeconds bounds the graceful-shutdown watchdog.
	ShutdownSeconds int `yaml:"shutdownSeconds"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Listen:                ":8080",
		RedisAddr:             "localhost:6379",
		HeartbeatSeconds:      5,
		LivenessWindowSeconds: 10,
		ReportSeconds:         30,
		ShutdownSeconds:       5,
	}
}

// Load reads the YAML file at path, fills gaps with defaults and applies
// environment overrides. A missing file is not an error: defaults plus
// environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			var fileCfg Config
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.merge(fileCfg)
		}
	}

	cfg.Listen = getenv("COASTERD_LISTEN", cfg.Listen)
	cfg.RedisAddr = getenv("COASTERD_REDIS_ADDR", cfg.RedisAddr)
	cfg.HeartbeatSeconds = getenvInt("COASTERD_HEARTBEAT_SECONDS", cfg.HeartbeatSeconds)
	cfg.LivenessWindowSeconds = getenvInt("COASTERD_LIVENESS_WINDOW_SECONDS", cfg.LivenessWindowSeconds)
	cfg.ReportSeconds = getenvInt("COASTERD_REPORT_SECONDS", cfg.ReportSeconds)
	cfg.ShutdownSeconds = getenvInt("COASTERD_SHUTDOWN_SECONDS", cfg.ShutdownSeconds)
	return cfg, nil
}

// merge overlays the non-zero fields of other onto c.
func (c *Config) merge(other Config) {
	if other.Listen != "" {
		c.Listen = other.Listen
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.HeartbeatSeconds > 0 {
		c.HeartbeatSeconds = other.HeartbeatSeconds
	}
	if other.LivenessWindowSeconds > 0 {
		c.LivenessWindowSeconds = other.LivenessWindowSeconds
	}
	if other.ReportSeconds > 0 {
		c.ReportSeconds = other.ReportSeconds
	}
	if other.ShutdownSeconds > 0 {
		c.ShutdownSeconds = other.ShutdownSeconds
	}
}

// HeartbeatInterval returns the heartbeat knob as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// LivenessWindow returns the liveness knob as a duration.
func (c Config) LivenessWindow() time.Duration {
	return time.Duration(c.LivenessWindowSeconds) * time.Second
}

// ReportInterval returns the report knob as a duration.
func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportSeconds) * time.Second
}

// ShutdownTimeout returns the watchdog knob as a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
