// Package config defines the taskmesh daemon configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level taskmesh configuration.
type Config struct {
	Server    ServerConfig     `json:"server" yaml:"server"`
	Auth      AuthConfig       `json:"auth" yaml:"auth"`
	Routing   RoutingConfig    `json:"routing" yaml:"routing"`
	Retry     RetryConfig      `json:"retry" yaml:"retry"`
	Reward    RewardConfig     `json:"reward" yaml:"reward"`
	Executors []ExecutorConfig `json:"executors" yaml:"executors"`
	DataDir   string           `json:"data_dir" yaml:"data_dir"`
	LogLevel  string           `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"`
}

// RoutingConfig tunes the complexity-based routing thresholds.
type RoutingConfig struct {
	ShortMaxLen     int      `json:"short_max_len" yaml:"short_max_len"`
	LongMinLen      int      `json:"long_min_len" yaml:"long_min_len"`
	ComplexKeywords []string `json:"complex_keywords,omitempty" yaml:"complex_keywords"`
}

// RetryConfig controls transient-failure retries during execution.
type RetryConfig struct {
	MaxAttempts   int     `json:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS   int     `json:"base_delay_ms" yaml:"base_delay_ms"`
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor"`
}

// RewardConfig sets the reward formula parameters.
type RewardConfig struct {
	BaseReward         float64 `json:"base_reward" yaml:"base_reward"`
	WorkloadMultiplier float64 `json:"workload_multiplier" yaml:"workload_multiplier"`
	QualityScore       float64 `json:"quality_score" yaml:"quality_score"`
}

// ExecutorConfig defines a single executor's configuration.
type ExecutorConfig struct {
	ID             string `json:"id" yaml:"id"`
	Class          string `json:"class" yaml:"class"` // "local", "cloud", "external"
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint"`
	APIKey         string `json:"api_key,omitempty" yaml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		Routing: RoutingConfig{
			ShortMaxLen: 50,
			LongMinLen:  200,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseDelayMS:   200,
			BackoffFactor: 2.0,
		},
		Reward: RewardConfig{
			BaseReward:         10,
			WorkloadMultiplier: 0.05,
			QualityScore:       1.0,
		},
		DataDir:  "./data",
		LogLevel: "info",
		Executors: []ExecutorConfig{
			{
				ID:    "local-1",
				Class: "local",
			},
		},
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
