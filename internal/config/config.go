package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Version is the simulator version reported on /version and in fingerprints.
const Version = "1.2.0"

// Config is the root configuration.
type Config struct {
	// Server holds the listener settings.
	Server ServerConfig `yaml:"server" json:"server"`

	// Models maps model ids to their configuration.
	Models map[string]ModelConfig `yaml:"models" json:"models"`

	// Latency holds the latency simulation settings.
	Latency LatencyConfig `yaml:"latency" json:"latency"`

	// Chaos holds the chaos engineering settings.
	Chaos ChaosConfig `yaml:"chaos" json:"chaos"`

	// Telemetry holds logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	// Security holds auth, rate limiting, CORS, and header settings.
	Security SecurityConfig `yaml:"security" json:"security"`

	// Seed makes generation and latency sampling deterministic when set.
	Seed *int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Models:    DefaultModels(),
		Latency:   DefaultLatencyConfig(),
		Chaos:     DefaultChaosConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Security:  DefaultSecurityConfig(),
	}
}

// Minimal returns a configuration with only essential models and latency off,
// intended for tests and quick local runs.
func Minimal() *Config {
	cfg := Default()
	cfg.Models = map[string]ModelConfig{
		"gpt-4":                  DefaultModels()["gpt-4"],
		"text-embedding-ada-002": DefaultModels()["text-embedding-ada-002"],
	}
	cfg.Latency.Enabled = false
	return cfg
}

// Validate checks the whole tree.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Latency.Validate(); err != nil {
		return err
	}
	if err := c.Chaos.Validate(); err != nil {
		return err
	}
	if err := c.Security.Validate(); err != nil {
		return err
	}
	for name, m := range c.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", name, err)
		}
	}
	return nil
}

// GetModel returns the config for a model id.
func (c *Config) GetModel(id string) (ModelConfig, bool) {
	m, ok := c.Models[id]
	return m, ok
}

// Load reads a configuration file, choosing the decoder by extension, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q, use .yaml, .toml, or .json", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvVars lists the recognized environment variables and what they override.
func EnvVars() map[string]string {
	return map[string]string{
		"LLMSIM_HOST":            "server host to bind",
		"LLMSIM_PORT":            "server port to listen on",
		"LLMSIM_SEED":            "deterministic seed for generation and latency",
		"LLMSIM_CHAOS_ENABLED":   "enable chaos injection (true/false)",
		"LLMSIM_LATENCY_ENABLED": "enable latency simulation (true/false)",
		"LLMSIM_LOG_LEVEL":       "log level (debug, info, warn, error)",
	}
}

// FromEnv builds a default config with environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()

	if host := os.Getenv("LLMSIM_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("LLMSIM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid LLMSIM_PORT %q", port)
		}
		cfg.Server.Port = p
	}
	if seed := os.Getenv("LLMSIM_SEED"); seed != "" {
		s, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid LLMSIM_SEED %q", seed)
		}
		cfg.Seed = &s
	}
	if v := os.Getenv("LLMSIM_CHAOS_ENABLED"); v != "" {
		cfg.Chaos.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("LLMSIM_LATENCY_ENABLED"); v != "" {
		cfg.Latency.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("LLMSIM_LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	// Host to bind to.
	Host string `yaml:"host" json:"host"`

	// Port to listen on.
	Port int `yaml:"port" json:"port"`

	// RequestTimeoutSecs bounds every request.
	RequestTimeoutSecs int64 `yaml:"request-timeout-secs" json:"request_timeout_secs"`

	// DrainTimeoutSecs bounds graceful shutdown.
	DrainTimeoutSecs int64 `yaml:"drain-timeout-secs" json:"drain_timeout_secs"`

	// RequestLogging logs every request at info level.
	RequestLogging bool `yaml:"request-logging" json:"request_logging"`

	// Compression enables gzip response compression for JSON responses.
	Compression bool `yaml:"compression" json:"compression"`
}

// DefaultServerConfig returns the stock listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "0.0.0.0",
		Port:               8080,
		RequestTimeoutSecs: 300,
		DrainTimeoutSecs:   30,
		RequestLogging:     true,
		Compression:        true,
	}
}

// Validate checks the listener settings.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}

// Addr returns the host:port bind address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequestTimeout returns the request timeout as a duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// DrainTimeout returns the drain timeout as a duration.
func (c ServerConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSecs) * time.Second
}

// TelemetryConfig holds logging and metrics settings.
type TelemetryConfig struct {
	// Enabled toggles metrics collection.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// LogLevel sets the minimum log level.
	LogLevel string `yaml:"log-level" json:"log_level"`

	// JSONLogs switches logrus to the JSON formatter.
	JSONLogs bool `yaml:"json-logs" json:"json_logs"`

	// UseZapLogger enables the optional high-performance zap logger.
	UseZapLogger bool `yaml:"use-zap-logger" json:"use_zap_logger"`

	// LogFile, when set, writes logs to a rotating file as well as stdout.
	LogFile string `yaml:"log-file,omitempty" json:"log_file,omitempty"`

	// MetricsPath is the Prometheus exposition endpoint.
	MetricsPath string `yaml:"metrics-path" json:"metrics_path"`

	// ServiceName labels metrics and traces.
	ServiceName string `yaml:"service-name" json:"service_name"`
}

// DefaultTelemetryConfig returns the stock telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     true,
		LogLevel:    "info",
		MetricsPath: "/metrics",
		ServiceName: "llmsim",
	}
}
