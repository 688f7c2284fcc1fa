// Package config loads and validates the biosdk client configuration.
//
// DESIGN: One explicit Config object replaces process-wide properties.
// Precedence for every field: explicit value (YAML or code) > environment > default.
// Init parameters named config.parameter.<key> overlay the object at runtime
// (see parameters.go).
//
// FILES:
//   - config.go:     Root Config struct, Load(), ApplyEnv(), ApplyDefaults(), Validate()
//   - parameters.go: config.parameter.* overlay via mapstructure
//   - monitoring.go: Logging, alert and call log settings
package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvServiceURL             = "mosip_biosdk_service"
	EnvDebugRequestResponse   = "mosip_biosdk_request_response_debug"
	EnvMaxConnectionsPerRoute = "BIOSDK_MAX_CONNECTIONS_PER_ROUTE"
	EnvMaxTotalConnections    = "BIOSDK_MAX_TOTAL_CONNECTIONS"
	EnvTLSBypass              = "BIOSDK_SSL_BYPASS"
	EnvHTTPTimeout            = "BIOSDK_HTTP_TIMEOUT"
	EnvSigV4Region            = "BIOSDK_SIGV4_REGION"
	EnvLogLevel               = "BIOSDK_LOG_LEVEL"
)

// Built-in defaults.
const (
	DefaultMaxConnectionsPerRoute = 20
	DefaultMaxTotalConnections    = 100
	DefaultSigV4Service           = "execute-api"
	DefaultMaxResponseBytes       = 64 << 20
)

var validate = validator.New()

// Config is the root configuration for the biosdk client.
type Config struct {
	DefaultServiceURL string            `yaml:"default_service_url" mapstructure:"mosip_biosdk_service" validate:"omitempty,url"` // Fallback when init params carry no format.url.default
	Transport         TransportConfig   `yaml:"transport" mapstructure:",squash"`                                                 // Outbound HTTP settings
	Logging           LoggingConfig     `yaml:"logging" mapstructure:"-"`                                                         // Logger settings
	Alerts            AlertConfig       `yaml:"alerts" mapstructure:"-"`                                                          // Slow call alerting
	CallLog           CallLogConfig     `yaml:"call_log" mapstructure:"-"`                                                        // JSONL call log
	Parameters        map[string]string `yaml:"parameters" mapstructure:"-"`                                                      // Parameter overlay, readable by name
}

// TransportConfig contains outbound HTTP settings.
type TransportConfig struct {
	MaxConnectionsPerRoute int           `yaml:"max_connections_per_route" mapstructure:"restTemplate-max-connection-per-route" validate:"gte=0"`
	MaxTotalConnections    int           `yaml:"max_total_connections" mapstructure:"restTemplate-total-max-connections" validate:"gte=0"`
	TLSBypass              bool          `yaml:"ssl_bypass" mapstructure:"auth-adapter-ssl-bypass"`                         // Skip server certificate verification
	DebugRequestResponse   bool          `yaml:"debug_request_response" mapstructure:"mosip_biosdk_request_response_debug"` // Log request/response bodies at debug
	Timeout                time.Duration `yaml:"timeout" mapstructure:"http-timeout" validate:"gte=0"`                      // Per-request timeout, 0 = none
	MaxResponseBytes       int64         `yaml:"max_response_bytes" mapstructure:"-" validate:"gte=0"`                      // Response body cap
	SigV4Region            string        `yaml:"sigv4_region" mapstructure:"-"`                                             // Sign requests with AWS SigV4 when set
	SigV4Service           string        `yaml:"sigv4_service" mapstructure:"-"`                                            // SigV4 service name
}

// envPattern matches ${VAR:-default} or ${VAR}.
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for default values.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Default returns a configuration built from environment and defaults only.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env fallbacks, defaults and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv fills fields left unset from the environment.
// Booleans can only be switched on from the environment.
func (c *Config) ApplyEnv() {
	if c.DefaultServiceURL == "" {
		c.DefaultServiceURL = os.Getenv(EnvServiceURL)
	}

	t := &c.Transport
	if !t.DebugRequestResponse {
		t.DebugRequestResponse = strings.EqualFold(os.Getenv(EnvDebugRequestResponse), "y")
	}
	if t.MaxConnectionsPerRoute == 0 {
		t.MaxConnectionsPerRoute = envInt(EnvMaxConnectionsPerRoute)
	}
	if t.MaxTotalConnections == 0 {
		t.MaxTotalConnections = envInt(EnvMaxTotalConnections)
	}
	if !t.TLSBypass {
		t.TLSBypass, _ = strconv.ParseBool(os.Getenv(EnvTLSBypass))
	}
	if t.Timeout == 0 {
		if d, err := time.ParseDuration(os.Getenv(EnvHTTPTimeout)); err == nil {
			t.Timeout = d
		}
	}
	if t.SigV4Region == "" {
		t.SigV4Region = os.Getenv(EnvSigV4Region)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = strings.ToLower(os.Getenv(EnvLogLevel))
	}
}

// ApplyDefaults fills remaining zero values with built-in defaults.
func (c *Config) ApplyDefaults() {
	t := &c.Transport
	if t.MaxConnectionsPerRoute == 0 {
		t.MaxConnectionsPerRoute = DefaultMaxConnectionsPerRoute
	}
	if t.MaxTotalConnections == 0 {
		t.MaxTotalConnections = DefaultMaxTotalConnections
	}
	if t.MaxResponseBytes == 0 {
		t.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if t.SigV4Service == "" {
		t.SigV4Service = DefaultSigV4Service
	}
	c.Logging.applyDefaults()
	c.Alerts.applyDefaults()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Parameters = maps.Clone(c.Parameters)
	return &out
}

func envInt(name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
