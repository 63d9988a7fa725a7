// Package config provides configuration management for the chatrelay handler.
// Configuration is an explicit struct built from defaults, an optional YAML
// file and environment overrides, and validated once at startup.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/chatrelay/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL     = "API_URL"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFormat  = "LOG_FORMAT"
	EnvConfigPath = "CHATRELAY_CONFIG"
)

var validate = validator.New()

// Config represents the complete relay configuration.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// GenerationConfig describes the remote text-generation service and the
// sampling parameters sent with every generation call.
type GenerationConfig struct {
	// BaseURL is the address of the generation service (required).
	// /health and /generate are resolved against it.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each remote call. Zero keeps the transport default.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// MaxNewTokens is sent as max_new_tokens (default: 512)
	MaxNewTokens int `yaml:"max_new_tokens" validate:"gt=0"`

	// Temperature is sent as temperature (default: 0.7)
	Temperature float64 `yaml:"temperature" validate:"gte=0"`

	// TopP is sent as top_p (default: 0.9)
	TopP float64 `yaml:"top_p" validate:"gt=0,lte=1"`

	// DoSample is sent as do_sample (default: true)
	DoSample bool `yaml:"do_sample"`
}

// ServerConfig holds settings for the local HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout must cover the health check plus the generation call (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum size of request headers (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// ShutdownTimeout is how long graceful shutdown may take (default: 10s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

// RateLimitConfig configures the per-IP limiter of the local HTTP server.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Burst   int           `yaml:"burst" validate:"gte=0"`
	Every   time.Duration `yaml:"every" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is provided.
// The base URL is intentionally empty: it must come from the file or API_URL.
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			MaxNewTokens: 512,
			Temperature:  0.7,
			TopP:         0.9,
			DoSample:     true,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Burst:   10,
			Every:   6 * time.Second,
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewConfigurationError("open config file", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes YAML from r on top of DefaultConfig, after expanding
// ${VAR} and ${VAR:-default} references. Environment overrides are applied
// last, then the result is validated.
func Load(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Lookuper resolves an environment variable. os.LookupEnv satisfies it.
type Lookuper func(key string) (string, bool)

// FromEnv builds a validated configuration for the Lambda runtime. When
// CHATRELAY_CONFIG names a file it is decoded first; otherwise defaults are
// used. Variables resolved through lookup win over both.
func FromEnv(lookup Lookuper) (*Config, error) {
	cfg := DefaultConfig()
	if path, ok := lookup(EnvConfigPath); ok && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NewConfigurationError("open config file", err)
		}
		defer f.Close()

		if cfg, err = decode(f); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewConfigurationError("read config", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, errors.NewConfigurationError("expand environment variables", err)
	}

	cfg := DefaultConfig()
	if strings.TrimSpace(expanded) == "" {
		return cfg, nil
	}
	if err := yaml.NewDecoder(strings.NewReader(expanded)).Decode(cfg); err != nil {
		return nil, errors.NewConfigurationError("decode config", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set and non-empty.
func (c *Config) ApplyEnv(lookup Lookuper) {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.Generation.BaseURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
}

// Validate checks the configuration. Every failure is a ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Generation.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return errors.NewConfigurationError("invalid configuration", err)
	}
	return nil
}

// Validate checks only the generation settings. It is what the handler
// needs before constructing a client.
func (g GenerationConfig) Validate() error {
	if strings.TrimSpace(g.BaseURL) == "" {
		return errors.NewConfigurationError(EnvAPIURL+" is not set", nil)
	}
	if err := validate.Struct(g); err != nil {
		return errors.NewConfigurationError("invalid generation configuration", err)
	}
	return nil
}

// envRef matches ${VAR} and ${VAR:-default}. A bare $ is left alone.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnvVars resolves ${VAR} and ${VAR:-default} references, repeating
// until nested references are exhausted.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("unterminated variable reference")
	}

	expand := func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if val := os.Getenv(m[1]); val != "" || m[2] == "" {
			return val
		}
		return m[3]
	}

	result := s
	for i := 0; i < 8 && envRef.MatchString(result); i++ {
		result = envRef.ReplaceAllStringFunc(result, expand)
	}
	return result, nil
}
