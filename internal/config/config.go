// ABOUTME: Configuration loading for the admin CLI and the dev server
// ABOUTME: Reads YAML or TOML files, expands env vars, parses durations, and applies PROMPTPAL_* overrides

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DevelopmentBaseURL is the admin API used outside production
	DevelopmentBaseURL = "http://localhost:9002/api"

	// ProductionBaseURL is the admin API used when PROMPTPAL_ENV=production
	ProductionBaseURL = "https://promptpal-backend-service.onrender.com/api"

	// DefaultTimeout bounds every admin API request
	DefaultTimeout = 15 * time.Second
)

// Config represents the complete promptpal-admin configuration
type Config struct {
	API       APIConfig       `yaml:"api" toml:"api"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	DevServer DevServerConfig `yaml:"devserver" toml:"devserver"`

	// Environment is "production" or anything else; it only picks the default base URL.
	Environment string `yaml:"-" toml:"-" env:"PROMPTPAL_ENV"`
}

// APIConfig holds the admin API location
type APIConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url" env:"PROMPTPAL_API_URL"`
	Timeout time.Duration `yaml:"-" toml:"-" env:"PROMPTPAL_API_TIMEOUT"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// SessionConfig holds where the CLI keeps its session
type SessionConfig struct {
	Path string `yaml:"path" toml:"path" env:"PROMPTPAL_SESSION_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"PROMPTPAL_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"PROMPTPAL_LOG_FORMAT"`
}

// TelemetryConfig holds OTLP trace export configuration
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" toml:"endpoint" env:"PROMPTPAL_OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" toml:"service_name" env:"PROMPTPAL_OTEL_SERVICE_NAME"`
}

// DevServerConfig holds the local admin API server configuration
type DevServerConfig struct {
	Addr         string `yaml:"addr" toml:"addr" env:"PROMPTPAL_DEVSERVER_ADDR"`
	DatabasePath string `yaml:"database_path" toml:"database_path" env:"PROMPTPAL_DEVSERVER_DB"`
	JWTSecret    string `yaml:"jwt_secret" toml:"jwt_secret" env:"PROMPTPAL_JWT_SECRET"`
	PublicURL    string `yaml:"public_url" toml:"public_url" env:"PROMPTPAL_PUBLIC_URL"`

	BootstrapUsername string `yaml:"bootstrap_username" toml:"bootstrap_username" env:"PROMPTPAL_BOOTSTRAP_USERNAME"`
	BootstrapEmail    string `yaml:"bootstrap_email" toml:"bootstrap_email" env:"PROMPTPAL_BOOTSTRAP_EMAIL"`
	BootstrapPassword string `yaml:"bootstrap_password" toml:"bootstrap_password" env:"PROMPTPAL_BOOTSTRAP_PASSWORD"`

	InvitationTTL time.Duration `yaml:"-" toml:"-" env:"PROMPTPAL_INVITATION_TTL"`
	SessionTTL    time.Duration `yaml:"-" toml:"-" env:"PROMPTPAL_SESSION_TTL"`

	// Raw string values for file unmarshaling
	InvitationTTLRaw string `yaml:"invitation_ttl" toml:"invitation_ttl"`
	SessionTTLRaw    string `yaml:"session_ttl" toml:"session_ttl"`
}

// Path returns the path to the config file.
// Priority: PROMPTPAL_CONFIG env var > XDG_CONFIG_HOME/promptpal/admin.yaml > ~/.config/promptpal/admin.yaml
func Path() string {
	if envPath := os.Getenv("PROMPTPAL_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "promptpal", "admin.yaml")
}

// DataPath returns the directory for dev server data.
// Priority: XDG_DATA_HOME/promptpal > ~/.local/share/promptpal
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "promptpal")
}

// Load reads the configuration file at path, if it exists, then applies
// PROMPTPAL_* environment overrides and defaults. A missing file is not an
// error: the result is defaults plus environment.
// Environment variables in the format ${VAR_NAME} are expanded in the file.
// A .toml extension selects TOML; anything else is parsed as YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func decode(path, content string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(content, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(content), cfg)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		if c.Production() {
			c.API.BaseURL = ProductionBaseURL
		} else {
			c.API.BaseURL = DevelopmentBaseURL
		}
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.DevServer.Addr == "" {
		c.DevServer.Addr = "localhost:9002"
	}
	if c.DevServer.DatabasePath == "" {
		c.DevServer.DatabasePath = filepath.Join(DataPath(), "devserver.db")
	}
}

// Production reports whether PROMPTPAL_ENV selects the production API.
func (c *Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.DevServer.InvitationTTL < 0 {
		return fmt.Errorf("devserver.invitation_ttl must not be negative")
	}
	if c.DevServer.SessionTTL < 0 {
		return fmt.Errorf("devserver.session_ttl must not be negative")
	}

	return nil
}

// ValidateDevServer checks the settings only the dev server needs.
func (c *Config) ValidateDevServer() error {
	if c.DevServer.JWTSecret == "" {
		return fmt.Errorf("devserver.jwt_secret is required")
	}
	if c.DevServer.BootstrapUsername != "" && c.DevServer.BootstrapPassword == "" {
		return fmt.Errorf("devserver.bootstrap_password is required with bootstrap_username")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"api.timeout", cfg.API.TimeoutRaw, &cfg.API.Timeout},
		{"devserver.invitation_ttl", cfg.DevServer.InvitationTTLRaw, &cfg.DevServer.InvitationTTL},
		{"devserver.session_ttl", cfg.DevServer.SessionTTLRaw, &cfg.DevServer.SessionTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
