// Package config loads hub client settings from YAML.
//
// Example file:
//
//	connection_string: "HostName=myhub.azure-devices.net;SharedAccessKeyName=service;SharedAccessKey=${HUB_KEY}"
//	token_ttl: 1h
//	renewal_margin: 15m
//	log_level: info
//	protocol_log: /var/log/hublink/capture.cbor
//	metrics_addr: ":9102"
//	idle_timeout: 4m
//
// ${VAR} references are expanded from the environment before parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/renewal"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config holds the client settings.
type Config struct {
	// ConnectionString names the hub and its shared access policy.
	ConnectionString string `yaml:"connection_string"`

	// TokenTTL is the lifetime of generated tokens.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// RenewalMargin is how long before expiry tokens are renewed.
	RenewalMargin time.Duration `yaml:"renewal_margin"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ProtocolLog is an optional capture file path.
	ProtocolLog string `yaml:"protocol_log,omitempty"`

	// MetricsAddr is an optional listen address for the Prometheus
	// endpoint.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// IdleTimeout is the AMQP idle timeout (0 lets the peer decide).
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`
}

// Defaults returns a Config with every optional field set.
func Defaults() Config {
	return Config{
		TokenTTL:      credential.DefaultTTL,
		RenewalMargin: renewal.DefaultMargin,
		LogLevel:      "info",
	}
}

// Load reads, parses and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.ConnectionString == "" {
		return fmt.Errorf("%w: connection_string is required", ErrInvalid)
	}
	if _, err := credential.ParseConnectionString(c.ConnectionString); err != nil {
		return fmt.Errorf("%w: connection_string: %w", ErrInvalid, err)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalid)
	}
	if c.RenewalMargin <= 0 {
		return fmt.Errorf("%w: renewal_margin must be positive", ErrInvalid)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle_timeout must not be negative", ErrInvalid)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// SessionCredential returns the hub host and the credential described by
// the connection string. A shared access key yields a renewable signer
// issued at now.
func (c Config) SessionCredential(now time.Time) (string, credential.Credential, error) {
	cs, err := credential.ParseConnectionString(c.ConnectionString)
	if err != nil {
		return "", nil, fmt.Errorf("%w: connection_string: %w", ErrInvalid, err)
	}
	cred, err := cs.Credential(c.TokenTTL, now)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cs.HostName, cred, nil
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ParseLevel maps a level name to a slog level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
