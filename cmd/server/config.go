// Package main provides the clipforge server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/clipforge/internal/autosave"
	"github.com/good-yellow-bee/clipforge/internal/quota"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Quota    quota.Limits   `yaml:"quota"`
	Render   RenderConfig   `yaml:"render"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress    string    `yaml:"http_address"`    // HTTP listen address (default: :8080)
	MetricsAddress string    `yaml:"metrics_address"` // Prometheus listen address, empty disables
	AllowInsecure  bool      `yaml:"allow_insecure"`  // Serve plain HTTP without TLS
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig contains HTTPS settings for the API.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains token and abuse protection settings. Durations use
// Go duration syntax ("15m", "168h").
type AuthConfig struct {
	AccessTokenTTL   string `yaml:"access_token_ttl"`
	RefreshTokenTTL  string `yaml:"refresh_token_ttl"`
	RateLimitPerIP   int    `yaml:"rate_limit_per_ip"`   // login attempts per minute
	RateLimitPerUser int    `yaml:"rate_limit_per_user"` // API requests per minute
	LockoutThreshold int    `yaml:"lockout_threshold"`
	LockoutDuration  string `yaml:"lockout_duration"`
}

// AutosaveConfig controls the per-session save scheduler.
type AutosaveConfig struct {
	Delay       string `yaml:"delay"`
	SaveTimeout string `yaml:"save_timeout"`
}

// RenderConfig controls timeline resolution.
type RenderConfig struct {
	SafeFrames int `yaml:"safe_frames"` // padding frames added to every element
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses, defaults and validates YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/clipforge.db"
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "15m"
	}
	if c.Auth.RefreshTokenTTL == "" {
		c.Auth.RefreshTokenTTL = "168h"
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "30m"
	}
	def := autosave.DefaultConfig()
	if c.Autosave.Delay == "" {
		c.Autosave.Delay = def.Delay.String()
	}
	if c.Autosave.SaveTimeout == "" {
		c.Autosave.SaveTimeout = def.SaveTimeout.String()
	}
	limits := quota.DefaultLimits()
	if c.Quota.FreeGenerations == 0 {
		c.Quota.FreeGenerations = limits.FreeGenerations
	}
	if c.Quota.FreeStorageBytes == 0 {
		c.Quota.FreeStorageBytes = limits.FreeStorageBytes
	}
	if c.Quota.MaxUploadBytes == 0 {
		c.Quota.MaxUploadBytes = limits.MaxUploadBytes
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	} else if !c.Server.AllowInsecure {
		return fmt.Errorf("server.tls.enabled is false; set server.allow_insecure to serve plain HTTP")
	}

	durations := []struct{ name, value string }{
		{"auth.access_token_ttl", c.Auth.AccessTokenTTL},
		{"auth.refresh_token_ttl", c.Auth.RefreshTokenTTL},
		{"auth.lockout_duration", c.Auth.LockoutDuration},
		{"autosave.delay", c.Autosave.Delay},
		{"autosave.save_timeout", c.Autosave.SaveTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if c.Auth.RateLimitPerIP < 0 || c.Auth.RateLimitPerUser < 0 || c.Auth.LockoutThreshold < 0 {
		return fmt.Errorf("auth limits must not be negative")
	}
	if c.Render.SafeFrames < 0 {
		return fmt.Errorf("render.safe_frames must not be negative")
	}
	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	return nil
}

// AutosaveSettings returns the parsed scheduler configuration. Validate must
// have succeeded.
func (c *Config) AutosaveSettings() autosave.Config {
	delay, _ := time.ParseDuration(c.Autosave.Delay)
	timeout, _ := time.ParseDuration(c.Autosave.SaveTimeout)
	return autosave.Config{Delay: delay, SaveTimeout: timeout}
}

// authDurations returns the parsed auth durations. Validate must have
// succeeded.
func (c *Config) authDurations() (access, refresh, lockout time.Duration) {
	access, _ = time.ParseDuration(c.Auth.AccessTokenTTL)
	refresh, _ = time.ParseDuration(c.Auth.RefreshTokenTTL)
	lockout, _ = time.ParseDuration(c.Auth.LockoutDuration)
	return access, refresh, lockout
}
