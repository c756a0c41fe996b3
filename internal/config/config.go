// Package config provides configuration management for backupctl.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left empty.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultUIListen  = "127.0.0.1:8090"
)

// DefaultConfigDir returns the default config directory (~/.backupctl).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".backupctl"), nil
}

// DefaultConfigPath returns the default config file path (~/.backupctl/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// AgentConfig holds the CLI's configuration.
type AgentConfig struct {
	ServerURL string        `yaml:"server_url,omitempty"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	LogLevel  string        `yaml:"log_level,omitempty"`
	LogFormat string        `yaml:"log_format,omitempty"`
	UIListen  string        `yaml:"ui_listen,omitempty"`
	Proxy     *ProxyConfig  `yaml:"proxy,omitempty"`
}

// Validate checks that the configuration has the fields required to reach the server.
func (c *AgentConfig) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if err := ValidateServerURL(c.ServerURL); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

// IsConfigured returns true if a server URL has been set.
func (c *AgentConfig) IsConfigured() bool {
	return c.ServerURL != ""
}

// GetProxyConfig returns the proxy settings, or nil when none are configured.
func (c *AgentConfig) GetProxyConfig() *ProxyConfig {
	if c.Proxy == nil || !c.Proxy.HasProxy() {
		return nil
	}
	return c.Proxy
}

// ApplyDefaults fills empty fields with their default values.
func (c *AgentConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.UIListen == "" {
		c.UIListen = DefaultUIListen
	}
	c.ServerURL = strings.TrimSuffix(c.ServerURL, "/")
}

// ValidateServerURL checks that raw is an absolute http or https URL.
func ValidateServerURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("server URL must use http or https scheme")
	}
	if parsed.Host == "" {
		return errors.New("server URL must include a host")
	}
	return nil
}

// Load reads the configuration from the given path, then applies
// environment overrides (including a .env file next to it) and defaults.
// If the file does not exist, a config built from the environment is returned.
func Load(path string) (*AgentConfig, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), DotEnvFile)); err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadFile reads the configuration file as written, without environment
// overrides or defaults. A missing file yields an empty config.
func LoadFile(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &AgentConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *AgentConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file may hold an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
