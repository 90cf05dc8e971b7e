// Package config defines the application configuration structures.
//
// Settings are read from ~/.onyxprism/config.yaml, then overridden by
// ONYX_* environment variables, then by command-line flags. Separated
// from cmd so other packages (api, ssh, tui) can depend on config
// without importing Cobra.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the backend origin used when nothing else is configured.
const DefaultAPIURL = "http://127.0.0.1:8000"

// AppConfig is the top-level config file structure.
type AppConfig struct {
	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`
	SSH SSHConfig `yaml:"ssh" envPrefix:"SSH_"`
}

// APIConfig locates the OnyxPrism backend.
type APIConfig struct {
	URL string `yaml:"url" env:"API_URL"`
	// Semantic extraction and vector insertion run for minutes on
	// large schemas.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error
	File  string `yaml:"file"  env:"LOG_FILE"`  // empty: ~/.onyxprism/logs/app.log
}

// SSHConfig holds SSH tunnel settings for reaching the API origin
// through a bastion host.
type SSHConfig struct {
	Enabled       bool   `yaml:"enabled"        env:"ENABLED"`
	Host          string `yaml:"host"           env:"HOST"`
	Port          int    `yaml:"port"           env:"PORT"`
	User          string `yaml:"user"           env:"USER"`
	KeyPath       string `yaml:"key_path"       env:"KEY"`
	KeyPassphrase string `yaml:"key_passphrase" env:"KEY_PASSPHRASE"`
	// KnownHosts is an OpenSSH known_hosts file. Empty disables host
	// key verification.
	KnownHosts string `yaml:"known_hosts" env:"KNOWN_HOSTS"`
}

// Default returns sensible defaults.
func Default() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			URL:     DefaultAPIURL,
			Timeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		SSH: SSHConfig{
			Port: 22,
		},
	}
}

// Dir returns ~/.onyxprism, the home of every persisted file.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".onyxprism"), nil
}

// DefaultPath returns ~/.onyxprism/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file at path (missing file: defaults) and
// applies ONYX_* environment overrides.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ONYX_"}); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks values that would otherwise fail far from their source.
func (c *AppConfig) Validate() error {
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("api.url must start with http:// or https://, got %q", c.API.URL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.SSH.Enabled && (c.SSH.Host == "" || c.SSH.User == "") {
		return fmt.Errorf("ssh tunnel enabled but ssh.host or ssh.user is empty")
	}
	return nil
}

// APIURL returns the base URL without a trailing slash.
func (c *AppConfig) APIURL() string {
	return strings.TrimRight(c.API.URL, "/")
}
