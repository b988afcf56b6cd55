// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for a Concord server.
type Config struct {
	// Listen configures the WebSocket endpoint.
	Listen ListenConfig `yaml:"listen"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Directory configures the external identity provider.
	Directory DirectoryConfig `yaml:"directory"`

	// KeySealing configures at-rest encryption of community private
	// keys. When unset, keys are stored unsealed.
	KeySealing KeySealingConfig `yaml:"key_sealing"`

	// Handshake configures the authentication handshake.
	Handshake HandshakeConfig `yaml:"handshake"`

	// Log configures the server logger.
	Log LogConfig `yaml:"log"`

	// Bootstrap names the optional first-start community manifest.
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ListenConfig configures the WebSocket endpoint.
type ListenConfig struct {
	// Address is the TCP listen address.
	// Default: :7410
	Address string `yaml:"address"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Data is the base directory for persisted community state. Each
	// community lives in its own subdirectory.
	Data string `yaml:"data"`
}

// DirectoryConfig configures the external identity provider that
// resolves claimed user IDs during the handshake.
type DirectoryConfig struct {
	// BaseURL is the provider root; profiles are served from
	// {base_url}/users/{id}.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single resolution request, as a Go duration
	// string. Default: 10s.
	Timeout string `yaml:"timeout"`
}

// KeySealingConfig configures age sealing of community private keys.
type KeySealingConfig struct {
	// IdentityFile is the path to an age X25519 identity used to
	// unseal keys at load time.
	IdentityFile string `yaml:"identity_file"`

	// Recipients are the age public keys new community keys are
	// sealed to. Defaults to the identity file's own recipient when
	// empty and an identity is configured.
	Recipients []string `yaml:"recipients"`
}

// HandshakeConfig configures the authentication handshake.
type HandshakeConfig struct {
	// Deadline is how long a connection may remain unauthenticated
	// before it is closed, as a Go duration string. Default: 60s.
	Deadline string `yaml:"deadline"`
}

// LogConfig configures the server logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is json or text. Default: json.
	Format string `yaml:"format"`
}

// BootstrapConfig names the first-start community manifest.
type BootstrapConfig struct {
	// ManifestFile is the path to a JSONC manifest of communities to
	// create when they are not already persisted. Optional.
	ManifestFile string `yaml:"manifest_file"`
}

// Default returns the default configuration. These defaults are the
// base the config file is merged onto; the file itself is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Listen: ListenConfig{
			Address: ":7410",
		},
		Paths: PathsConfig{
			Data: filepath.Join(homeDir, ".local", "share", "concord"),
		},
		Directory: DirectoryConfig{
			Timeout: "10s",
		},
		Handshake: HandshakeConfig{
			Deadline: "60s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from the CONCORD_CONFIG environment
// variable. There are no fallbacks: if CONCORD_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CONCORD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CONCORD_CONFIG environment variable not set; " +
			"set it to the path of your concord.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override its values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.Data = expandVars(c.Paths.Data, vars)
	c.KeySealing.IdentityFile = expandVars(c.KeySealing.IdentityFile, vars)
	c.Bootstrap.ManifestFile = expandVars(c.Bootstrap.ManifestFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at
// once.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Address == "" {
		errs = append(errs, fmt.Errorf("listen.address is required"))
	}
	if c.Paths.Data == "" {
		errs = append(errs, fmt.Errorf("paths.data is required"))
	}
	if c.Directory.BaseURL == "" {
		errs = append(errs, fmt.Errorf("directory.base_url is required"))
	}
	if _, err := time.ParseDuration(c.Directory.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("directory.timeout: %w", err))
	}
	if _, err := time.ParseDuration(c.Handshake.Deadline); err != nil {
		errs = append(errs, fmt.Errorf("handshake.deadline: %w", err))
	}
	if len(c.KeySealing.Recipients) > 0 && c.KeySealing.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("key_sealing.recipients is set but key_sealing.identity_file is not; sealed keys could never be loaded again"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// DirectoryTimeout returns the parsed directory request timeout. Call
// Validate first; a malformed duration falls back to zero.
func (c *Config) DirectoryTimeout() time.Duration {
	parsed, _ := time.ParseDuration(c.Directory.Timeout)
	return parsed
}

// HandshakeDeadline returns the parsed handshake deadline. Call
// Validate first; a malformed duration falls back to zero, which
// selects the built-in default.
func (c *Config) HandshakeDeadline() time.Duration {
	parsed, _ := time.ParseDuration(c.Handshake.Deadline)
	return parsed
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
}

// EnsurePaths creates the configured data directory if it does not
// exist. Community state holds key material, so the tree is not
// group-readable.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.Data, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.Data, err)
	}
	return nil
}
