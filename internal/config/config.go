// Package config loads and validates the TOML configuration for the mcsci
// binaries.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig drives one mcscid instance. An empty Extensions list enables
// every built-in extension; a non-empty list is an allow-list.
type ServerConfig struct {
	Name         string   `toml:"name"`
	Listen       string   `toml:"listen"`
	Stdio        bool     `toml:"stdio"`
	MaxLineBytes int      `toml:"max_line_bytes"`
	LogLevel     string   `toml:"log_level"`
	Extensions   []string `toml:"extensions"`
}

// ExtensionEnabled reports whether the named extension should register.
func (c ServerConfig) ExtensionEnabled(name string) bool {
	if len(c.Extensions) == 0 {
		return true
	}
	for _, n := range c.Extensions {
		if n == name {
			return true
		}
	}
	return false
}

// ClientConfig drives the mcsci REPL.
type ClientConfig struct {
	Addr           string `toml:"addr"`
	ConnectRetries int    `toml:"connect_retries"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:         "mcscid",
		Listen:       ":7908",
		MaxLineBytes: 64 * 1024,
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:           "127.0.0.1:7908",
		ConnectRetries: 3,
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if !cfg.Stdio && strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("server config missing listen addr")
	}
	if cfg.MaxLineBytes <= 0 {
		return fmt.Errorf("server config max_line_bytes must be positive")
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("client config missing addr")
	}
	if cfg.ConnectRetries < 0 {
		return fmt.Errorf("client config connect_retries must not be negative")
	}
	return nil
}
