// Package config loads and edits the TOML configuration file. All keys
// have defaults; a missing file is a valid configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration tree. Zero values are replaced by
// defaults in Load.
type Config struct {
	Network  Network             `toml:"network"`
	Install  Install             `toml:"install"`
	Provider map[string]Provider `toml:"provider"`
}

// Network controls HTTP behavior for all providers.
type Network struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	Retries        int `toml:"retries"`
}

// Install controls installation behavior.
type Install struct {
	RequireChecksum      bool `toml:"require_checksum"`
	CreateDesktopEntries bool `toml:"create_desktop_entries"`
}

// Provider holds per-provider credentials and endpoint overrides.
type Provider struct {
	Token     string `toml:"token"`
	BaseURL   string `toml:"base_url"`
	PublicKey string `toml:"public_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Network: Network{
			TimeoutSeconds: 30,
			Retries:        3,
		},
		Install: Install{
			RequireChecksum:      false,
			CreateDesktopEntries: true,
		},
		Provider: map[string]Provider{},
	}
}

// Load reads the configuration at path, layering it over the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Provider == nil {
		cfg.Provider = map[string]Provider{}
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// accessor reads and writes one config key as a string.
type accessor struct {
	get func(*Config) string
	set func(*Config, string) error
}

func intSetter(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("expected non-negative integer, got %q", v)
		}
		*dst(c) = n
		return nil
	}
}

func boolSetter(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected boolean value, got %q", v)
		}
		*dst(c) = b
		return nil
	}
}

func providerField(name string, field func(*Provider) *string) accessor {
	return accessor{
		get: func(c *Config) string {
			p := c.Provider[name]
			return *field(&p)
		},
		set: func(c *Config, v string) error {
			p := c.Provider[name]
			*field(&p) = v
			c.Provider[name] = p
			return nil
		},
	}
}

func buildKeys() map[string]accessor {
	keys := map[string]accessor{
		"network.timeout_seconds": {
			get: func(c *Config) string { return strconv.Itoa(c.Network.TimeoutSeconds) },
			set: intSetter(func(c *Config) *int { return &c.Network.TimeoutSeconds }),
		},
		"network.retries": {
			get: func(c *Config) string { return strconv.Itoa(c.Network.Retries) },
			set: intSetter(func(c *Config) *int { return &c.Network.Retries }),
		},
		"install.require_checksum": {
			get: func(c *Config) string { return strconv.FormatBool(c.Install.RequireChecksum) },
			set: boolSetter(func(c *Config) *bool { return &c.Install.RequireChecksum }),
		},
		"install.create_desktop_entries": {
			get: func(c *Config) string { return strconv.FormatBool(c.Install.CreateDesktopEntries) },
			set: boolSetter(func(c *Config) *bool { return &c.Install.CreateDesktopEntries }),
		},
	}
	for _, name := range []string{"github", "gitlab", "gitea"} {
		keys["provider."+name+".token"] = providerField(name, func(p *Provider) *string { return &p.Token })
		keys["provider."+name+".base_url"] = providerField(name, func(p *Provider) *string { return &p.BaseURL })
		keys["provider."+name+".public_key"] = providerField(name, func(p *Provider) *string { return &p.PublicKey })
	}
	return keys
}

var configKeys = buildKeys()

// Keys returns all settable key paths, sorted.
func Keys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get reads one key by dot path.
func (c *Config) Get(key string) (string, error) {
	acc, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return acc.get(c), nil
}

// Set writes one key by dot path, coercing the value to the key's type.
func (c *Config) Set(key, value string) error {
	acc, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	return acc.set(c, value)
}

// Reset restores one key to its default value.
func (c *Config) Reset(key string) error {
	acc, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	return acc.set(c, acc.get(Default()))
}

// All returns every key with its current value, sorted by key.
func (c *Config) All() map[string]string {
	out := make(map[string]string, len(configKeys))
	for key, acc := range configKeys {
		out[key] = acc.get(c)
	}
	return out
}
