// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads Gatehouse configuration from YAML files and flags.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/xdg"
)

// Defaults for optional settings.
const (
	DefaultLogFormat   = "json"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultTagSuffix   = "_login_tag"
	DefaultSaltLength  = 6
)

// Config holds the settings the auth core and its CLI need. The database
// URL may come from configuration or the DATABASE_URL environment variable;
// the environment wins when both are set.
type Config struct {
	DatabaseURL string   `koanf:"database_url"`
	LogFormat   string   `koanf:"log_format"`
	MetricsAddr string   `koanf:"metrics_addr"`
	TagSuffix   string   `koanf:"tag_suffix"`
	SaltLength  int      `koanf:"salt_length"`
	Platforms   []string `koanf:"platforms"`
}

// Load reads configuration from an optional YAML file, overlays flag
// values, and applies defaults. An empty path falls back to the XDG
// config file when one exists; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		if candidate := xdg.ConfigFile(); fileExists(candidate) {
			path = candidate
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if env := os.Getenv("DATABASE_URL"); env != "" {
		cfg.DatabaseURL = env
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileExists returns true if the file exists. Permission errors count as
// existing so a real config is never silently skipped.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

func (c *Config) applyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.TagSuffix == "" {
		c.TagSuffix = DefaultTagSuffix
	}
	if c.SaltLength <= 0 {
		c.SaltLength = DefaultSaltLength
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	for _, p := range c.Platforms {
		if p == "" {
			return oops.Code("CONFIG_INVALID").Errorf("platform names cannot be empty")
		}
	}
	return nil
}
