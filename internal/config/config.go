// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig holds the origin and credentials for a single legacy source.
type SourceConfig struct {
	Alias   string `yaml:"alias"`    // e.g. "wall", "teampulse"
	BaseURL string `yaml:"base_url"` // origin root, no trailing slash
	Email   string `yaml:"email"`    // login identity
	Secret  string `yaml:"secret"`   // password or numeric code; the negotiator tries both shapes
}

// Config holds all configuration for the migration pipeline.
type Config struct {
	Sources []SourceConfig

	// Destination
	DatabaseURL string
	OwnerEmail  string // admin account that imported anonymous posts attribute to
	APIBaseURL  string // destination web API root, used by the --via-api transport
	APICode     string // login code for the owner account on the destination API

	// Redis (cross-run dedup for the API transport)
	RedisURL string

	// Harvest
	SnapshotDir    string
	RequestTimeout time.Duration
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Sources []struct {
		Alias   string `yaml:"alias"`
		BaseURL string `yaml:"base_url"`
		Email   string `yaml:"email"`
		Secret  string `yaml:"secret"`
	} `yaml:"sources"`
	Destination struct {
		DatabaseURL string `yaml:"database_url"`
		OwnerEmail  string `yaml:"owner_email"`
		APIBaseURL  string `yaml:"api_base_url"`
		APICode     string `yaml:"api_code"`
	} `yaml:"destination"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		DatabaseURL:    firstNonEmpty(raw.Destination.DatabaseURL, os.Getenv("DATABASE_URL")),
		OwnerEmail:     firstNonEmpty(raw.Destination.OwnerEmail, os.Getenv("OWNER_EMAIL")),
		APIBaseURL:     strings.TrimRight(firstNonEmpty(raw.Destination.APIBaseURL, os.Getenv("DEST_API_URL")), "/"),
		APICode:        firstNonEmpty(raw.Destination.APICode, os.Getenv("DEST_API_CODE")),
		RedisURL:       firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		SnapshotDir:    firstNonEmpty(raw.SnapshotDir, envOrDefault("SNAPSHOT_DIR", "snapshots")),
		RequestTimeout: envOrDefaultDuration("REQUEST_TIMEOUT", 15*time.Second),
	}

	for _, s := range raw.Sources {
		sc := SourceConfig{
			Alias:   s.Alias,
			BaseURL: strings.TrimRight(s.BaseURL, "/"),
			Email:   s.Email,
			Secret:  s.Secret,
		}

		// Skip sources with empty credentials (commented out in YAML)
		if sc.BaseURL == "" || sc.Email == "" || sc.Secret == "" {
			continue
		}

		if sc.Alias == "" {
			return nil, fmt.Errorf("source %s has no alias", sc.BaseURL)
		}

		cfg.Sources = append(cfg.Sources, sc)
	}

	// An empty source list is valid: snapshot replays need only the
	// destination settings. Harvest-path callers enforce their own checks.
	return cfg, nil
}

// Source returns the source with the given alias, or nil if not configured.
func (c *Config) Source(alias string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Alias == alias {
			return &c.Sources[i]
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
