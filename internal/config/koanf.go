// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/catalogus/config.yaml",
	"/etc/catalogus/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults. The result is validated before it
// is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// ANILIST_LOW_PRIORITY_THRESHOLD -> anilist.low_priority_threshold
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first path found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables are skipped so random environment noise
// can't pollute the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"ANILIST_URL":                    "anilist.url",
		"ANILIST_RATE_LIMIT":             "anilist.rate_limit",
		"ANILIST_LOW_PRIORITY_THRESHOLD": "anilist.low_priority_threshold",
		"ANILIST_HIGH_PRIORITY":          "anilist.high_priority",

		"MAL_BASE_URL":      "mal.base_url",
		"MAL_CLIENT_ID":     "mal.client_id",
		"MAL_PAGE_SIZE":     "mal.page_size",
		"MAL_FETCH_RETRIES": "mal.fetch_retries",

		"SYNC_INTERVAL":                "sync.interval",
		"SYNC_STALE_AFTER":             "sync.stale_after",
		"SYNC_BATCH_SIZE":              "sync.batch_size",
		"SYNC_MEDIA_STALE_DIVISOR":     "sync.media_stale_divisor",
		"SYNC_CHARACTER_STALE_DIVISOR": "sync.character_stale_divisor",
		"SYNC_STAFF_STALE_DIVISOR":     "sync.staff_stale_divisor",

		"ALERT_WEBHOOK_URL": "alert.webhook_url",

		"HTTP_HOST": "server.host",
		"HTTP_PORT": "server.port",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
