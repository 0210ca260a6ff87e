// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package config

import "time"

// Config is the root configuration for the Catalogus daemon.
type Config struct {
	AniList AniListConfig `koanf:"anilist"`
	MAL     MALConfig     `koanf:"mal"`
	Sync    SyncConfig    `koanf:"sync"`
	Alert   AlertConfig   `koanf:"alert"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`

	// Accounts are the tracked external list accounts.
	Accounts []AccountConfig `koanf:"accounts" validate:"dive"`
}

// AniListConfig configures the GraphQL catalog gateway.
type AniListConfig struct {
	// URL is the GraphQL endpoint.
	URL string `koanf:"url" validate:"required,url"`

	// RateLimit is the provider's per-window request ceiling; remaining
	// quota resets to this value when the window expires.
	RateLimit int `koanf:"rate_limit" validate:"gt=0"`

	// LowPriorityThreshold is the quota floor below which low-priority
	// callers wait. Zero disables the gate entirely.
	LowPriorityThreshold int `koanf:"low_priority_threshold" validate:"gte=0"`

	// HighPriority disables the low-priority gate at startup, letting
	// the whole engine run at interactive priority. Development switch.
	HighPriority bool `koanf:"high_priority"`
}

// MALConfig configures the MyAnimeList REST list client.
type MALConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// ClientID is the static credential sent as X-MAL-CLIENT-ID.
	ClientID string `koanf:"client_id"`

	// PageSize is the limit/offset window for list pagination.
	PageSize int `koanf:"page_size" validate:"gt=0"`

	// FetchRetries is how many whole-list attempts are made before a
	// user's refresh is abandoned for the cycle.
	FetchRetries int `koanf:"fetch_retries" validate:"gt=0"`
}

// SyncConfig tunes the incremental refresh scheduler.
//
// The stale divisors and the 24h threshold are hand-tuned values carried
// over unchanged; they bound per-cycle remote load, nothing deeper.
type SyncConfig struct {
	// Interval between scheduled sync cycles.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// StaleAfter is the age past which a synced entity becomes a
	// refresh candidate.
	StaleAfter time.Duration `koanf:"stale_after" validate:"gt=0"`

	// BatchSize is the number of ids per remote query. The provider
	// caps batched id filters at 50.
	BatchSize int `koanf:"batch_size" validate:"gt=0,lte=50"`

	// Per-collection stale divisors: at most len(ids)/divisor aged ids
	// are refreshed per cycle.
	MediaStaleDivisor     int `koanf:"media_stale_divisor" validate:"gt=0"`
	CharacterStaleDivisor int `koanf:"character_stale_divisor" validate:"gt=0"`
	StaffStaleDivisor     int `koanf:"staff_stale_divisor" validate:"gt=0"`
}

// AlertConfig configures the failure-report sink.
type AlertConfig struct {
	// WebhookURL receives failure reports; empty disables reporting.
	WebhookURL string `koanf:"webhook_url" validate:"omitempty,url"`
}

// AccountConfig identifies one tracked external list account. The
// engine refreshes these users' lists every cycle.
type AccountConfig struct {
	Username string `koanf:"username" validate:"required"`
	Service  string `koanf:"service" validate:"oneof=ANILIST MYANIMELIST"`
}

// ServerConfig configures the ops HTTP endpoint (healthz/metrics only).
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gt=0,lte=65535"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		AniList: AniListConfig{
			URL:                  "https://graphql.anilist.co",
			RateLimit:            90,
			LowPriorityThreshold: 70,
		},
		MAL: MALConfig{
			BaseURL:      "https://api.myanimelist.net/v2",
			ClientID:     "",
			PageSize:     1000,
			FetchRetries: 3,
		},
		Sync: SyncConfig{
			Interval:              time.Hour,
			StaleAfter:            24 * time.Hour,
			BatchSize:             50,
			MediaStaleDivisor:     10,
			CharacterStaleDivisor: 20,
			StaffStaleDivisor:     10,
		},
		Alert: AlertConfig{
			WebhookURL: "",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3860,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
