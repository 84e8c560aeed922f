// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package config loads and validates Marquee configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// MARQUEE_-prefixed environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/dbeaumont-media/marquee/internal/validation"
)

// Config is the root configuration for the Marquee server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	TMDB    TMDBConfig    `koanf:"tmdb"`
	Cache   CacheConfig   `koanf:"cache"`
	Ranking RankingConfig `koanf:"ranking"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8745".
	Addr string `koanf:"addr" validate:"required"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed CORS origins. Empty disables cross-origin access.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests is the per-IP request budget per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// TMDBConfig holds settings for the external person-popularity service.
type TMDBConfig struct {
	// BaseURL is the API root, e.g. "https://api.themoviedb.org".
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// APIKey is the bearer token for the popularity service.
	// Empty is permitted: lookups then fail and rankings stay in baseline order.
	APIKey string `koanf:"api_key"`

	Timeout time.Duration `koanf:"timeout"`

	// RatePerSecond caps outgoing lookup calls client-side.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gt=0"`
	RateBurst     int     `koanf:"rate_burst" validate:"gte=1"`
}

// CacheConfig holds enrichment cache settings.
type CacheConfig struct {
	// BatchSize bounds lookup concurrency: within a batch all lookups run
	// concurrently, batches run sequentially.
	BatchSize int `koanf:"batch_size" validate:"gte=1,lte=64"`

	// PersistPath is the badger directory for the on-disk popularity store.
	// Empty disables persistence; the cache is rebuilt from empty each start.
	PersistPath string `koanf:"persist_path"`

	// TTL bounds how long a successfully resolved score survives in the
	// persistent store before it is re-fetched.
	TTL time.Duration `koanf:"ttl"`

	// FailureTTL bounds how long a failed lookup stays recorded on disk.
	// Shorter than TTL so transient upstream failures are retried across
	// restarts without hammering the service.
	FailureTTL time.Duration `koanf:"failure_ttl"`

	// GCInterval is how often the badger value log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// RankingConfig holds stabilizer settings.
type RankingConfig struct {
	// Debounce is the quiet period required after an item-count change
	// before a recomputation cycle starts.
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`

	// WindowSize is the default number of visible entries resolved in the
	// first enrichment phase.
	WindowSize int `koanf:"window_size" validate:"gte=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if c.Cache.FailureTTL > c.Cache.TTL {
		return fmt.Errorf("cache.failure_ttl (%s) must not exceed cache.ttl (%s)", c.Cache.FailureTTL, c.Cache.TTL)
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	if c.TMDB.RatePerSecond < float64(c.Cache.BatchSize) {
		// A batch should not self-throttle under the default limiter.
		return fmt.Errorf("tmdb.rate_per_second (%g) must be at least cache.batch_size (%d)", c.TMDB.RatePerSecond, c.Cache.BatchSize)
	}

	return nil
}
