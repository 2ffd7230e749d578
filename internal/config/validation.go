// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidref/internal/kv"
	"github.com/ManuGH/vidref/internal/metrics"
	"github.com/ManuGH/vidref/internal/validate"
)

const maxThumbnailConcurrency = 16

// Validate checks cfg and reports every problem at once. It creates the data
// directory if it is missing.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("data_dir", cfg.DataDir, false)
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		v.AddError("log_level", "must be one of trace, debug, info, warn, error", cfg.LogLevel)
	}
	v.OneOf("platform", cfg.Platform, []string{"auto", "web", "native"})

	v.ListenAddr("api.listen_addr", cfg.API.ListenAddr)
	v.URL("api.public_url", cfg.API.PublicURL, []string{"http", "https"})
	v.NonNegative("api.rate_limit_rps", cfg.API.RateLimitRPS)

	v.OneOf("store.backend", cfg.Store.Backend, kv.Backends())
	if cfg.Store.Backend == kv.BackendRedis {
		v.NotEmpty("store.redis.addr", cfg.Store.Redis.Addr)
		v.Range("store.redis.db", cfg.Store.Redis.DB, 0, 15)
	}

	if cfg.Permissions.GrantTTL != 0 {
		v.Duration("permissions.grant_ttl", cfg.Permissions.GrantTTL, time.Second)
	}
	v.Duration("permissions.activation_window", cfg.Permissions.ActivationWindow, 100*time.Millisecond)

	v.FloatRange("thumbnails.quality", cfg.Thumbnails.Quality, 0.01, 1)
	if cfg.Thumbnails.OffsetSeconds < 0 {
		v.AddError("thumbnails.offset_seconds", "cannot be negative", cfg.Thumbnails.OffsetSeconds)
	}
	v.Duration("thumbnails.timeout", cfg.Thumbnails.Timeout, time.Second)
	v.Positive("thumbnails.concurrency", cfg.Thumbnails.Concurrency)
	if cfg.Thumbnails.Concurrency > maxThumbnailConcurrency {
		v.AddError("thumbnails.concurrency", fmt.Sprintf("value must be at most %d", maxThumbnailConcurrency), cfg.Thumbnails.Concurrency)
	}
	if cfg.Thumbnails.RatePerSecond < 0 {
		v.AddError("thumbnails.rate_per_second", "cannot be negative", cfg.Thumbnails.RatePerSecond)
	}

	if cfg.Sessions.IdleTimeout < 0 {
		v.AddError("sessions.idle_timeout", "cannot be negative", cfg.Sessions.IdleTimeout)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if !v.IsValid() {
		metrics.IncConfigValidationError()
	}
	return v.Err()
}
