// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads vidref configuration. Values come from, in order of
// precedence, VIDREF_* environment variables, a strict YAML file and
// built-in defaults.
package config

import (
	"path/filepath"
	"time"

	"github.com/ManuGH/vidref/internal/kv"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	DataDir     string            `yaml:"data_dir"`
	LogLevel    string            `yaml:"log_level"`
	Platform    string            `yaml:"platform"`
	API         APIConfig         `yaml:"api"`
	Store       StoreConfig       `yaml:"store"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Thumbnails  ThumbnailsConfig  `yaml:"thumbnails"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Version is set from the binary, never from file or env.
	Version string `yaml:"-"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// PublicURL is the origin blob URLs are minted under.
	PublicURL string `yaml:"public_url"`
	// RateLimitRPS limits API requests per client IP. Zero disables it.
	RateLimitRPS int `yaml:"rate_limit_rps"`
}

type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type PermissionsConfig struct {
	// GrantTTL bounds in-memory grants. Zero keeps them until restart.
	GrantTTL         time.Duration `yaml:"grant_ttl"`
	ActivationWindow time.Duration `yaml:"activation_window"`
}

type ThumbnailsConfig struct {
	Dir           string        `yaml:"dir"`
	FFmpegBin     string        `yaml:"ffmpeg_bin"`
	Quality       float64       `yaml:"quality"`
	OffsetSeconds float64       `yaml:"offset_seconds"`
	Timeout       time.Duration `yaml:"timeout"`
	Concurrency   int           `yaml:"concurrency"`
	RatePerSecond float64       `yaml:"rate_per_second"`
}

// Offset returns OffsetSeconds as a duration.
func (t ThumbnailsConfig) Offset() time.Duration {
	return time.Duration(t.OffsetSeconds * float64(time.Second))
}

type SessionsConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		DataDir:  "/var/lib/vidref",
		LogLevel: "info",
		Platform: "auto",
		API: APIConfig{
			ListenAddr:   ":8088",
			PublicURL:    "http://127.0.0.1:8088",
			RateLimitRPS: 20,
		},
		Store: StoreConfig{
			Backend: kv.BackendBadger,
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "vidref:",
			},
		},
		Permissions: PermissionsConfig{
			ActivationWindow: 5 * time.Second,
		},
		Thumbnails: ThumbnailsConfig{
			FFmpegBin:     "ffmpeg",
			Quality:       0.85,
			OffsetSeconds: 1,
			Timeout:       20 * time.Second,
			Concurrency:   2,
			RatePerSecond: 4,
		},
		Sessions: SessionsConfig{
			IdleTimeout: 30 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// StorePath returns the configured store path, or the backend's default
// location under the data dir.
func (c AppConfig) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	switch c.Store.Backend {
	case kv.BackendSQLite:
		return filepath.Join(c.DataDir, "vidref.db")
	default:
		return filepath.Join(c.DataDir, "store")
	}
}

// ThumbnailDir returns the thumbnails directory.
func (c AppConfig) ThumbnailDir() string {
	if c.Thumbnails.Dir != "" {
		return c.Thumbnails.Dir
	}
	return filepath.Join(c.DataDir, "thumbnails")
}

// KVOptions maps the store section onto kv.Options.
func (c AppConfig) KVOptions() kv.Options {
	return kv.Options{
		Backend: c.Store.Backend,
		Path:    c.StorePath(),
		Redis: kv.RedisOptions{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
			Prefix:   c.Store.Redis.Prefix,
		},
	}
}
