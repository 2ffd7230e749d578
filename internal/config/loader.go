// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path, which may be empty.
func (l *Loader) Path() string { return l.configPath }

// Load builds and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg. Unknown keys and multiple documents
// are errors; keys absent from the file keep their current value.
func loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(EnvDataDir, cfg.DataDir)
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.Platform = ParseString(EnvPlatform, cfg.Platform)

	cfg.API.ListenAddr = ParseString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.PublicURL = ParseString(EnvPublicURL, cfg.API.PublicURL)
	cfg.API.RateLimitRPS = ParseInt(EnvRateLimitRPS, cfg.API.RateLimitRPS)

	cfg.Store.Backend = ParseString(EnvStoreBackend, cfg.Store.Backend)
	cfg.Store.Path = ParseString(EnvStorePath, cfg.Store.Path)
	cfg.Store.Redis.Addr = ParseString(EnvRedisAddr, cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = ParseString(EnvRedisPassword, cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = ParseInt(EnvRedisDB, cfg.Store.Redis.DB)
	cfg.Store.Redis.Prefix = ParseString(EnvRedisPrefix, cfg.Store.Redis.Prefix)

	cfg.Permissions.GrantTTL = ParseDuration(EnvGrantTTL, cfg.Permissions.GrantTTL)
	cfg.Permissions.ActivationWindow = ParseDuration(EnvActivationWindow, cfg.Permissions.ActivationWindow)

	cfg.Thumbnails.Dir = ParseString(EnvThumbnailDir, cfg.Thumbnails.Dir)
	cfg.Thumbnails.FFmpegBin = ParseString(EnvFFmpegBin, cfg.Thumbnails.FFmpegBin)
	cfg.Thumbnails.Quality = ParseFloat(EnvThumbQuality, cfg.Thumbnails.Quality)
	cfg.Thumbnails.OffsetSeconds = ParseFloat(EnvThumbOffset, cfg.Thumbnails.OffsetSeconds)
	cfg.Thumbnails.Timeout = ParseDuration(EnvThumbTimeout, cfg.Thumbnails.Timeout)
	cfg.Thumbnails.Concurrency = ParseInt(EnvThumbConcurrency, cfg.Thumbnails.Concurrency)
	cfg.Thumbnails.RatePerSecond = ParseFloat(EnvThumbRate, cfg.Thumbnails.RatePerSecond)

	cfg.Sessions.IdleTimeout = ParseDuration(EnvSessionIdle, cfg.Sessions.IdleTimeout)

	cfg.Telemetry.Enabled = ParseBool(EnvTraceEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvTraceExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvTraceEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvTraceSampling, cfg.Telemetry.SamplingRate)
}
