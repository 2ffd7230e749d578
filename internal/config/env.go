// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidref/internal/log"
)

// Environment variable names.
const (
	EnvDataDir          = "VIDREF_DATA_DIR"
	EnvLogLevel         = "VIDREF_LOG_LEVEL"
	EnvPlatform         = "VIDREF_PLATFORM"
	EnvListenAddr       = "VIDREF_LISTEN_ADDR"
	EnvPublicURL        = "VIDREF_PUBLIC_URL"
	EnvRateLimitRPS     = "VIDREF_RATE_LIMIT_RPS"
	EnvStoreBackend     = "VIDREF_STORE_BACKEND"
	EnvStorePath        = "VIDREF_STORE_PATH"
	EnvRedisAddr        = "VIDREF_REDIS_ADDR"
	EnvRedisPassword    = "VIDREF_REDIS_PASSWORD"
	EnvRedisDB          = "VIDREF_REDIS_DB"
	EnvRedisPrefix      = "VIDREF_REDIS_PREFIX"
	EnvGrantTTL         = "VIDREF_GRANT_TTL"
	EnvActivationWindow = "VIDREF_ACTIVATION_WINDOW"
	EnvThumbnailDir     = "VIDREF_THUMBNAIL_DIR"
	EnvFFmpegBin        = "VIDREF_FFMPEG_BIN"
	EnvThumbQuality     = "VIDREF_THUMBNAIL_QUALITY"
	EnvThumbOffset      = "VIDREF_THUMBNAIL_OFFSET_SECONDS"
	EnvThumbTimeout     = "VIDREF_THUMBNAIL_TIMEOUT"
	EnvThumbConcurrency = "VIDREF_THUMBNAIL_CONCURRENCY"
	EnvThumbRate        = "VIDREF_THUMBNAIL_RATE"
	EnvSessionIdle      = "VIDREF_SESSION_IDLE_TIMEOUT"
	EnvTraceEnabled     = "VIDREF_TELEMETRY_ENABLED"
	EnvTraceExporter    = "VIDREF_TELEMETRY_EXPORTER"
	EnvTraceEndpoint    = "VIDREF_TELEMETRY_ENDPOINT"
	EnvTraceSampling    = "VIDREF_TELEMETRY_SAMPLING_RATE"
)

// ParseString reads key from the environment or returns defaultValue. An
// empty variable counts as unset.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(xglog.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	lowerKey := strings.ToLower(key)
	if strings.Contains(lowerKey, "password") || strings.Contains(lowerKey, "token") {
		logger.Debug().Str("key", key).Bool("sensitive", true).Str("source", "environment").Msg("using environment variable")
	} else {
		logger.Debug().Str("key", key).Str("value", value).Str("source", "environment").Msg("using environment variable")
	}
	return value
}

// ParseInt reads an integer, falling back to defaultValue when the variable
// is unset, empty or malformed.
func ParseInt(key string, defaultValue int) int {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		warnInvalid(key, v, "integer")
		return defaultValue
	}
	return i
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnInvalid(key, v, "duration")
		return defaultValue
	}
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		warnInvalid(key, v, "boolean")
		return defaultValue
	}
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		warnInvalid(key, v, "float")
		return defaultValue
	}
	return f
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func warnInvalid(key, value, kind string) {
	logger := xglog.WithComponent("config")
	logger.Warn().
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, using default", kind)
}
