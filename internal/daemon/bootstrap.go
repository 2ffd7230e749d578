// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the vidref components together and manages their
// lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidref/internal/access"
	"github.com/ManuGH/vidref/internal/api"
	"github.com/ManuGH/vidref/internal/blob"
	"github.com/ManuGH/vidref/internal/config"
	"github.com/ManuGH/vidref/internal/fsaccess"
	"github.com/ManuGH/vidref/internal/health"
	"github.com/ManuGH/vidref/internal/kv"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/permission"
	"github.com/ManuGH/vidref/internal/player"
	"github.com/ManuGH/vidref/internal/refstore"
	"github.com/ManuGH/vidref/internal/telemetry"
	"github.com/ManuGH/vidref/internal/thumbnail"
	"github.com/ManuGH/vidref/internal/video/refkey"
)

const serviceName = "vidref"

// readinessKey is read to probe the store; a miss means it is reachable.
const readinessKey = "health:probe"

// Runtime is the set of components built from one configuration.
type Runtime struct {
	Config     config.AppConfig
	Platform   access.Platform
	Store      *kv.Lazy
	Host       *fsaccess.Host
	Refs       *refstore.Store
	Blobs      *blob.Registry
	Thumbnails *thumbnail.Pipeline
	Capability access.Capability
	Sessions   *player.Manager
	Health     *health.Manager
	Server     *api.Server
	Telemetry  *telemetry.Provider
}

// Build creates every component for cfg. Nothing touches the store until the
// first request; an unreachable store fails the readiness probe.
func Build(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	logger := xglog.WithComponent("daemon")

	platform, err := access.ResolvePlatform(cfg.Platform)
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Platform:  platform,
		Store:     kv.NewLazyFromOptions(cfg.KVOptions()),
		Telemetry: tp,
	}
	keys := refkey.NewGenerator()

	deps := access.Deps{Keys: keys}
	switch platform {
	case access.PlatformWeb:
		rt.Host = fsaccess.NewHost(fsaccess.Options{
			GrantTTL:         cfg.Permissions.GrantTTL,
			ActivationWindow: cfg.Permissions.ActivationWindow,
		})
		rt.Refs = refstore.New(rt.Store)
		rt.Blobs = blob.NewRegistry(rt.Host, cfg.API.PublicURL)
		deps.Host = rt.Host
		deps.Store = rt.Refs
		deps.Gate = permission.NewGate(rt.Host)
		deps.Blobs = rt.Blobs
	case access.PlatformNative:
		dir := cfg.ThumbnailDir()
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("thumbnail dir: %w", err)
		}
		rt.Thumbnails = thumbnail.New(newExtractor(cfg, logger), thumbnail.Options{
			Dir:         dir,
			Quality:     cfg.Thumbnails.Quality,
			Offset:      cfg.Thumbnails.Offset(),
			Concurrency: cfg.Thumbnails.Concurrency,
			Index:       rt.Store,
			Keys:        keys,
		})
		deps.Thumbnails = rt.Thumbnails
	}

	rt.Capability, err = access.New(platform, deps)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Sessions = player.NewManager(rt.Capability, player.Config{IdleTimeout: cfg.Sessions.IdleTimeout})
	rt.Health = rt.newHealth()
	rt.Server = api.New(api.Config{
		RateLimitRPS:   cfg.API.RateLimitRPS,
		TracingService: tracingService(cfg),
		Version:        cfg.Version,
	}, api.Deps{
		Capability: rt.Capability,
		Sessions:   rt.Sessions,
		Blobs:      rt.Blobs,
		Health:     rt.Health,
	})

	logger.Info().
		Str(xglog.FieldEvent, "daemon.built").
		Str(xglog.FieldPlatform, string(platform)).
		Str(xglog.FieldBackend, cfg.Store.Backend).
		Str("store_path", cfg.StorePath()).
		Msg("components ready")
	return rt, nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return serviceName
}

// newExtractor returns the ffmpeg extractor, or one that always fails when
// ffmpeg is not installed.
func newExtractor(cfg config.AppConfig, logger zerolog.Logger) thumbnail.Extractor {
	tmp := filepath.Join(cfg.ThumbnailDir(), ".tmp")
	if err := os.MkdirAll(tmp, 0o750); err != nil {
		logger.Warn().Err(err).Msg("thumbnail temp dir unavailable; using system temp")
		tmp = ""
	}
	ex, err := thumbnail.NewFFmpegExtractor(thumbnail.FFmpegOptions{
		Bin:           cfg.Thumbnails.FFmpegBin,
		TempDir:       tmp,
		Timeout:       cfg.Thumbnails.Timeout,
		RatePerSecond: cfg.Thumbnails.RatePerSecond,
	})
	if err != nil {
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "daemon.ffmpeg_missing").
			Msg("thumbnails disabled")
		return thumbnail.UnavailableExtractor{Reason: err.Error()}
	}
	return ex
}

// Ready reports whether the store answers.
func (rt *Runtime) Ready(ctx context.Context) error {
	_, err := rt.Store.Get(ctx, readinessKey)
	if err == nil || errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	return err
}

func (rt *Runtime) newHealth() *health.Manager {
	m := health.NewManager(rt.Config.Version, string(rt.Platform))
	m.RegisterChecker(health.NewFuncChecker("store", rt.Ready))
	if rt.Config.Store.Backend != kv.BackendRedis && rt.Config.Store.Backend != kv.BackendMemory {
		m.RegisterChecker(health.NewWritableDirChecker("data_dir", rt.Config.DataDir))
	}
	if rt.Platform == access.PlatformNative {
		m.RegisterChecker(health.NewWritableDirChecker("thumbnail_dir", rt.Config.ThumbnailDir()))
		m.RegisterChecker(health.NewBinaryChecker("ffmpeg", rt.Config.Thumbnails.FFmpegBin))
	}
	return m
}

// RegisterHooks registers the runtime's teardown on m. Hooks run in reverse,
// so sessions and blob URLs go first and the store closes last.
func (rt *Runtime) RegisterHooks(m Manager) {
	m.RegisterShutdownHook("telemetry", func(ctx context.Context) error {
		return rt.Telemetry.Shutdown(ctx)
	})
	m.RegisterShutdownHook("store", func(context.Context) error {
		return rt.Store.Close()
	})
	if rt.Host != nil {
		m.RegisterShutdownHook("fsaccess", func(context.Context) error {
			rt.Host.Close()
			return nil
		})
	}
	if rt.Thumbnails != nil {
		m.RegisterShutdownHook("thumbnails", func(context.Context) error {
			rt.Thumbnails.Wait()
			return nil
		})
	}
	if rt.Blobs != nil {
		m.RegisterShutdownHook("blobs", func(context.Context) error {
			if n := rt.Blobs.RevokeAll(); n > 0 {
				logger := xglog.WithComponent("daemon")
				logger.Info().Int("count", n).Msg("revoked outstanding blob urls")
			}
			return nil
		})
	}
	m.RegisterShutdownHook("sessions", func(context.Context) error {
		rt.Sessions.CloseAll()
		return nil
	})
}

// Close tears the runtime down without a Manager.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Sessions != nil {
		rt.Sessions.CloseAll()
	}
	if rt.Blobs != nil {
		rt.Blobs.RevokeAll()
	}
	if rt.Thumbnails != nil {
		rt.Thumbnails.Wait()
	}
	if rt.Host != nil {
		rt.Host.Close()
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	if rt.Telemetry != nil {
		errs = append(errs, rt.Telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
