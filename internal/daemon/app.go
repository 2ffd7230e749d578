// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vidref/internal/config"
	"github.com/ManuGH/vidref/internal/player"
)

// App owns the long-lived runtime lifecycle (config watcher, reload signal,
// session sweeper) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	sessions     *player.Manager
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder and sessions are optional.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, sessions *player.Manager) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		sessions:     sessions,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		// Best-effort: startup does not fail without a watcher.
		if err := a.cfgHolder.Watch(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.cfgHolder.Stop()

		started := a.cfgHolder.Get()
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.Subscribe(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case next := <-applyCh:
					a.warnRestartRequired(started, next)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.sessions != nil {
		g.Go(func() error {
			a.sessions.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

// warnRestartRequired logs settings that changed on disk but are only read
// at startup.
func (a *App) warnRestartRequired(started, next config.AppConfig) {
	changed := []struct {
		field string
		diff  bool
	}{
		{"data_dir", started.DataDir != next.DataDir},
		{"platform", started.Platform != next.Platform},
		{"api", started.API != next.API},
		{"store", started.Store != next.Store},
		{"permissions", started.Permissions != next.Permissions},
		{"thumbnails", started.Thumbnails != next.Thumbnails},
		{"sessions", started.Sessions != next.Sessions},
		{"telemetry", started.Telemetry != next.Telemetry},
	}
	for _, c := range changed {
		if c.diff {
			a.logger.Warn().
				Str("event", "config.restart_required").
				Str("field", c.field).
				Msg("config change takes effect after restart")
		}
	}
}
