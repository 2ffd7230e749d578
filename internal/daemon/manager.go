// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidref/internal/log"
)

// ShutdownHook releases one runtime component. Hooks run last-registered
// first, after the HTTP server has drained.
type ShutdownHook func(ctx context.Context) error

// Manager owns the HTTP server lifecycle and the teardown of everything
// registered with it.
type Manager interface {
	// Start binds the listener and blocks until ctx ends or the server fails.
	Start(ctx context.Context) error
	// Shutdown drains the server and runs the hooks. Later calls are no-ops.
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// Addr is the bound address, empty until Start has bound it.
	Addr() string
}

type lifecycle int

const (
	stateIdle lifecycle = iota
	stateRunning
	stateStopped
)

type namedHook struct {
	name string
	run  ShutdownHook
}

type manager struct {
	cfg     ServerConfig
	handler http.Handler
	logger  zerolog.Logger

	mu    sync.Mutex
	state lifecycle
	srv   *http.Server
	addr  string
	hooks []namedHook
}

// NewManager validates deps and returns an idle Manager.
func NewManager(cfg ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultServerConfig("").ShutdownTimeout
	}
	return &manager{
		cfg:     cfg,
		handler: deps.APIHandler,
		logger:  deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: nil start context")
	}

	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = stateRunning
	m.mu.Unlock()

	serveErr, err := m.serve()
	if err != nil {
		m.logger.Error().Err(err).
			Str(xglog.FieldEvent, "server.bind_failed").
			Str("listen", m.cfg.ListenAddr).
			Msg("cannot bind API listener")
		return errors.Join(fmt.Errorf("bind %s: %w", m.cfg.ListenAddr, err), m.stop(ctx))
	}

	select {
	case err := <-serveErr:
		m.logger.Error().Err(err).Str(xglog.FieldEvent, "server.failed").Msg("API server failed; stopping")
		if stopErr := m.stop(ctx); stopErr != nil {
			return errors.Join(err, stopErr)
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str(xglog.FieldEvent, "server.stop_requested").Msg("stopping")
		return m.stop(ctx)
	}
}

// serve binds the listener and serves in the background. A serve failure
// other than a clean close is delivered on the returned channel.
func (m *manager) serve() (<-chan error, error) {
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           m.handler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
		MaxHeaderBytes:    m.cfg.MaxHeaderBytes,
	}

	m.mu.Lock()
	m.srv = srv
	m.addr = ln.Addr().String()
	m.mu.Unlock()

	m.logger.Info().
		Str(xglog.FieldEvent, "server.listening").
		Str("addr", ln.Addr().String()).
		Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
		Msg("API server listening")

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("serve: %w", err)
		}
	}()
	return errc, nil
}

// stop shuts down detached from ctx so a cancelled parent still drains.
func (m *manager) stop(ctx context.Context) error {
	return m.Shutdown(context.WithoutCancel(ctx))
}

func (m *manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: nil shutdown context")
	}

	m.mu.Lock()
	switch m.state {
	case stateIdle:
		m.mu.Unlock()
		return ErrManagerNotStarted
	case stateStopped:
		m.mu.Unlock()
		return nil
	}
	m.state = stateStopped
	srv := m.srv
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			// Blob streams still open at the deadline are cut.
			_ = srv.Close()
			errs = append(errs, fmt.Errorf("drain API server: %w", err))
		}
	}
	errs = append(errs, m.runHooks(ctx, hooks)...)

	if len(errs) > 0 {
		m.logger.Error().
			Str(xglog.FieldEvent, "server.stopped").
			Int("errors", len(errs)).
			Msg("stopped with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str(xglog.FieldEvent, "server.stopped").Msg("stopped cleanly")
	return nil
}

func (m *manager) runHooks(ctx context.Context, hooks []namedHook) []error {
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		err := h.run(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str(xglog.FieldEvent, "server.hook").
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook finished")
	}
	return errs
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, run: hook})
}
