// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/vidref/internal/config"
	"github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/player"
)

type fakeManager struct {
	started chan struct{}
	err     error
}

func (f *fakeManager) Start(ctx context.Context) error {
	close(f.started)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func (f *fakeManager) Shutdown(context.Context) error            { return nil }
func (f *fakeManager) RegisterShutdownHook(string, ShutdownHook) {}
func (f *fakeManager) Addr() string                              { return "" }

func TestApp_RunRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_RunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\nplatform: web\n"), 0o600))
	loader := config.NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewHolder(cfg, loader)

	mgr := &fakeManager{started: make(chan struct{})}
	sessions := player.NewManager(nil, player.Config{IdleTimeout: time.Hour, Interval: 10 * time.Millisecond})
	app := NewApp(log.WithComponent("test"), mgr, holder, sessions)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	<-mgr.started

	// The watcher reloads a changed file; startup-only settings only warn.
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\nplatform: native\n"), 0o600))
	require.Eventually(t, func() bool { return holder.Get().Platform == "native" }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_ManagerFailureStopsRun(t *testing.T) {
	boom := errors.New("listen failed")
	mgr := &fakeManager{started: make(chan struct{}), err: boom}
	sessions := player.NewManager(nil, player.Config{IdleTimeout: time.Hour})
	app := NewApp(log.WithComponent("test"), mgr, nil, sessions)
	require.ErrorIs(t, app.Run(context.Background()), boom)
}
