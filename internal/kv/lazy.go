// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kv

import (
	"context"
	"errors"
	"sync"

	xglog "github.com/ManuGH/vidref/internal/log"
)

var errClosed = errors.New("closed")

// OpenFunc opens a backend connection.
type OpenFunc func(ctx context.Context) (Backend, error)

// Lazy opens its backend on first use and reuses the connection for every
// later call. When an operation fails with ErrUnavailable the connection is
// dropped so the next call opens a fresh one.
type Lazy struct {
	open OpenFunc

	mu      sync.Mutex
	backend Backend
	closed  bool
}

// NewLazy returns a Lazy that calls open on demand.
func NewLazy(open OpenFunc) *Lazy {
	return &Lazy{open: open}
}

// NewLazyFromOptions is NewLazy over Open(opts).
func NewLazyFromOptions(opts Options) *Lazy {
	return NewLazy(func(ctx context.Context) (Backend, error) {
		return Open(ctx, opts)
	})
}

func (l *Lazy) acquire(ctx context.Context) (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, unavailable("lazy", errClosed)
	}
	if l.backend != nil {
		return l.backend, nil
	}
	b, err := l.open(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, unavailable("open", err)
	}
	l.backend = b
	return b, nil
}

// invalidate drops b if it is still the current connection. A failure
// caused by the caller's own context leaves the shared connection alone.
func (l *Lazy) invalidate(ctx context.Context, b Backend, cause error) {
	if !errors.Is(cause, ErrUnavailable) || isContextErr(cause) || ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != b {
		return
	}
	l.backend = nil
	logger := xglog.WithComponent("kv")
	if err := b.Close(); err != nil {
		logger.Debug().Err(err).Msg("close after failure")
	}
	logger.Warn().
		Str(xglog.FieldEvent, "kv.connection_reset").
		Err(cause).
		Msg("store connection dropped; reopening on next use")
}

func (l *Lazy) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	v, err := b.Get(ctx, key)
	if err != nil {
		l.invalidate(ctx, b, err)
	}
	return v, err
}

func (l *Lazy) Set(ctx context.Context, key string, value []byte) error {
	b, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	if err := b.Set(ctx, key, value); err != nil {
		l.invalidate(ctx, b, err)
		return err
	}
	return nil
}

func (l *Lazy) Delete(ctx context.Context, key string) error {
	b, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil {
		l.invalidate(ctx, b, err)
		return err
	}
	return nil
}

func (l *Lazy) List(ctx context.Context, prefix string) ([]string, error) {
	b, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := b.List(ctx, prefix)
	if err != nil {
		l.invalidate(ctx, b, err)
	}
	return keys, err
}

// Close closes the current connection, if any. Later calls fail with
// ErrUnavailable.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.backend == nil {
		return nil
	}
	err := l.backend.Close()
	l.backend = nil
	return err
}
