// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package kv is the persistent key/value layer behind the reference store and
// the thumbnail index. Every backend stores opaque byte values under string
// keys; callers own the encoding.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidref/internal/log"
)

var (
	// ErrNotFound is returned by Get when no value is stored under the key.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps any failure to reach the underlying store.
	ErrUnavailable = errors.New("kv: store unavailable")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("kv: unknown backend")
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backends lists every supported backend name.
func Backends() []string {
	return []string{BackendBadger, BackendSQLite, BackendRedis, BackendMemory}
}

// Backend is a byte-oriented key/value store.
type Backend interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	// List returns all keys starting with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key written by this process.
	Prefix string
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is a directory for badger and a file for sqlite.
	Path  string
	Redis RedisOptions
}

// Open connects to the backend described by opts.
func Open(ctx context.Context, opts Options) (Backend, error) {
	logger := xglog.WithComponent("kv")

	switch opts.Backend {
	case BackendBadger, "":
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create badger dir: %v", ErrUnavailable, err)
		}
		b, err := OpenBadger(opts.Path)
		if err != nil {
			return nil, err
		}
		logOpened(logger, BackendBadger, opts.Path)
		return b, nil
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
			return nil, fmt.Errorf("%w: create sqlite dir: %v", ErrUnavailable, err)
		}
		b, err := OpenSQLite(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		logOpened(logger, BackendSQLite, opts.Path)
		return b, nil
	case BackendRedis:
		b, err := OpenRedis(ctx, opts.Redis)
		if err != nil {
			return nil, err
		}
		logOpened(logger, BackendRedis, opts.Redis.Addr)
		return b, nil
	case BackendMemory:
		logOpened(logger, BackendMemory, "")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func logOpened(logger zerolog.Logger, backend, where string) {
	logger.Info().
		Str(xglog.FieldEvent, "kv.opened").
		Str(xglog.FieldBackend, backend).
		Str(xglog.FieldPath, where).
		Msg("key/value store opened")
}

// unavailable marks err as a store failure. The caller's own cancellation
// or deadline is not one and passes through unchanged.
func unavailable(op string, err error) error {
	if isContextErr(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
