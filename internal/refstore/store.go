// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package refstore persists wrapped file handles under video reference keys,
// so a picked file can be re-opened after a restart.
package refstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vidref/internal/fsaccess"
	"github.com/ManuGH/vidref/internal/kv"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/metrics"
)

const keyPrefix = "handle:"

var (
	// ErrUnavailable means the backing store could not be reached.
	ErrUnavailable = errors.New("refstore: store unavailable")
	// ErrEmptyKey is returned for an empty reference key.
	ErrEmptyKey = errors.New("refstore: empty reference key")
)

// Record is one stored reference.
type Record struct {
	Key       string    `json:"key"`
	Handle    []byte    `json:"handle"`
	FileName  string    `json:"fileName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store maps reference keys to wrapped handles. Safe for concurrent use.
type Store struct {
	kv  kv.Backend
	now func() time.Time
}

// New returns a Store over backend. The backend is usually a *kv.Lazy shared
// with the rest of the process.
func New(backend kv.Backend) *Store {
	return &Store{kv: backend, now: time.Now}
}

// Put stores the wrapped form of handle under key, replacing any previous
// record for the same key.
func (s *Store) Put(ctx context.Context, key string, handle *fsaccess.FileHandle, fileName string) error {
	if key == "" {
		return ErrEmptyKey
	}
	wrapped, err := fsaccess.Wrap(handle)
	if err != nil {
		return fmt.Errorf("refstore: wrap handle: %w", err)
	}
	buf, err := json.Marshal(Record{
		Key:       key,
		Handle:    wrapped,
		FileName:  fileName,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, keyPrefix+key, buf); err != nil {
		return s.fail("put", key, err)
	}
	return nil
}

// Get returns the handle stored under key, or nil when there is none.
func (s *Store) Get(ctx context.Context, key string) (*fsaccess.FileHandle, error) {
	rec, err := s.Record(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	h, err := fsaccess.Unwrap(rec.Handle)
	if err != nil {
		logger := xglog.WithComponent("refstore")
		logger.Warn().
			Str(xglog.FieldEvent, "refstore.corrupt_record").
			Str(xglog.FieldReference, key).
			Err(err).
			Msg("stored handle cannot be restored")
		return nil, nil
	}
	return h, nil
}

// Record returns the full record for key, or nil when there is none.
func (s *Store) Record(ctx context.Context, key string) (*Record, error) {
	if key == "" {
		return nil, nil
	}
	buf, err := s.kv.Get(ctx, keyPrefix+key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("get", key, err)
	}
	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

// Exists reports whether a record is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	rec, err := s.Record(ctx, key)
	return rec != nil, err
}

// Delete removes the record for key. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, keyPrefix+key); err != nil {
		return s.fail("delete", key, err)
	}
	return nil
}

// Keys lists every stored reference key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	raw, err := s.kv.List(ctx, keyPrefix)
	if err != nil {
		return nil, s.fail("list", "", err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len(keyPrefix):])
	}
	return keys, nil
}

func (s *Store) fail(op, key string, err error) error {
	metrics.IncStoreError(op)
	logger := xglog.WithComponent("refstore")
	logger.Error().
		Str(xglog.FieldEvent, "refstore."+op+"_failed").
		Str(xglog.FieldReference, key).
		Err(err).
		Msg("reference store operation failed")
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
