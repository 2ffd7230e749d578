// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package thumbnail derives preview images for native video URIs and keeps
// them in a persistent directory. A missing thumbnail is always a legal
// outcome; nothing here fails the caller.
package thumbnail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vidref/internal/fsutil"
	"github.com/ManuGH/vidref/internal/kv"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/metrics"
	"github.com/ManuGH/vidref/internal/video/refkey"
)

const indexPrefix = "thumb:"

// Defaults used when Options leaves a field zero.
const (
	DefaultQuality     = 0.85
	DefaultOffset      = time.Second
	DefaultConcurrency = 2
)

// ErrClosed is returned by GenerateAsync after Wait has been called.
var ErrClosed = errors.New("thumbnail: pipeline closed")

// Options configures a Pipeline.
type Options struct {
	Dir         string
	Quality     float64
	Offset      time.Duration
	Concurrency int
	// Index records which thumbnail belongs to which video. Optional.
	Index kv.Backend
	Keys  *refkey.Generator
}

type indexRecord struct {
	URI       string    `json:"uri"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pipeline generates, indexes and deletes thumbnails.
type Pipeline struct {
	dir       string
	extractor Extractor
	quality   float64
	offset    time.Duration
	index     kv.Backend
	keys      *refkey.Generator
	logger    zerolog.Logger

	// indexMu serialises index replacement so every superseded file is
	// cleaned exactly once.
	indexMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	group   errgroup.Group
}

// New returns a Pipeline writing into opts.Dir.
func New(extractor Extractor, opts Options) *Pipeline {
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = DefaultQuality
	}
	if opts.Offset <= 0 {
		opts.Offset = DefaultOffset
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Keys == nil {
		opts.Keys = refkey.NewGenerator()
	}
	p := &Pipeline{
		dir:       filepath.Clean(opts.Dir),
		extractor: extractor,
		quality:   opts.Quality,
		offset:    opts.Offset,
		index:     opts.Index,
		keys:      opts.Keys,
		logger:    xglog.WithComponent("thumbnail"),
	}
	p.group.SetLimit(opts.Concurrency)
	return p
}

// Dir is the directory thumbnails are written to.
func (p *Pipeline) Dir() string { return p.dir }

// Generate extracts a frame from videoURI at offset (the default offset when
// negative) and persists it. It returns the thumbnail path, or ok=false on
// any failure.
func (p *Pipeline) Generate(ctx context.Context, videoURI string, at time.Duration) (string, bool) {
	start := time.Now()
	path, err := p.generate(ctx, videoURI, at)
	metrics.RecordThumbnail(err == nil, time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn().
			Str(xglog.FieldEvent, "thumbnail.failed").
			Str(xglog.FieldURI, videoURI).
			Err(err).
			Msg("thumbnail generation failed")
		return "", false
	}
	p.logger.Debug().
		Str(xglog.FieldEvent, "thumbnail.generated").
		Str(xglog.FieldURI, videoURI).
		Str(xglog.FieldThumbnail, path).
		Msg("thumbnail generated")
	return path, true
}

func (p *Pipeline) generate(ctx context.Context, videoURI string, at time.Duration) (string, error) {
	if at < 0 {
		at = p.offset
	}
	tmp, err := p.extractor.Extract(ctx, videoURI, at, p.quality)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			p.logger.Debug().Err(err).Str(xglog.FieldPath, tmp).Msg("remove temp thumbnail")
		}
	}()

	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return "", fmt.Errorf("create thumbnails dir: %w", err)
	}
	dest := filepath.Join(p.dir, p.keys.ThumbnailName(videoURI))
	if err := copyDurable(tmp, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// copyDurable copies src to dest with fsync and an atomic rename.
func copyDurable(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open temp thumbnail: %w", err)
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending thumbnail: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, in); err != nil {
		return fmt.Errorf("copy thumbnail: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit thumbnail: %w", err)
	}
	return nil
}

// GenerateAsync generates and indexes a thumbnail in the background. fn, if
// set, receives the result. Work is bounded by the configured concurrency.
func (p *Pipeline) GenerateAsync(ctx context.Context, videoURI string, at time.Duration, fn func(path string, ok bool)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.pending.Add(1)
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer p.pending.Done()
		p.group.Go(func() error {
			path, ok := p.Generate(ctx, videoURI, at)
			if ok {
				p.remember(ctx, videoURI, path)
			}
			if fn != nil {
				fn(path, ok)
			}
			return nil
		})
	}()
	return nil
}

// Wait stops accepting background work and blocks until queued generations
// finish.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pending.Wait()
	_ = p.group.Wait()
}

// Lookup returns the indexed thumbnail for videoURI if its file still exists.
func (p *Pipeline) Lookup(ctx context.Context, videoURI string) (string, bool) {
	rec := p.lookup(ctx, videoURI)
	if rec == nil {
		return "", false
	}
	if _, err := os.Stat(rec.Path); err != nil {
		return "", false
	}
	return rec.Path, true
}

// Ensure returns the indexed thumbnail for videoURI, regenerating it once if
// it is missing or its file was deleted.
func (p *Pipeline) Ensure(ctx context.Context, videoURI string) (string, bool) {
	if path, ok := p.Lookup(ctx, videoURI); ok {
		return path, true
	}
	path, ok := p.Generate(ctx, videoURI, -1)
	if !ok {
		return "", false
	}
	p.remember(ctx, videoURI, path)
	return path, true
}

// Forget deletes the indexed thumbnail of videoURI and its index entry.
func (p *Pipeline) Forget(ctx context.Context, videoURI string) error {
	p.indexMu.Lock()
	defer p.indexMu.Unlock()

	rec := p.lookup(ctx, videoURI)
	if rec == nil {
		return nil
	}
	if err := p.Cleanup(rec.Path); err != nil {
		return err
	}
	if p.index != nil {
		return p.index.Delete(ctx, indexKey(videoURI))
	}
	return nil
}

// Cleanup deletes a thumbnail file. Paths outside the thumbnails directory
// are refused; an already missing file is success.
func (p *Pipeline) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	resolved, err := fsutil.ConfineAbsPath(p.dir, path)
	if err == nil && filepath.Clean(path) == p.dir {
		err = fmt.Errorf("%w: %s is the thumbnails dir", fsutil.ErrOutsideRoot, path)
	}
	if err != nil {
		p.logger.Warn().
			Str(xglog.FieldEvent, "thumbnail.cleanup_refused").
			Str(xglog.FieldPath, path).
			Err(err).
			Msg("refusing to delete file outside thumbnails dir")
		return err
	}
	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("thumbnail: cleanup: %w", err)
	}
	return nil
}

// remember points the index entry of videoURI at path and deletes the file
// it replaces, so a relinked or regenerated video keeps a single thumbnail.
func (p *Pipeline) remember(ctx context.Context, videoURI, path string) {
	if p.index == nil {
		return
	}
	p.indexMu.Lock()
	defer p.indexMu.Unlock()

	prev := p.lookup(ctx, videoURI)
	buf, err := json.Marshal(indexRecord{URI: videoURI, Path: path, CreatedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := p.index.Set(ctx, indexKey(videoURI), buf); err != nil {
		p.logger.Warn().Err(err).Str(xglog.FieldURI, videoURI).Msg("thumbnail index write failed")
		return
	}
	if prev != nil && prev.Path != path {
		if err := p.Cleanup(prev.Path); err != nil {
			p.logger.Debug().Err(err).Str(xglog.FieldThumbnail, prev.Path).Msg("superseded thumbnail not removed")
		}
	}
}

func (p *Pipeline) lookup(ctx context.Context, videoURI string) *indexRecord {
	if p.index == nil {
		return nil
	}
	buf, err := p.index.Get(ctx, indexKey(videoURI))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			p.logger.Warn().Err(err).Str(xglog.FieldURI, videoURI).Msg("thumbnail index read failed")
		}
		return nil
	}
	var rec indexRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil
	}
	return &rec
}

func indexKey(videoURI string) string {
	sum := sha256.Sum256([]byte(videoURI))
	return indexPrefix + hex.EncodeToString(sum[:])
}
