// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package blob mints short-lived, process-local URLs for files opened through
// the file access platform. Every URL owns an open file and must be revoked
// exactly once.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/vidref/internal/fsaccess"
	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/metrics"
)

// PathPrefix is the route under which blobs are served.
const PathPrefix = "/blob/"

var (
	// ErrNotRegistered is returned when revoking an unknown or already
	// revoked URL.
	ErrNotRegistered = errors.New("blob: url not registered")
	// ErrAccessDenied is returned when the handle may not be read.
	ErrAccessDenied = errors.New("blob: read access denied")
)

// Opener opens the file behind a handle. *fsaccess.Host implements it.
type Opener interface {
	Open(ctx context.Context, h *fsaccess.FileHandle) (*os.File, error)
}

type entry struct {
	file    *os.File
	name    string
	modTime time.Time
}

// Registry maps blob URLs to open files.
type Registry struct {
	opener  Opener
	baseURL string

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry returns a Registry minting URLs under baseURL, e.g.
// "http://127.0.0.1:8088".
func NewRegistry(opener Opener, baseURL string) *Registry {
	return &Registry{
		opener:  opener,
		baseURL: strings.TrimRight(baseURL, "/"),
		entries: make(map[string]*entry),
	}
}

// CreateFromHandle materialises the file behind h and registers a fresh URL
// for it. The caller owns the URL and must Revoke it.
func (r *Registry) CreateFromHandle(ctx context.Context, h *fsaccess.FileHandle) (string, error) {
	if h == nil {
		return "", fsaccess.ErrInvalidHandle
	}
	f, err := r.opener.Open(ctx, h)
	if err != nil {
		metrics.IncBlobCreateError()
		if errors.Is(err, fsaccess.ErrAccessDenied) {
			return "", fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return "", fmt.Errorf("blob: open %s: %w", h.Name(), err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		metrics.IncBlobCreateError()
		return "", fmt.Errorf("blob: stat %s: %w", h.Name(), err)
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = &entry{file: f, name: h.Name(), modTime: fi.ModTime()}
	r.mu.Unlock()
	metrics.RecordBlobCreated()

	logger := xglog.WithComponent("blob")
	logger.Debug().
		Str(xglog.FieldEvent, "blob.created").
		Str(xglog.FieldBlobID, id).
		Str(xglog.FieldFileName, h.Name()).
		Msg("blob url created")
	return r.baseURL + PathPrefix + id, nil
}

// Revoke closes the file behind url and forgets it. Revoking a URL this
// registry never issued, or one already revoked, returns ErrNotRegistered.
func (r *Registry) Revoke(url string) error {
	id, ok := r.idFromURL(url)
	if !ok {
		return ErrNotRegistered
	}
	r.mu.Lock()
	e, found := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !found {
		return ErrNotRegistered
	}

	metrics.RecordBlobRevoked()
	logger := xglog.WithComponent("blob")
	if err := e.file.Close(); err != nil {
		logger.Debug().Err(err).Str(xglog.FieldBlobID, id).Msg("close on revoke")
	}
	logger.Debug().
		Str(xglog.FieldEvent, "blob.revoked").
		Str(xglog.FieldBlobID, id).
		Msg("blob url revoked")
	return nil
}

// RevokeAll revokes every registered URL and returns how many there were.
func (r *Registry) RevokeAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		metrics.RecordBlobRevoked()
		_ = e.file.Close()
	}
	return len(entries)
}

// Len returns the number of live URLs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Registered reports whether url is live.
func (r *Registry) Registered(url string) bool {
	id, ok := r.idFromURL(url)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, found := r.entries[id]
	return found
}

// ServeHTTP streams a registered blob with range support. Unknown or revoked
// blobs are 404.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, PathPrefix)
	if _, err := uuid.Parse(id); err != nil {
		http.NotFound(w, req)
		return
	}
	r.mu.Lock()
	e, found := r.entries[id]
	r.mu.Unlock()
	if !found {
		http.NotFound(w, req)
		return
	}

	fi, err := e.file.Stat()
	if err != nil {
		http.Error(w, "blob unavailable", http.StatusGone)
		return
	}
	// A SectionReader keeps concurrent range reads off the shared file offset.
	content := io.NewSectionReader(e.file, 0, fi.Size())
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, req, e.name, e.modTime, content)
}

func (r *Registry) idFromURL(url string) (string, bool) {
	rest, ok := strings.CutPrefix(url, r.baseURL+PathPrefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
