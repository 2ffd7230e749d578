// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsaccess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidref/internal/cache"
	xglog "github.com/ManuGH/vidref/internal/log"
)

// Permission is the platform's read permission for one handle.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionPrompt  Permission = "prompt"
	PermissionDenied  Permission = "denied"
)

// DefaultActivationWindow is how long a user gesture stays usable.
const DefaultActivationWindow = 5 * time.Second

// Activation is a transient user activation: the moment of a user gesture.
// The zero value means "no gesture".
type Activation struct {
	At time.Time
}

// UserActivation records a gesture that happened at t.
func UserActivation(t time.Time) Activation { return Activation{At: t} }

// Prompter asks the user whether a handle may be read.
type Prompter interface {
	Prompt(ctx context.Context, h *FileHandle) (Permission, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, h *FileHandle) (Permission, error)

func (f PrompterFunc) Prompt(ctx context.Context, h *FileHandle) (Permission, error) {
	return f(ctx, h)
}

// ConsentPrompter treats the gesture that triggered the prompt as consent.
var ConsentPrompter = PrompterFunc(func(context.Context, *FileHandle) (Permission, error) {
	return PermissionGranted, nil
})

// Options configures a Host.
type Options struct {
	// GrantTTL bounds how long a grant lives. Zero keeps grants until restart.
	GrantTTL time.Duration
	// ActivationWindow defaults to DefaultActivationWindow.
	ActivationWindow time.Duration
	Prompter         Prompter
	Now              func() time.Time
}

// Host is the platform side of file access. Grants live only in memory, so
// after a restart every handle reverts to PermissionPrompt.
type Host struct {
	grants   *cache.TTL[struct{}]
	grantTTL time.Duration
	window   time.Duration
	prompter Prompter
	now      func() time.Time
	logger   zerolog.Logger

	mu     sync.RWMutex
	denied map[string]struct{}
}

// NewHost creates a Host. Call Close to stop the grant janitor.
func NewHost(opts Options) *Host {
	if opts.ActivationWindow <= 0 {
		opts.ActivationWindow = DefaultActivationWindow
	}
	if opts.Prompter == nil {
		opts.Prompter = ConsentPrompter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	janitor := time.Minute
	if opts.GrantTTL > 0 && opts.GrantTTL < janitor {
		janitor = opts.GrantTTL
	}
	return &Host{
		grants:   cache.NewWithClock[struct{}](janitor, opts.Now),
		grantTTL: opts.GrantTTL,
		window:   opts.ActivationWindow,
		prompter: opts.Prompter,
		now:      opts.Now,
		logger:   xglog.WithComponent("fsaccess"),
		denied:   make(map[string]struct{}),
	}
}

// Close releases background resources.
func (h *Host) Close() {
	h.grants.Stop()
}

// Active reports whether a is a live transient activation.
func (h *Host) Active(a Activation) bool {
	if a.At.IsZero() {
		return false
	}
	elapsed := h.now().Sub(a.At)
	return elapsed >= 0 && elapsed <= h.window
}

// Pick completes a file picker interaction for path. The pick is itself a
// user gesture and grants read permission on the new handle.
func (h *Host) Pick(ctx context.Context, path, name string, a Activation) (*FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.Active(a) {
		return nil, ErrNoUserActivation
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("fsaccess: pick %q: path must be absolute", path)
	}
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, mapOSError(err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("fsaccess: pick %q: not a regular file", path)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	fh := &FileHandle{id: uuid.NewString(), path: path, name: name}
	h.grant(fh)
	h.logger.Debug().
		Str(xglog.FieldEvent, "fsaccess.picked").
		Str(xglog.FieldFileName, name).
		Msg("file picked")
	return fh, nil
}

// QueryPermission returns the current permission without prompting.
func (h *Host) QueryPermission(ctx context.Context, fh *FileHandle) (Permission, error) {
	if fh == nil {
		return "", ErrInvalidHandle
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h.isDenied(fh) {
		return PermissionDenied, nil
	}
	if _, err := os.Stat(fh.path); err != nil {
		err = mapOSError(err)
		if errors.Is(err, ErrAccessDenied) {
			return PermissionDenied, nil
		}
		return "", err
	}
	if _, ok := h.grants.Get(fh.id); ok {
		return PermissionGranted, nil
	}
	return PermissionPrompt, nil
}

// RequestPermission prompts for read access. Granted and denied handles
// return immediately; a prompt needs a live activation.
func (h *Host) RequestPermission(ctx context.Context, fh *FileHandle, a Activation) (Permission, error) {
	state, err := h.QueryPermission(ctx, fh)
	if err != nil || state != PermissionPrompt {
		return state, err
	}
	if !h.Active(a) {
		return state, ErrNoUserActivation
	}

	decision, err := h.prompter.Prompt(ctx, fh)
	if err != nil {
		return state, fmt.Errorf("fsaccess: prompt: %w", err)
	}
	switch decision {
	case PermissionGranted:
		h.grant(fh)
	case PermissionDenied:
		h.Revoke(fh)
	}
	h.logger.Info().
		Str(xglog.FieldEvent, "fsaccess.prompt").
		Str(xglog.FieldFileName, fh.name).
		Str(xglog.FieldPermission, string(decision)).
		Msg("permission prompt answered")
	return decision, nil
}

// Revoke withdraws permission for a handle. The handle stays denied until
// the process restarts.
func (h *Host) Revoke(fh *FileHandle) {
	if fh == nil {
		return
	}
	h.grants.Delete(fh.id)
	h.mu.Lock()
	h.denied[fh.id] = struct{}{}
	h.mu.Unlock()
}

// Downgrade forgets a grant without denying it, as a browser does between
// sessions.
func (h *Host) Downgrade(fh *FileHandle) {
	if fh != nil {
		h.grants.Delete(fh.id)
	}
}

// Open returns the file behind fh for reading. Permission must be granted.
func (h *Host) Open(ctx context.Context, fh *FileHandle) (*os.File, error) {
	state, err := h.QueryPermission(ctx, fh)
	if err != nil {
		return nil, err
	}
	if state != PermissionGranted {
		return nil, ErrAccessDenied
	}
	f, err := os.Open(fh.path)
	if err != nil {
		return nil, mapOSError(err)
	}
	return f, nil
}

func (h *Host) grant(fh *FileHandle) {
	h.grants.Set(fh.id, struct{}{}, h.grantTTL)
}

func (h *Host) isDenied(fh *FileHandle) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.denied[fh.id]
	return ok
}

func mapOSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	default:
		return err
	}
}
