// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsaccess models a File System Access style platform: the user picks
// a file once, receives an opaque handle, and every later read is gated by a
// per-handle permission that the platform may downgrade or revoke at any time.
package fsaccess

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrNoUserActivation is returned when a permission prompt is requested
	// without a live transient user activation.
	ErrNoUserActivation = errors.New("fsaccess: permission request requires user activation")
	// ErrAccessDenied is returned when reading a handle without granted permission.
	ErrAccessDenied = errors.New("fsaccess: read permission not granted")
	// ErrNotFound is returned when the file behind a handle no longer exists.
	ErrNotFound = errors.New("fsaccess: file not found")
	// ErrInvalidHandle is returned for nil handles and undecodable wrapped bytes.
	ErrInvalidHandle = errors.New("fsaccess: invalid file handle")
)

// handleVersion is bumped when the wrapped encoding changes.
const handleVersion = 1

// FileHandle is an opaque reference to a picked file. Holding a handle grants
// nothing; reads go through Host.Open which checks permission.
type FileHandle struct {
	id   string
	path string
	name string
}

// ID identifies the handle for permission bookkeeping.
func (h *FileHandle) ID() string { return h.id }

// Name is the file name shown to the user.
func (h *FileHandle) Name() string { return h.name }

func (h *FileHandle) String() string {
	if h == nil {
		return "<nil handle>"
	}
	return fmt.Sprintf("handle(%s, %s)", h.id, h.name)
}

type wrappedHandle struct {
	Version int    `json:"v"`
	ID      string `json:"id"`
	Path    string `json:"path"`
	Name    string `json:"name"`
}

// Wrap serialises a handle for the persistent store. Only the platform can
// turn the bytes back into a handle.
func Wrap(h *FileHandle) ([]byte, error) {
	if h == nil {
		return nil, ErrInvalidHandle
	}
	return json.Marshal(wrappedHandle{Version: handleVersion, ID: h.id, Path: h.path, Name: h.name})
}

// Unwrap restores a handle produced by Wrap.
func Unwrap(b []byte) (*FileHandle, error) {
	var w wrappedHandle
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	if w.Version != handleVersion || w.ID == "" || !filepath.IsAbs(w.Path) {
		return nil, ErrInvalidHandle
	}
	return &FileHandle{id: w.ID, path: w.Path, name: w.Name}, nil
}
