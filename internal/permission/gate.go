// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package permission decides whether a stored file handle may be read right
// now. The answer is recomputed on every call and never cached.
package permission

import (
	"context"
	"errors"

	"github.com/ManuGH/vidref/internal/fsaccess"
	xglog "github.com/ManuGH/vidref/internal/log"
)

// State is the read permission of one handle at one point in time.
type State string

const (
	Granted  State = "granted"
	Prompt   State = "prompt"
	Denied   State = "denied"
	NotFound State = "not_found"
)

// Platform is the subset of the file access platform the gate needs.
type Platform interface {
	QueryPermission(ctx context.Context, h *fsaccess.FileHandle) (fsaccess.Permission, error)
	RequestPermission(ctx context.Context, h *fsaccess.FileHandle, a fsaccess.Activation) (fsaccess.Permission, error)
}

// Gate queries and requests read permission through the platform.
type Gate struct {
	platform Platform
}

func NewGate(p Platform) *Gate {
	return &Gate{platform: p}
}

// Query returns the current state without prompting. A nil handle and any
// platform failure both yield NotFound.
func (g *Gate) Query(ctx context.Context, h *fsaccess.FileHandle) State {
	if h == nil {
		return NotFound
	}
	p, err := g.platform.QueryPermission(ctx, h)
	if err != nil {
		logger := xglog.WithComponent("permission")
		logger.Warn().
			Str(xglog.FieldEvent, "permission.query_failed").
			Err(err).
			Msg("permission query failed; treating handle as missing")
		return NotFound
	}
	return fromPlatform(p)
}

// Request asks the user for read access. It must be driven by a user gesture:
// without a live activation the platform rejects the call and Request
// returns the unchanged state together with fsaccess.ErrNoUserActivation.
// Granted and denied handles are returned as-is without prompting.
func (g *Gate) Request(ctx context.Context, h *fsaccess.FileHandle, a fsaccess.Activation) (State, error) {
	current := g.Query(ctx, h)
	if current != Prompt {
		return current, nil
	}

	p, err := g.platform.RequestPermission(ctx, h, a)
	if errors.Is(err, fsaccess.ErrNoUserActivation) {
		return current, err
	}
	if err != nil {
		logger := xglog.WithComponent("permission")
		logger.Warn().
			Str(xglog.FieldEvent, "permission.request_failed").
			Err(err).
			Msg("permission request failed")
		if errors.Is(err, fsaccess.ErrNotFound) || errors.Is(err, fsaccess.ErrInvalidHandle) {
			return NotFound, nil
		}
		return current, err
	}
	return fromPlatform(p), nil
}

func fromPlatform(p fsaccess.Permission) State {
	switch p {
	case fsaccess.PermissionGranted:
		return Granted
	case fsaccess.PermissionDenied:
		return Denied
	case fsaccess.PermissionPrompt:
		return Prompt
	default:
		return NotFound
	}
}
