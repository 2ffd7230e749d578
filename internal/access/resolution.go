// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package access

import (
	"github.com/ManuGH/vidref/internal/blob"
)

// State is where a playback resolution ended up.
//
//	Idle -> Resolving -> {Playable, NeedsPermission, NeedsReselection,
//	                      NotFound, ValidationFailed, PlaybackError}
//
// Only an explicit user action re-enters Resolving from NeedsPermission or
// NeedsReselection.
type State string

const (
	StateIdle             State = "idle"
	StateResolving        State = "resolving"
	StatePlayable         State = "playable"
	StateNeedsPermission  State = "needs_permission"
	StateNeedsReselection State = "needs_reselection"
	StateNotFound         State = "not_found"
	StateValidationFailed State = "validation_failed"
	StatePlaybackError    State = "playback_error"
	// StateCancelled is reported when the consumer went away before the
	// resolution finished.
	StateCancelled State = "cancelled"
)

// Terminal reports whether s ends a resolution.
func (s State) Terminal() bool {
	return s != StateIdle && s != StateResolving
}

// Resolution is the outcome of resolving a reference for playback.
type Resolution struct {
	State    State  `json:"state"`
	URL      string `json:"url,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Message  string `json:"message,omitempty"`

	// Lease is set when URL is a blob URL owned by this resolution.
	Lease *blob.Lease `json:"-"`
}

// Release drops the blob URL, if any. Safe to call more than once.
func (r Resolution) Release() {
	r.Lease.Release()
}

func playable(url, name string, lease *blob.Lease) Resolution {
	return Resolution{State: StatePlayable, URL: url, FileName: name, Lease: lease}
}

func withState(s State, msg string) Resolution {
	return Resolution{State: s, Message: msg}
}
