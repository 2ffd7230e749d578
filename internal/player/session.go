// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player tracks mounted player components. A Session owns at most
// one playable resolution at a time and guarantees its blob URL is released
// when the source changes or the player goes away.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/vidref/internal/access"
	"github.com/ManuGH/vidref/internal/fsaccess"
)

// Resolver is the part of access.Capability a session drives.
type Resolver interface {
	ResolveForPlayback(ctx context.Context, reference string) access.Resolution
	RequestAccess(ctx context.Context, reference string, a fsaccess.Activation) access.Resolution
}

// Session is one mounted player.
type Session struct {
	id       string
	resolver Resolver
	now      func() time.Time

	mu        sync.Mutex
	gen       uint64
	reference string
	current   access.Resolution
	closed    bool
	lastUsed  time.Time
}

func newSession(id string, r Resolver, now func() time.Time) *Session {
	return &Session{
		id:       id,
		resolver: r,
		now:      now,
		current:  access.Resolution{State: access.StateIdle},
		lastUsed: now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Load resolves reference for playback and makes it the session's source.
// The previous source is released before resolution starts. If the session
// is closed or another Load starts before this one finishes, the result is
// released and reported as cancelled.
func (s *Session) Load(ctx context.Context, reference string) access.Resolution {
	gen, ok := s.begin(reference)
	if !ok {
		return cancelled()
	}
	return s.commit(ctx, gen, s.resolver.ResolveForPlayback(ctx, reference))
}

// Grant runs the user's "grant access" action for reference, or for the
// current source when reference is empty.
func (s *Session) Grant(ctx context.Context, reference string, a fsaccess.Activation) access.Resolution {
	if reference == "" {
		s.mu.Lock()
		reference = s.reference
		s.mu.Unlock()
	}

	gen, ok := s.begin(reference)
	if !ok {
		return cancelled()
	}
	return s.commit(ctx, gen, s.resolver.RequestAccess(ctx, reference, a))
}

// Current returns the last committed resolution.
func (s *Session) Current() access.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reference returns the current source reference.
func (s *Session) Reference() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

// Close releases the current source. In-flight resolutions are released as
// they finish. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	old := s.current
	s.current = cancelled()
	s.mu.Unlock()

	old.Release()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) begin(reference string) (uint64, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, false
	}
	s.gen++
	gen := s.gen
	old := s.current
	s.reference = reference
	s.current = access.Resolution{State: access.StateResolving}
	s.lastUsed = s.now()
	s.mu.Unlock()

	old.Release()
	return gen, true
}

func (s *Session) commit(ctx context.Context, gen uint64, res access.Resolution) access.Resolution {
	s.mu.Lock()
	if s.closed || gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		res.Release()
		return cancelled()
	}
	s.current = res
	s.lastUsed = s.now()
	s.mu.Unlock()
	return res
}

func cancelled() access.Resolution {
	return access.Resolution{State: access.StateCancelled}
}
