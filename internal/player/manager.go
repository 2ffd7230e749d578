// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidref/internal/log"
	"github.com/ManuGH/vidref/internal/metrics"
)

// Config controls session reaping.
type Config struct {
	// IdleTimeout closes sessions with no Load or Grant for this long.
	// Zero disables reaping.
	IdleTimeout time.Duration
	// Interval between reap passes. Defaults to IdleTimeout/4.
	Interval time.Duration
	Now      func() time.Time
}

// Manager owns the live sessions.
type Manager struct {
	resolver Resolver
	conf     Config
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager creating sessions over r.
func NewManager(r Resolver, conf Config) *Manager {
	if conf.Now == nil {
		conf.Now = time.Now
	}
	if conf.Interval <= 0 && conf.IdleTimeout > 0 {
		conf.Interval = max(conf.IdleTimeout/4, time.Second)
	}
	return &Manager{
		resolver: r,
		conf:     conf,
		logger:   xglog.WithComponent("player"),
		sessions: make(map[string]*Session),
	}
}

// Open mounts a new session.
func (m *Manager) Open() *Session {
	s := newSession(uuid.NewString(), m.resolver, m.conf.Now)
	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetPlayerSessions(n)
	m.logger.Debug().Str(xglog.FieldSessionID, s.id).Msg("session opened")
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close unmounts the session with id. It reports whether it existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	metrics.SetPlayerSessions(n)
	m.logger.Debug().Str(xglog.FieldSessionID, id).Msg("session closed")
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll unmounts every session.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	metrics.SetPlayerSessions(0)
	return len(all)
}

// Run reaps idle sessions until ctx is done. It returns immediately when
// reaping is disabled.
func (m *Manager) Run(ctx context.Context) {
	if m.conf.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(m.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce()
		}
	}
}

// SweepOnce closes every session idle longer than the idle timeout and
// returns how many were closed.
func (m *Manager) SweepOnce() int {
	if m.conf.IdleTimeout <= 0 {
		return 0
	}
	now := m.conf.Now()

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.conf.IdleTimeout {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		metrics.SetPlayerSessions(n)
		m.logger.Info().
			Str(xglog.FieldEvent, "player.sessions_reaped").
			Int("count", len(stale)).
			Msg("idle player sessions closed")
	}
	return len(stale)
}
