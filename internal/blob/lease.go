// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package blob

import (
	"context"
	"sync"

	"github.com/ManuGH/vidref/internal/fsaccess"
	xglog "github.com/ManuGH/vidref/internal/log"
)

// Lease owns one blob URL and revokes it on the first Release.
type Lease struct {
	url  string
	reg  *Registry
	once sync.Once
}

// Acquire creates a blob URL for h wrapped in a Lease.
func (r *Registry) Acquire(ctx context.Context, h *fsaccess.FileHandle) (*Lease, error) {
	url, err := r.CreateFromHandle(ctx, h)
	if err != nil {
		return nil, err
	}
	return &Lease{url: url, reg: r}, nil
}

// URL returns the leased blob URL.
func (l *Lease) URL() string { return l.url }

// Release revokes the URL. Later calls do nothing. A nil lease is valid.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if err := l.reg.Revoke(l.url); err != nil {
			// RevokeAll during shutdown may have beaten us to it.
			logger := xglog.WithComponent("blob")
			logger.Debug().Err(err).Str("url", l.url).Msg("lease release")
		}
	})
}
