// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/vidref/internal/access"
	"github.com/ManuGH/vidref/internal/blob"
	"github.com/ManuGH/vidref/internal/fsaccess"
	"github.com/ManuGH/vidref/internal/kv"
	"github.com/ManuGH/vidref/internal/permission"
	"github.com/ManuGH/vidref/internal/refstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	cap   access.Capability
	blobs *blob.Registry
	host  *fsaccess.Host
	store *refstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := fsaccess.NewHost(fsaccess.Options{})
	t.Cleanup(host.Close)
	store := refstore.New(kv.NewMemory())
	blobs := blob.NewRegistry(host, "http://localhost")
	c, err := access.New(access.PlatformWeb, access.Deps{
		Host:  host,
		Store: store,
		Gate:  permission.NewGate(host),
		Blobs: blobs,
	})
	require.NoError(t, err)
	return &fixture{cap: c, blobs: blobs, host: host, store: store}
}

func (f *fixture) upload(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("frames"), 0o600))
	up, err := f.cap.ResolveForUpload(context.Background(),
		access.PickerResult{Path: p}, fsaccess.UserActivation(time.Now()))
	require.NoError(t, err)
	return up.Reference
}

func TestSession_LoadSwapsAndReleases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.upload(t, "a.mp4")
	b := f.upload(t, "b.mp4")

	m := NewManager(f.cap, Config{})
	s := m.Open()

	first := s.Load(ctx, a)
	require.Equal(t, access.StatePlayable, first.State)
	assert.Equal(t, 1, f.blobs.Len())

	second := s.Load(ctx, b)
	require.Equal(t, access.StatePlayable, second.State)
	assert.False(t, f.blobs.Registered(first.URL), "old source is released on swap")
	assert.True(t, f.blobs.Registered(second.URL))
	assert.Equal(t, 1, f.blobs.Len())
	assert.Equal(t, b, s.Reference())

	assert.True(t, m.Close(s.ID()))
	assert.False(t, m.Close(s.ID()))
	assert.Zero(t, f.blobs.Len(), "unmount releases the active source")
	assert.Equal(t, access.StateCancelled, s.Load(ctx, a).State)
	assert.Zero(t, f.blobs.Len())
}

func TestSession_GrantAfterNeedsPermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ref := f.upload(t, "a.mp4")
	h, err := f.store.Get(ctx, ref)
	require.NoError(t, err)
	f.host.Downgrade(h)

	s := NewManager(f.cap, Config{}).Open()
	defer s.Close()

	require.Equal(t, access.StateNeedsPermission, s.Load(ctx, ref).State)
	assert.Zero(t, f.blobs.Len())

	res := s.Grant(ctx, "", fsaccess.UserActivation(time.Now()))
	require.Equal(t, access.StatePlayable, res.State)
	assert.Equal(t, res.URL, s.Current().URL)
	assert.Equal(t, 1, f.blobs.Len())
}

// gatedResolver blocks each resolution until released and hands out leases
// from a real registry.
type gatedResolver struct {
	f       *fixture
	ref     string
	started chan struct{}
	release chan struct{}
}

func (g *gatedResolver) ResolveForPlayback(ctx context.Context, reference string) access.Resolution {
	g.started <- struct{}{}
	<-g.release
	return g.f.cap.ResolveForPlayback(ctx, g.ref)
}

func (g *gatedResolver) RequestAccess(ctx context.Context, reference string, _ fsaccess.Activation) access.Resolution {
	return g.ResolveForPlayback(ctx, reference)
}

func newGated(t *testing.T) *gatedResolver {
	f := newFixture(t)
	return &gatedResolver{
		f:       f,
		ref:     f.upload(t, "slow.mp4"),
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func TestSession_CloseDuringResolutionReleasesLate(t *testing.T) {
	g := newGated(t)
	s := NewManager(g, Config{}).Open()

	done := make(chan access.Resolution)
	go func() { done <- s.Load(context.Background(), "x") }()
	<-g.started
	s.Close()
	close(g.release)

	res := <-done
	assert.Equal(t, access.StateCancelled, res.State)
	assert.Empty(t, res.URL)
	assert.Zero(t, g.f.blobs.Len(), "late resolution must not leak its blob url")
}

func TestSession_SupersededLoadIsCancelled(t *testing.T) {
	g := newGated(t)
	s := NewManager(g, Config{}).Open()
	defer s.Close()

	var wg sync.WaitGroup
	var older, newer access.Resolution
	wg.Add(1)
	go func() {
		defer wg.Done()
		older = s.Load(context.Background(), "old")
	}()
	<-g.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		newer = s.Load(context.Background(), "new")
	}()
	<-g.started
	close(g.release)
	wg.Wait()

	// Whichever call started second owns the session.
	assert.Equal(t, access.StateCancelled, older.State)
	require.Equal(t, access.StatePlayable, newer.State)
	assert.Equal(t, 1, g.f.blobs.Len())
	assert.Equal(t, newer.URL, s.Current().URL)
}

func TestSession_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ref := f.upload(t, "a.mp4")
	s := NewManager(f.cap, Config{}).Open()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.Load(ctx, ref)
	assert.Equal(t, access.StateCancelled, res.State)
	assert.Zero(t, f.blobs.Len())
}

func TestManager_SweepOnce(t *testing.T) {
	f := newFixture(t)
	ref := f.upload(t, "a.mp4")
	clock := time.Unix(1_700_000_000, 0)
	m := NewManager(f.cap, Config{IdleTimeout: time.Minute, Now: func() time.Time { return clock }})

	idle := m.Open()
	require.Equal(t, access.StatePlayable, idle.Load(context.Background(), ref).State)
	clock = clock.Add(30 * time.Second)
	busy := m.Open()

	clock = clock.Add(45 * time.Second)
	assert.Equal(t, 1, m.SweepOnce())
	assert.True(t, idle.Closed())
	assert.False(t, busy.Closed())
	assert.Zero(t, f.blobs.Len())
	_, ok := m.Get(idle.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, 1, m.CloseAll())
	assert.True(t, busy.Closed())
}

func TestManager_RunStopsWithContext(t *testing.T) {
	m := NewManager(nil, Config{IdleTimeout: time.Hour, Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	NewManager(nil, Config{}).Run(context.Background())
}
