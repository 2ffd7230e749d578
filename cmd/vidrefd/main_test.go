// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidref/internal/config"
	"github.com/ManuGH/vidref/internal/fsaccess"
	"github.com/ManuGH/vidref/internal/kv"
	"github.com/ManuGH/vidref/internal/refstore"
)

func writeConfig(t *testing.T, body string) (path, dataDir string) {
	t.Helper()
	dataDir = t.TempDir()
	path = filepath.Join(dataDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dataDir+"\n"+body), 0o600))
	return path, dataDir
}

func TestConfigValidate(t *testing.T) {
	path, _ := writeConfig(t, "platform: web\n")
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, runConfigValidate([]string{"-f", path}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "is valid")

	bad, _ := writeConfig(t, "platform: desktop\n")
	out.Reset()
	errOut.Reset()
	assert.Equal(t, 1, runConfigValidate([]string{"--file", bad}, &out, &errOut))
	assert.Contains(t, errOut.String(), "platform")
}

func TestConfigValidate_RequiresFile(t *testing.T) {
	t.Setenv(config.EnvDataDir, t.TempDir())
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, runConfigValidate(nil, &out, &errOut))
}

func TestConfigDump_RedactsSecrets(t *testing.T) {
	path, _ := writeConfig(t, "store:\n  backend: redis\n  redis:\n    addr: 127.0.0.1:6379\n    password: hunter2\n")

	for _, format := range []string{"yaml", "json"} {
		var out, errOut bytes.Buffer
		require.Equal(t, 0, runConfigDump([]string{"-f", path, "--format", format}, &out, &errOut), errOut.String())
		assert.NotContains(t, out.String(), "hunter2", format)
		assert.Contains(t, out.String(), redacted, format)
	}

	var out, errOut bytes.Buffer
	assert.Equal(t, 2, runConfigDump([]string{"-f", path, "--format", "toml"}, &out, &errOut))
}

func TestStorageKeys(t *testing.T) {
	path, dataDir := writeConfig(t, "store:\n  backend: sqlite\n")

	cfg, err := config.NewLoader(path, "test").Load()
	require.NoError(t, err)
	ctx := context.Background()
	backend, err := kv.Open(ctx, cfg.KVOptions())
	require.NoError(t, err)

	host := fsaccess.NewHost(fsaccess.Options{})
	defer host.Close()
	video := filepath.Join(dataDir, "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o600))
	h, err := host.Pick(ctx, video, "", fsaccess.UserActivation(time.Now()))
	require.NoError(t, err)
	store := refstore.New(backend)
	require.NoError(t, store.Put(ctx, "video_1_b", h, "clip.mp4"))
	require.NoError(t, store.Put(ctx, "video_1_a", h, "clip.mp4"))
	require.NoError(t, backend.Close())

	var out, errOut bytes.Buffer
	require.Equal(t, 0, runStorageKeys([]string{"-f", path}, &out, &errOut), errOut.String())
	assert.Equal(t, []string{"video_1_a", "video_1_b"}, strings.Fields(out.String()))

	out.Reset()
	require.Equal(t, 0, runStorageVerify([]string{"--file", path}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "ok")
}

func TestStorageVerify_Errors(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, runStorageVerify([]string{"--mode", "slow", "--path", "x"}, &out, &errOut))
	assert.Equal(t, 2, runStorageVerify([]string{"--path", filepath.Join(t.TempDir(), "missing.db")}, &out, &errOut))

	path, _ := writeConfig(t, "store:\n  backend: badger\n")
	assert.Equal(t, 2, runStorageVerify([]string{"--file", path}, &out, &errOut))
}

func TestResolveDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	assert.Empty(t, resolveDefaultConfigPath())

	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("platform: web\n"), 0o600))
	assert.Equal(t, p, resolveDefaultConfigPath())
}

func TestHealthcheck(t *testing.T) {
	var notReady atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/readyz":
			if notReady.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	assert.Equal(t, 0, runHealthcheck([]string{"--addr", srv.URL + "/"}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "successful")

	notReady.Store(true)
	assert.Equal(t, 1, runHealthcheck([]string{"--addr", srv.URL}, &out, &errOut))
	assert.Equal(t, 0, runHealthcheck([]string{"--addr", srv.URL, "--mode", "live"}, &out, &errOut))
	assert.Equal(t, 2, runHealthcheck([]string{"--addr", srv.URL, "--mode", "deep"}, &out, &errOut))
}
