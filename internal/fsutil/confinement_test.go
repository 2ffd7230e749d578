// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineAbsPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	inside := filepath.Join(root, "thumb_1_a.jpg")
	require.NoError(t, os.WriteFile(inside, nil, 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	got, err := ConfineAbsPath(root, inside)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(inside), filepath.Base(got))

	_, err = ConfineAbsPath(root, filepath.Join(root, "missing.jpg"))
	assert.NoError(t, err, "not-yet-existing files inside root are fine")

	_, err = ConfineAbsPath(root, filepath.Join(root, "..", "etc", "passwd"))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = ConfineAbsPath(root, filepath.Join(root, "link", "x.jpg"))
	assert.ErrorIs(t, err, ErrOutsideRoot, "symlinks out of root are rejected")

	_, err = ConfineAbsPath(root, "relative.jpg")
	assert.Error(t, err)
}

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()

	got, err := ConfineRelPath(root, "a/../b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", filepath.Base(got))

	_, err = ConfineRelPath(root, "../b.jpg")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = ConfineRelPath(root, `a\..\..\b`)
	assert.Error(t, err)

	_, err = ConfineRelPath(root, "/etc/passwd")
	assert.Error(t, err)
}
