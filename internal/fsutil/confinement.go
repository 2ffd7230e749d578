// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil holds path helpers shared by the on-disk components.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside its root.
var ErrOutsideRoot = errors.New("fsutil: path escapes root")

// ConfineRelPath joins relTarget onto root and verifies the result, after
// symlink resolution, is still underneath root.
func ConfineRelPath(root, relTarget string) (string, error) {
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("fsutil: path contains backslash: %s", relTarget)
	}
	clean := filepath.Clean(relTarget)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("fsutil: target path must be relative: %s", relTarget)
	}
	if escapes(clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, relTarget)
	}
	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	return check(realRoot, filepath.Join(realRoot, clean))
}

// ConfineAbsPath verifies that the absolute path target lies underneath root
// and returns its resolved form.
func ConfineAbsPath(root, target string) (string, error) {
	if strings.Contains(target, "\\") {
		return "", fmt.Errorf("fsutil: path contains backslash: %s", target)
	}
	if !filepath.IsAbs(target) {
		return "", fmt.Errorf("fsutil: target path must be absolute: %s", target)
	}
	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	return check(realRoot, filepath.Clean(target))
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("fsutil: invalid root path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("fsutil: resolve root: %w", err)
	}
	return resolved, nil
}

// check resolves full (or its parent when full does not exist yet) and
// verifies it stays under realRoot.
func check(realRoot, full string) (string, error) {
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("fsutil: resolve path: %w", err)
		}
		resolved = full
		if parent, perr := filepath.EvalSymlinks(filepath.Dir(full)); perr == nil {
			resolved = filepath.Join(parent, filepath.Base(full))
		}
	}
	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("fsutil: rel: %w", err)
	}
	if escapes(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, full)
	}
	return resolved, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
