// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// FuncChecker adapts a probe function. A probe error makes the component
// unhealthy, or degraded when the checker is informational.
type FuncChecker struct {
	name          string
	probe         func(ctx context.Context) error
	informational bool
}

// NewFuncChecker returns a checker that fails readiness when probe fails.
func NewFuncChecker(name string, probe func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, probe: probe}
}

// Informational downgrades failures to degraded so they never fail readiness.
func Informational(c *FuncChecker) *FuncChecker {
	c.informational = true
	return c
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.probe(ctx); err != nil {
		status := StatusUnhealthy
		if c.informational {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// NewWritableDirChecker checks that dir exists and accepts new files.
func NewWritableDirChecker(name, dir string) *FuncChecker {
	return NewFuncChecker(name, func(context.Context) error {
		return checkWritable(dir)
	})
}

// NewBinaryChecker checks that bin resolves on PATH. Missing binaries only
// degrade the service.
func NewBinaryChecker(name, bin string) *FuncChecker {
	return Informational(NewFuncChecker(name, func(context.Context) error {
		_, err := exec.LookPath(bin)
		return err
	}))
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
