// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs helper processes in their own process group so a
// timeout or cancellation reaps the whole tree, not just the leader.
package procgroup

import (
	"os/exec"
)

// Set configures cmd to start in a new process group and installs a Cancel
// hook that kills the group when the command's context ends.
func Set(cmd *exec.Cmd) {
	set(cmd)
	cmd.Cancel = func() error { return Kill(cmd) }
}

// Kill terminates the process group of a started command. A command that was
// never started or has already exited is not an error.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return killGroup(cmd)
}
