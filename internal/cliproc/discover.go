// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package cliproc supervises the external assistant CLI subprocess: it
// discovers the executable, spawns it, frames outbound writes, and
// decodes the newline-delimited stdout stream into protocol messages.
package cliproc

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/wingedpig/homespun/internal/engineerr"
)

// candidateNames returns the platform-appropriate executable names to
// search for, in priority order.
func candidateNames() []string {
	if runtime.GOOS == "windows" {
		return []string{"claude.cmd", "claude.exe", "claude"}
	}
	return []string{"claude"}
}

// Discover locates the CLI executable. explicitPath, when non-empty, is
// honored unconditionally. Otherwise PATH is searched, followed by
// $HOME/.local/bin. Failure to locate any candidate returns a
// KindCliNotFound error.
func Discover(explicitPath string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}

	for _, name := range candidateNames() {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		localBin := filepath.Join(home, ".local", "bin")
		for _, name := range candidateNames() {
			p := filepath.Join(localBin, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}

	return "", engineerr.New(engineerr.KindCliNotFound, "", nil,
		"could not locate the assistant CLI executable on PATH or in ~/.local/bin")
}
