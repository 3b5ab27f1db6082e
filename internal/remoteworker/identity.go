// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package remoteworker

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// UserIdentity derives the "<uid>:<gid>" string the worker uses to run
// its process as the calling user. Only meaningful on Linux; darwin and
// windows builds return "" (the container handles identity itself).
func UserIdentity() string {
	return fmt.Sprintf("%d:%d", unix.Getuid(), unix.Getgid())
}
