// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package remoteworker

// UserIdentity returns "" on non-Linux platforms: the container runtime
// handles user identity itself there.
func UserIdentity() string {
	return ""
}
