// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package remoteworker is the drop-in alternative to cliproc+sdkclient
// for when the assistant runs inside a container: it talks to a
// containerized worker over HTTP+SSE and translates between host and
// container file paths.
package remoteworker

import "strings"

// ContainerConfig describes the container the worker process runs in.
type ContainerConfig struct {
	WorkerImage      string
	DataVolumePath   string
	HostDataPath     string
	MemoryLimitBytes int64
	CPULimit         float64
	RequestTimeout   string
	DockerSocketPath string
	NetworkName      string
}

// TranslatePath maps an in-container path P back to its host-visible
// equivalent. If HostDataPath is empty, P is returned unchanged — the
// caller and the worker are assumed to share the same filesystem view.
// Otherwise, a P that equals DataVolumePath or is rooted under it is
// rebased onto HostDataPath; any other P is returned unchanged.
func (c ContainerConfig) TranslatePath(p string) string {
	if c.HostDataPath == "" {
		return p
	}
	if p == c.DataVolumePath {
		return c.HostDataPath
	}
	prefix := c.DataVolumePath
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if strings.HasPrefix(p, prefix) {
		return c.HostDataPath + "/" + strings.TrimPrefix(p, prefix)
	}
	return p
}
