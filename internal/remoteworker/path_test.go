// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remoteworker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wingedpig/homespun/internal/remoteworker"
)

func TestTranslatePathUnderDataVolume(t *testing.T) {
	c := remoteworker.ContainerConfig{DataVolumePath: "/data", HostDataPath: "/h/d"}
	assert.Equal(t, "/h/d/x", c.TranslatePath("/data/x"))
}

func TestTranslatePathExactlyDataVolume(t *testing.T) {
	c := remoteworker.ContainerConfig{DataVolumePath: "/data", HostDataPath: "/h/d"}
	assert.Equal(t, "/h/d", c.TranslatePath("/data"))
}

func TestTranslatePathOutsideDataVolumeUnchanged(t *testing.T) {
	c := remoteworker.ContainerConfig{DataVolumePath: "/data", HostDataPath: "/h/d"}
	assert.Equal(t, "/other", c.TranslatePath("/other"))
}

func TestTranslatePathNoHostConfiguredUnchanged(t *testing.T) {
	c := remoteworker.ContainerConfig{DataVolumePath: "/data"}
	assert.Equal(t, "/data/x", c.TranslatePath("/data/x"))
}
