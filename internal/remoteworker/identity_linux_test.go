// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package remoteworker_test

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wingedpig/homespun/internal/remoteworker"
)

func TestUserIdentityMatchesProcess(t *testing.T) {
	got := remoteworker.UserIdentity()
	assert.Equal(t, strconv.Itoa(os.Getuid())+":"+strconv.Itoa(os.Getgid()), got)
}
