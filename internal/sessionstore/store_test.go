// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/homespun/internal/sessionstore"
)

func TestAddOverwritesOnDuplicateID(t *testing.T) {
	s := sessionstore.New()
	s.Add(sessionstore.Record{ID: "s1", Status: sessionstore.Starting})
	s.Add(sessionstore.Record{ID: "s1", Status: sessionstore.Running})

	r, ok := s.GetByID("s1")
	require.True(t, ok)
	assert.Equal(t, sessionstore.Running, r.Status)
	assert.Len(t, s.GetAll(), 1)
}

func TestEntityIndexLastWriteWins(t *testing.T) {
	s := sessionstore.New()
	s.Add(sessionstore.Record{ID: "s1", EntityID: "e1"})
	s.Add(sessionstore.Record{ID: "s2", EntityID: "e1"})

	r, ok := s.GetByEntityID("e1")
	require.True(t, ok)
	assert.Equal(t, "s2", r.ID)
}

func TestProjectIndexIsNonUnique(t *testing.T) {
	s := sessionstore.New()
	s.Add(sessionstore.Record{ID: "s1", ProjectID: "p1"})
	s.Add(sessionstore.Record{ID: "s2", ProjectID: "p1"})

	recs := s.GetByProjectID("p1")
	assert.Len(t, recs, 2)
}

func TestRemoveUnknownIDReturnsFalse(t *testing.T) {
	s := sessionstore.New()
	assert.False(t, s.Remove("missing"))
}

func TestRemoveClearsIndexes(t *testing.T) {
	s := sessionstore.New()
	s.Add(sessionstore.Record{ID: "s1", EntityID: "e1", ProjectID: "p1"})
	require.True(t, s.Remove("s1"))

	_, ok := s.GetByEntityID("e1")
	assert.False(t, ok)
	assert.Empty(t, s.GetByProjectID("p1"))
}
