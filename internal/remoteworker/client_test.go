// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remoteworker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/homespun/internal/remoteworker"
)

func TestGetStatusNotFoundReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := remoteworker.New(srv.URL)
	status, err := c.GetStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestGetStatusDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionId":"s1","status":"Running"}`))
	}))
	defer srv.Close()

	c := remoteworker.New(srv.URL)
	status, err := c.GetStatus(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "Running", status.Status)
}

func TestInterruptOnMissingSessionIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := remoteworker.New(srv.URL)
	assert.NoError(t, c.Interrupt(context.Background(), "missing"))
}

func TestStopSucceedsOn204(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := remoteworker.New(srv.URL)
	assert.NoError(t, c.Stop(context.Background(), "s1"))
}
