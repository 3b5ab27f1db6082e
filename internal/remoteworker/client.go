// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remoteworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"golang.org/x/net/http2"

	"github.com/wingedpig/homespun/internal/engineerr"
)

// Option configures a Client, in the functional-options pattern.
type Option func(*Client)

// WithHTTPClient overrides the client's http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client talks to one remote worker instance over HTTP+SSE. It exposes
// the same Start/Send/Interrupt/Stop/GetStatus surface as the local
// transport+SDK-client pair.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client pointed at the worker's base URL. The default
// transport is configured for HTTP/2 so a session's long-lived SSE
// response body multiplexes cleanly over the same connection as other
// requests to the same worker instead of pinning a whole HTTP/1.1
// connection for the duration of the stream.
func New(baseURL string, opts ...Option) *Client {
	transport := &http.Transport{}
	if err := http2.ConfigureTransport(transport); err != nil {
		transport = nil
	}

	httpClient := &http.Client{Timeout: 30 * time.Minute}
	if transport != nil {
		httpClient.Transport = transport
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Event is one decoded server-sent event from the worker.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"-"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	WorkingDirectory string `json:"workingDirectory"`
	Mode             string `json:"mode"`
	Model            string `json:"model"`
	Prompt           string `json:"prompt"`
	SystemPrompt     string `json:"systemPrompt,omitempty"`
	ResumeSessionID  string `json:"resumeSessionId,omitempty"`
}

// SendRequest is the body of POST /sessions/{id}/messages.
type SendRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

// Start begins a new remote session and returns its SSE event stream.
func (c *Client) Start(ctx context.Context, req StartRequest) (*ssestream.Stream[Event], error) {
	return c.postSSE(ctx, "/sessions", req)
}

// Send posts a follow-up message to an existing remote session.
func (c *Client) Send(ctx context.Context, sessionID string, req SendRequest) (*ssestream.Stream[Event], error) {
	return c.postSSE(ctx, fmt.Sprintf("/sessions/%s/messages", sessionID), req)
}

// Interrupt signals the worker to interrupt a running session. A 404 is
// treated as a no-op per the "unknown sessionIds are no-ops" contract.
func (c *Client) Interrupt(ctx context.Context, sessionID string) error {
	return c.postNoContent(ctx, fmt.Sprintf("/sessions/%s/interrupt", sessionID))
}

// Stop tears down a remote session. A 404 is treated as a no-op.
func (c *Client) Stop(ctx context.Context, sessionID string) error {
	return c.postNoContent(ctx, fmt.Sprintf("/sessions/%s/stop", sessionID))
}

// Status is the worker's reported session status.
type Status struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// GetStatus fetches a remote session's status. Returns (nil, nil) for a
// 404, matching "GET /sessions/{id} — session status or null".
func (c *Client) GetStatus(ctx context.Context, sessionID string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, engineerr.New(engineerr.KindConnectionLost, sessionID, err, "fetching remote session status")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, engineerr.New(engineerr.KindCliExit, sessionID, nil, "remote worker returned status %d", resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) postSSE(ctx context.Context, path string, body interface{}) (*ssestream.Stream[Event], error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, engineerr.New(engineerr.KindConnectionLost, "", err, "posting to remote worker")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, engineerr.New(engineerr.KindCliExit, "", nil, "remote worker returned status %d", resp.StatusCode)
	}

	decoder := ssestream.NewDecoder(resp)
	return ssestream.NewStream[Event](decoder, nil), nil
}

func (c *Client) postNoContent(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engineerr.New(engineerr.KindConnectionLost, "", err, "posting to remote worker")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return engineerr.New(engineerr.KindCliExit, "", nil, "remote worker returned status %d", resp.StatusCode)
	}
	return nil
}
