// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sdkclient wraps a cliproc.Transport with the control-request/
// response framing and connection lifecycle the assistant CLI protocol
// requires: connect, send control responses, interrupt, and dispose.
package sdkclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/wingedpig/homespun/internal/cliproc"
	"github.com/wingedpig/homespun/internal/engineerr"
	"github.com/wingedpig/homespun/internal/protocol"
)

// ControlBehavior is the outcome reported back to the CLI for a pending
// permission control_request.
type ControlBehavior string

const (
	Allow ControlBehavior = "allow"
	Deny  ControlBehavior = "deny"
)

// Client wraps one Transport, providing the incoming message stream and
// the control-response/interrupt write framing on top of it.
type Client struct {
	mu        sync.Mutex
	transport *cliproc.Transport
	connected atomic.Bool
}

// New creates an unconnected Client.
func New() *Client {
	return &Client{}
}

// ConnectAsync spawns the underlying transport and begins its read loop.
// Concurrent or repeated calls after the first success are idempotent.
func (c *Client) ConnectAsync(ctx context.Context, opts cliproc.Options) error {
	if c.connected.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected.Load() {
		return nil
	}

	tr, err := cliproc.Spawn(ctx, opts)
	if err != nil {
		return err
	}
	c.transport = tr
	c.connected.Store(true)
	return nil
}

// Incoming exposes the decoded message stream. Returns nil if not yet
// connected.
func (c *Client) Incoming() <-chan *protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return nil
	}
	return c.transport.Incoming()
}

// ReadErr exposes the terminal transport error, once Incoming closes.
func (c *Client) ReadErr() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return nil
	}
	return c.transport.ReadErr()
}

type controlResponseEnvelope struct {
	Type     string              `json:"type"`
	Response controlResponseBody `json:"response"`
}

type controlResponseBody struct {
	Subtype   string          `json:"subtype"`
	RequestID string          `json:"request_id"`
	Response  innerControl    `json:"response"`
}

type innerControl struct {
	Behavior     ControlBehavior `json:"behavior"`
	UpdatedInput json.RawMessage `json:"updatedInput,omitempty"`
	Message      *string         `json:"message,omitempty"`
}

// SendControlResponse writes the canonical control_response envelope. An
// allow response always carries an updatedInput object (empty when
// updatedInput is nil); a deny response always carries a message
// (defaulting to "") and never an updatedInput key.
func (c *Client) SendControlResponse(requestID string, behavior ControlBehavior, updatedInput json.RawMessage, denyMessage string) error {
	if !c.connected.Load() {
		return engineerr.New(engineerr.KindCliConnection, "", nil, "control response written before connect")
	}

	inner := innerControl{Behavior: behavior}
	switch behavior {
	case Allow:
		if updatedInput == nil {
			updatedInput = json.RawMessage(`{}`)
		}
		inner.UpdatedInput = updatedInput
	case Deny:
		inner.UpdatedInput = nil
		inner.Message = &denyMessage
	}

	env := controlResponseEnvelope{
		Type: "control_response",
		Response: controlResponseBody{
			Subtype:   "success",
			RequestID: requestID,
			Response:  inner,
		},
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

type controlRequestEnvelope struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

// Interrupt writes an interrupt control request to the transport.
func (c *Client) Interrupt() error {
	if !c.connected.Load() {
		return engineerr.New(engineerr.KindCliConnection, "", nil, "interrupt written before connect")
	}
	data, err := json.Marshal(controlRequestEnvelope{Type: "control_request", Subtype: "interrupt"})
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

// WriteUser writes a plain user-message frame carrying text.
func (c *Client) WriteUser(sessionID, text string) error {
	if !c.connected.Load() {
		return engineerr.New(engineerr.KindCliConnection, sessionID, nil, "write before connect")
	}
	frame := struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id,omitempty"`
		Message   struct {
			Role    string                 `json:"role"`
			Content []protocol.ContentBlock `json:"content"`
		} `json:"message"`
	}{Type: "user", SessionID: sessionID}
	frame.Message.Role = "user"
	frame.Message.Content = []protocol.ContentBlock{{Type: protocol.ContentText, Text: text}}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

func (c *Client) writeRaw(data []byte) error {
	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()
	if tr == nil {
		return engineerr.New(engineerr.KindCliConnection, "", nil, "not connected")
	}
	return tr.Write(data)
}

// Dispose closes the transport and drains its incoming stream.
func (c *Client) Dispose() error {
	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Dispose()
}
