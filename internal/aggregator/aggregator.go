// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package aggregator reconstructs whole assistant messages and tool-call
// records from fine-grained start/delta/end streaming events, keeping
// independent accumulator state per session so concurrent sessions never
// interfere with one another.
package aggregator

import (
	"strings"
	"sync"
)

// ContentType distinguishes the two shapes a ClaudeMessageContent can
// carry once emitted.
type ContentType string

const (
	ContentToolUse    ContentType = "tool_use"
	ContentToolResult ContentType = "tool_result"
)

// ClaudeMessage is a completed text message, emitted on TextMessageEnd.
type ClaudeMessage struct {
	Role string
	Text string
}

// ClaudeMessageContent is a completed tool-call record or a tool result,
// emitted on ToolCallEnd / ToolCallResult respectively.
type ClaudeMessageContent struct {
	Type       ContentType
	ToolName   string
	ToolInput  string
	ToolUseID  string
	ToolResult string
}

// Events is the set of channels a caller subscribes to in order to
// receive the aggregator's output. Each channel is buffered and
// drop-on-full, per the "avoid unbounded fan-out" design note — a slow
// subscriber loses the oldest-pending notification rather than stalling
// event application.
type Events struct {
	MessageCompleted  chan SessionMessage
	ToolCallCompleted chan SessionContent
	ToolResultReceived chan SessionContent
	RunStarted        chan string
	RunFinished       chan string
	RunError          chan SessionError
}

// SessionMessage pairs a sessionId with its completed message.
type SessionMessage struct {
	SessionID string
	Message   ClaudeMessage
}

// SessionContent pairs a sessionId with a completed tool-call record.
type SessionContent struct {
	SessionID string
	Content   ClaudeMessageContent
}

// SessionError pairs a sessionId with a run error message.
type SessionError struct {
	SessionID string
	Message   string
}

const eventBufferSize = 256

func newEvents() Events {
	return Events{
		MessageCompleted:   make(chan SessionMessage, eventBufferSize),
		ToolCallCompleted:  make(chan SessionContent, eventBufferSize),
		ToolResultReceived: make(chan SessionContent, eventBufferSize),
		RunStarted:         make(chan string, eventBufferSize),
		RunFinished:        make(chan string, eventBufferSize),
		RunError:           make(chan SessionError, eventBufferSize),
	}
}

type messageKey struct {
	sessionID string
	messageID string
}

type toolCallKey struct {
	sessionID string
	toolCallID string
}

type messageState struct {
	role string
	buf  strings.Builder
}

type toolCallState struct {
	toolName        string
	parentMessageID string
	buf             strings.Builder
}

// Aggregator holds all in-flight accumulator state across every session
// it serves. All mutation happens under one mutex; callers that need
// per-session concurrency should run one Aggregator per session, or rely
// on the single-consumer-loop pattern the lifecycle manager uses.
type Aggregator struct {
	mu        sync.Mutex
	messages  map[messageKey]*messageState
	toolCalls map[toolCallKey]*toolCallState
	events    Events
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		messages:  make(map[messageKey]*messageState),
		toolCalls: make(map[toolCallKey]*toolCallState),
		events:    newEvents(),
	}
}

// Events returns the channel bundle subscribers read completed output
// from.
func (a *Aggregator) Events() Events { return a.events }

func emit[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		// Drop oldest: make room for the newest completed item rather
		// than block event application on a slow subscriber.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// TextMessageStart creates (or overwrites) the accumulator for
// (sessionID, messageID).
func (a *Aggregator) TextMessageStart(sessionID, messageID, role string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages[messageKey{sessionID, messageID}] = &messageState{role: role}
}

// TextMessageContent appends delta to the message's buffer, creating the
// entry implicitly with role "assistant" if TextMessageStart was never
// observed.
func (a *Aggregator) TextMessageContent(sessionID, messageID, delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := messageKey{sessionID, messageID}
	st, ok := a.messages[k]
	if !ok {
		st = &messageState{role: "assistant"}
		a.messages[k] = st
	}
	st.buf.WriteString(delta)
}

// TextMessageEnd emits the completed message and deletes the
// accumulator. No-op if the id was never started.
func (a *Aggregator) TextMessageEnd(sessionID, messageID string) {
	a.mu.Lock()
	k := messageKey{sessionID, messageID}
	st, ok := a.messages[k]
	if ok {
		delete(a.messages, k)
	}
	a.mu.Unlock()

	if !ok {
		return
	}
	emit(a.events.MessageCompleted, SessionMessage{
		SessionID: sessionID,
		Message:   ClaudeMessage{Role: st.role, Text: st.buf.String()},
	})
}

// ToolCallStart creates the accumulator for (sessionID, toolCallID).
func (a *Aggregator) ToolCallStart(sessionID, toolCallID, toolName, parentMessageID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toolCalls[toolCallKey{sessionID, toolCallID}] = &toolCallState{
		toolName:        toolName,
		parentMessageID: parentMessageID,
	}
}

// ToolCallArgs appends delta to the tool call's argument buffer.
func (a *Aggregator) ToolCallArgs(sessionID, toolCallID, delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := toolCallKey{sessionID, toolCallID}
	st, ok := a.toolCalls[k]
	if !ok {
		st = &toolCallState{}
		a.toolCalls[k] = st
	}
	st.buf.WriteString(delta)
}

// ToolCallEnd emits the completed tool-call record and deletes the
// accumulator.
func (a *Aggregator) ToolCallEnd(sessionID, toolCallID string) {
	a.mu.Lock()
	k := toolCallKey{sessionID, toolCallID}
	st, ok := a.toolCalls[k]
	if ok {
		delete(a.toolCalls, k)
	}
	a.mu.Unlock()

	if !ok {
		return
	}
	emit(a.events.ToolCallCompleted, SessionContent{
		SessionID: sessionID,
		Content: ClaudeMessageContent{
			Type:      ContentToolUse,
			ToolName:  st.toolName,
			ToolInput: st.buf.String(),
			ToolUseID: toolCallID,
		},
	})
}

// ToolCallResult emits a tool-result record. No accumulator state is
// stored for results.
func (a *Aggregator) ToolCallResult(sessionID, toolCallID, content string) {
	emit(a.events.ToolResultReceived, SessionContent{
		SessionID: sessionID,
		Content: ClaudeMessageContent{
			Type:       ContentToolResult,
			ToolUseID:  toolCallID,
			ToolResult: content,
		},
	})
}

// RunStarted emits a run-started notification.
func (a *Aggregator) RunStarted(sessionID string) {
	emit(a.events.RunStarted, sessionID)
}

// RunFinished emits a run-finished notification and clears all in-flight
// state for the session.
func (a *Aggregator) RunFinished(sessionID string) {
	a.clearSession(sessionID)
	emit(a.events.RunFinished, sessionID)
}

// RunError emits a run-error notification and clears all in-flight state
// for the session.
func (a *Aggregator) RunError(sessionID, message string) {
	a.clearSession(sessionID)
	emit(a.events.RunError, SessionError{SessionID: sessionID, Message: message})
}

func (a *Aggregator) clearSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.messages {
		if k.sessionID == sessionID {
			delete(a.messages, k)
		}
	}
	for k := range a.toolCalls {
		if k.sessionID == sessionID {
			delete(a.toolCalls, k)
		}
	}
}

// HasInFlightMessage reports whether an accumulator exists for
// (sessionID, messageID).
func (a *Aggregator) HasInFlightMessage(sessionID, messageID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.messages[messageKey{sessionID, messageID}]
	return ok
}

// HasInFlightToolCall reports whether an accumulator exists for
// (sessionID, toolCallID).
func (a *Aggregator) HasInFlightToolCall(sessionID, toolCallID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.toolCalls[toolCallKey{sessionID, toolCallID}]
	return ok
}
