// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package protocol decodes the newline-delimited JSON messages exchanged
// with the assistant CLI subprocess into typed values. Decoding never
// fails on an unrecognized type tag — unknown message and content-block
// types decode to a neutral zero value that callers skip.
package protocol

import (
	"encoding/json"
	"log"
)

// MessageType enumerates the top-level envelope types.
type MessageType string

const (
	MessageSystem      MessageType = "system"
	MessageAssistant   MessageType = "assistant"
	MessageUser        MessageType = "user"
	MessageResult      MessageType = "result"
	MessageStreamEvent MessageType = "stream_event"
	MessageUnknown     MessageType = ""
)

// ContentBlockType enumerates the content-block variants nested inside
// assistant/user messages.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentThinking   ContentBlockType = "thinking"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
	ContentUnknown    ContentBlockType = ""
)

// ContentBlock is one entry of an assistant/user message's content array.
// tool_use.Input and stream_event payloads are kept as raw JSON per the
// "dynamic duck-typed payloads" design note — only a consumer that opts
// in decodes them further.
type ContentBlock struct {
	Type      ContentBlockType `json:"type"`
	Text      string           `json:"text,omitempty"`
	Thinking  string           `json:"thinking,omitempty"`
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Input     json.RawMessage  `json:"input,omitempty"`
	ToolUseID string           `json:"tool_use_id,omitempty"`
	Content   string           `json:"content,omitempty"`
	IsError   bool             `json:"is_error,omitempty"`
}

// InnerMessage is the nested {role, content} payload of assistant/user
// envelopes.
type InnerMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Message is the decoded form of one line of the CLI's stdout. Only the
// fields relevant to the envelope's Type are populated; callers switch on
// Type before reading the rest.
type Message struct {
	Type            MessageType     `json:"type"`
	SessionID       string          `json:"session_id,omitempty"`
	UUID            string          `json:"uuid,omitempty"`
	Subtype         string          `json:"subtype,omitempty"`
	ParentToolUseID string          `json:"parent_tool_use_id,omitempty"`

	// system
	Model string          `json:"model,omitempty"`
	Tools json.RawMessage `json:"tools,omitempty"`

	// assistant / user
	Inner *InnerMessage `json:"message,omitempty"`

	// result
	DurationMs    int64   `json:"duration_ms,omitempty"`
	DurationAPIMs int64   `json:"duration_api_ms,omitempty"`
	IsError       bool    `json:"is_error,omitempty"`
	NumTurns      int     `json:"num_turns,omitempty"`
	TotalCostUsd  Decimal `json:"total_cost_usd"`
	Result        string  `json:"result,omitempty"`
	Errors        []string `json:"errors,omitempty"`

	// stream_event
	Event json.RawMessage `json:"event,omitempty"`
}

// envelope is used to read the discriminator before committing to the
// full typed decode, matching the polymorphic-dispatch design note.
type envelope struct {
	Type MessageType `json:"type"`
}

// Parse decodes a single line of CLI stdout. A nil return with a nil error
// means the line carried a recognized-but-empty or unknown type and the
// caller should drop it; a non-nil error means the line's JSON or its
// required fields were malformed and was also dropped, but is reported so
// the caller can log it.
func Parse(line []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case MessageSystem, MessageAssistant, MessageUser, MessageResult, MessageStreamEvent:
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errMissingField("session_id")
		}
		if msg.Inner != nil {
			for i, block := range msg.Inner.Content {
				switch block.Type {
				case ContentText, ContentThinking, ContentToolUse, ContentToolResult:
				default:
					msg.Inner.Content[i] = ContentBlock{}
				}
			}
		}
		if env.Type == MessageResult {
			var hasDurations struct {
				DurationMs    *int64 `json:"duration_ms"`
				DurationAPIMs *int64 `json:"duration_api_ms"`
			}
			_ = json.Unmarshal(line, &hasDurations)
			if hasDurations.DurationMs == nil || hasDurations.DurationAPIMs == nil {
				return nil, errMissingField("duration_ms/duration_api_ms")
			}
		}
		return &msg, nil
	default:
		// Unknown top-level type: skip without error per testable
		// property 10.
		return nil, nil
	}
}

// ParseLogged behaves like Parse but logs malformed lines instead of
// returning the error, matching the read loop's "log and continue"
// contract.
func ParseLogged(logger *log.Logger, line []byte) *Message {
	if logger == nil {
		logger = log.Default()
	}
	msg, err := Parse(line)
	if err != nil {
		logger.Printf("protocol: dropping malformed line: %v", err)
		return nil
	}
	return msg
}

type fieldError string

func (e fieldError) Error() string { return "missing required field: " + string(e) }

func errMissingField(name string) error { return fieldError(name) }
