// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionopts builds the per-session option record the transport
// and SDK client need to start an assistant CLI run: tool allow/deny
// lists, MCP server registrations, and the fixed buffer policy.
package sessionopts

import (
	"log"

	"github.com/wingedpig/homespun/internal/cliproc"
)

// Mode is a session's operating mode.
type Mode string

const (
	Plan  Mode = "Plan"
	Build Mode = "Build"
)

const askUserToolName = "mcp__homespun__ask_user"
const builtInAskUserTool = "AskUserQuestion"

// planAllowedTools is the fixed read-only tool set for Plan mode, per the
// superset interpretation of the Open Question in the specification:
// ExitPlanMode is always included regardless of whether an ask-user
// function is registered.
var planAllowedTools = []string{"Read", "Glob", "Grep", "WebFetch", "WebSearch", "ExitPlanMode"}

// MCPServerConfig describes one secondary tool-provider subprocess.
type MCPServerConfig struct {
	Type    string   `json:"type"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// AskUserFunc answers an ask-user MCP tool invocation. Its concrete
// wiring (stdio handler registration) lives outside this package; here
// it only gates which options are produced.
type AskUserFunc func(question string) (string, error)

// Options is the per-session configuration produced by Create. The
// lifecycle manager turns it into cliproc.Options: Cwd and the buffer
// policy directly, and Resume, Model, SystemPrompt and the tool lists as
// CLI arguments. MCPServers is not passed to the CLI process.
type Options struct {
	Cwd                    string
	Model                  string
	SystemPrompt           string
	AllowedTools           []string
	DisallowedTools        []string
	MCPServers             map[string]MCPServerConfig
	MaxBufferSize           int
	BufferOverflowBehavior cliproc.OverflowBehavior
	OnBufferOverflow       func(kind string, observedBytes, limitBytes int)
	Resume                 string
}

const defaultMaxBufferSize = 10 * 1024 * 1024

// Create builds the Options record for a session of the given mode. It
// is a pure function: the same inputs always produce the same output.
func Create(mode Mode, cwd, model, systemPrompt string, askUser AskUserFunc) Options {
	opts := Options{
		Cwd:                    cwd,
		Model:                  model,
		SystemPrompt:           systemPrompt,
		MaxBufferSize:           defaultMaxBufferSize,
		BufferOverflowBehavior: cliproc.SkipMessage,
		OnBufferOverflow: func(kind string, observed, limit int) {
			log.Printf("sessionopts: buffer overflow (%s): %d bytes exceeds limit %d", kind, observed, limit)
		},
		MCPServers: map[string]MCPServerConfig{
			"playwright": {
				Type:    "stdio",
				Command: "npx",
				Args:    []string{"@playwright/mcp@latest", "--headless"},
			},
		},
	}

	switch mode {
	case Plan:
		tools := make([]string, len(planAllowedTools))
		copy(tools, planAllowedTools)
		if askUser != nil {
			tools = append(tools, askUserToolName)
		}
		opts.AllowedTools = tools
	case Build:
		opts.AllowedTools = nil
	}

	if askUser != nil {
		opts.MCPServers["homespun"] = MCPServerConfig{Type: "stdio"}
		opts.DisallowedTools = append(opts.DisallowedTools, builtInAskUserTool)
	}

	return opts
}

// WithResume returns a copy of opts with Resume set, used by the
// lifecycle manager to carry the conversation id on follow-up sends.
func (o Options) WithResume(resume string) Options {
	o.Resume = resume
	return o
}

// WithModel returns a copy of opts with Model overridden, when a caller
// supplies a per-send model override.
func (o Options) WithModel(model string) Options {
	if model != "" {
		o.Model = model
	}
	return o
}
