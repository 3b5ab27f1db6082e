// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package engineerr defines the typed error taxonomy shared across the
// session orchestration engine's components.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the abstract error categories the engine raises.
type Kind string

const (
	KindCliNotFound     Kind = "CLI_NOT_FOUND"
	KindCliConnection   Kind = "CLI_CONNECTION"
	KindStartup         Kind = "STARTUP_FAILED"
	KindConnectionLost  Kind = "CONNECTION_LOST"
	KindTimeout         Kind = "TIMEOUT"
	KindCliExit         Kind = "CLI_ERROR"
	KindSessionNotFound Kind = "SESSION_NOT_FOUND"
	KindSessionState    Kind = "STATE_MISMATCH"
	KindBufferOverflow  Kind = "BUFFER_OVERFLOW"
)

// retryable reports the default retry classification for each kind, per
// the failure-classification table in the lifecycle manager design.
var retryable = map[Kind]bool{
	KindCliNotFound:     false,
	KindCliConnection:   true,
	KindStartup:         true,
	KindConnectionLost:  true,
	KindTimeout:         false,
	KindCliExit:         false,
	KindSessionNotFound: false,
	KindSessionState:    false,
	KindBufferOverflow:  false,
}

// Error is the engine's structured error type. Every public operation that
// can fail returns one of these (or wraps one), so callers get a uniform
// retry signal instead of sentinel-checking individual causes.
type Error struct {
	Kind      Kind
	SessionID string
	Message   string
	ExitCode  int
	StdErr    string
	Current   string
	Expected  string
	Err       error
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s [session %s]: %s", e.Kind, e.SessionID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may reasonably retry the operation
// that produced this error.
func (e *Error) Retryable() bool {
	return retryable[e.Kind]
}

// New builds an Error of the given kind wrapping cause, with a formatted
// message.
func New(kind Kind, sessionID string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:      kind,
		SessionID: sessionID,
		Message:   fmt.Sprintf(format, args...),
		Err:       cause,
	}
}

// CliExit builds the CliExit error carrying process exit details.
func CliExit(sessionID string, exitCode int, stdErr string) *Error {
	return &Error{
		Kind:      KindCliExit,
		SessionID: sessionID,
		Message:   fmt.Sprintf("cli exited with code %d", exitCode),
		ExitCode:  exitCode,
		StdErr:    stdErr,
	}
}

// SessionState builds the SessionState error describing a status mismatch.
func SessionState(sessionID, current, expected string) *Error {
	return &Error{
		Kind:      KindSessionState,
		SessionID: sessionID,
		Message:   fmt.Sprintf("session in state %s, expected %s", current, expected),
		Current:   current,
		Expected:  expected,
	}
}

// IsRetryable reports whether err (if an *Error) is retryable; non-Error
// values are treated as non-retryable. The engine itself never retries —
// deciding whether and how to retry a failed Start/Send is the hosting
// application's call, per spec.md's division of responsibility, so this
// is surfaced for that caller rather than consumed internally.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
