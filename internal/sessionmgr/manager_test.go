// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionmgr_test

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/homespun/internal/sessionmgr"
	"github.com/wingedpig/homespun/internal/sessionopts"
)

// writeResumeEchoingCLI writes a fake assistant CLI that reports, as its
// conversation id, "conv-1" on a fresh invocation or "resumed:<token>"
// when invoked with --resume <token>. It reads the single user frame the
// manager writes, then replies without waiting for stdin to close (the
// manager keeps stdin open for the whole turn). This lets a test observe
// whether a follow-up turn carried the right resume token without a real
// CLI.
func writeResumeEchoingCLI(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI script is POSIX-shell only")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-cli.sh")
	script := `#!/bin/sh
read -r _
conv="conv-1"
prev=""
for a in "$@"; do
  if [ "$prev" = "--resume" ]; then
    conv="resumed:$a"
  fi
  prev="$a"
done
echo "{\"type\":\"result\",\"session_id\":\"$conv\",\"duration_ms\":1,\"duration_api_ms\":1,\"is_error\":false,\"num_turns\":1,\"total_cost_usd\":0}"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestManager(t *testing.T, cliPath string) *sessionmgr.Manager {
	t.Helper()
	metaPath := filepath.Join(t.TempDir(), "metadata.json")
	return sessionmgr.New(cliPath, metaPath, log.New(os.Stderr, "", 0))
}

// sessionmgrWithScript builds a Manager whose cliPath directly executes
// the fake CLI shell script, by writing a one-line executable wrapper so
// cliproc.Spawn's fixed protocol flags pass straight through to it.
func sessionmgrWithScript(t *testing.T, script string) *sessionmgr.Manager {
	t.Helper()
	dir := t.TempDir()
	wrapper := filepath.Join(dir, "cli")
	content := "#!/bin/sh\nexec " + script + " \"$@\"\n"
	require.NoError(t, os.WriteFile(wrapper, []byte(content), 0o755))
	metaPath := filepath.Join(t.TempDir(), "metadata.json")
	return sessionmgr.New(wrapper, metaPath, log.New(os.Stderr, "", 0))
}

func waitForStatus(t *testing.T, mgr *sessionmgr.Manager, sessionID, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		rec, ok := mgr.LiveStore().GetByID(sessionID)
		if ok && string(rec.Status) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for session %s to reach status %s (last: %+v)", sessionID, want, rec)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// waitForConversationID polls until the consumer goroutine has captured
// want from a result message. Start marks a session Running before any
// result arrives, so waitForStatus alone does not order the capture.
func waitForConversationID(t *testing.T, mgr *sessionmgr.Manager, sessionID, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		rec, ok := mgr.LiveStore().GetByID(sessionID)
		if ok && rec.ConversationID == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for session %s to reach conversation id %s (last: %+v)", sessionID, want, rec)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartConnectsAndCapturesConversationID(t *testing.T) {
	script := writeResumeEchoingCLI(t)
	mgr := sessionmgrWithScript(t, script)

	res, err := mgr.Start(context.Background(), "entity-1", "proj-1", t.TempDir(), sessionopts.Build, "", "hello", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)

	waitForStatus(t, mgr, res.SessionID, "Running")
	waitForConversationID(t, mgr, res.SessionID, "conv-1")
	rec, ok := mgr.LiveStore().GetByID(res.SessionID)
	require.True(t, ok)
	assert.Equal(t, "conv-1", rec.ConversationID)
}

func TestSendCarriesConversationIDAsResumeToken(t *testing.T) {
	cwd := t.TempDir()

	script := writeResumeEchoingCLI(t)
	wrapperMgr := sessionmgrWithScript(t, script)

	res, err := wrapperMgr.Start(context.Background(), "entity-2", "proj-2", cwd, sessionopts.Build, "", "hello", "")
	require.NoError(t, err)
	waitForStatus(t, wrapperMgr, res.SessionID, "Running")
	waitForConversationID(t, wrapperMgr, res.SessionID, "conv-1")

	rec, ok := wrapperMgr.LiveStore().GetByID(res.SessionID)
	require.True(t, ok)
	require.Equal(t, "conv-1", rec.ConversationID)

	require.NoError(t, wrapperMgr.Send(context.Background(), res.SessionID, "follow up", ""))
	waitForStatus(t, wrapperMgr, res.SessionID, "Running")

	// The fake CLI echoes "resumed:conv-1" as its new conversation id
	// whenever --resume conv-1 is passed, proving continuity (property 13).
	deadline := time.After(5 * time.Second)
	for {
		rec, _ = wrapperMgr.LiveStore().GetByID(res.SessionID)
		if rec.ConversationID == "resumed:conv-1" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("resume token never propagated, last conversation id: %s", rec.ConversationID)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSendOnUnknownSessionIsSessionNotFound(t *testing.T) {
	mgr := newTestManager(t, "/bin/sh")
	err := mgr.Send(context.Background(), "no-such-session", "hi", "")
	require.Error(t, err)
}

func TestInterruptOnUnknownSessionIsNoop(t *testing.T) {
	mgr := newTestManager(t, "/bin/sh")
	assert.NoError(t, mgr.Interrupt("no-such-session"))
}

func TestStopOnUnknownSessionIsNoop(t *testing.T) {
	mgr := newTestManager(t, "/bin/sh")
	assert.NoError(t, mgr.Stop("no-such-session"))
}

func TestStopRemovesSessionFromLiveStore(t *testing.T) {
	script := writeResumeEchoingCLI(t)
	mgr := sessionmgrWithScript(t, script)

	res, err := mgr.Start(context.Background(), "entity-3", "proj-3", t.TempDir(), sessionopts.Build, "", "hello", "")
	require.NoError(t, err)
	waitForStatus(t, mgr, res.SessionID, "Running")

	require.NoError(t, mgr.Stop(res.SessionID))
	_, ok := mgr.LiveStore().GetByID(res.SessionID)
	assert.False(t, ok)
}
