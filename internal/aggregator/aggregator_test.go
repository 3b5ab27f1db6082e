// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package aggregator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/homespun/internal/aggregator"
)

func recvMessage(t *testing.T, ch <-chan aggregator.SessionMessage) aggregator.SessionMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completed message")
		return aggregator.SessionMessage{}
	}
}

func TestConcatenationOrder(t *testing.T) {
	a := aggregator.New()
	a.TextMessageStart("s", "A", "assistant")
	a.TextMessageContent("s", "A", "X")
	a.TextMessageContent("s", "A", "Y")
	a.TextMessageEnd("s", "A")

	msg := recvMessage(t, a.Events().MessageCompleted)
	assert.Equal(t, "XY", msg.Message.Text)
}

func TestScenarioBInterleavedMessages(t *testing.T) {
	a := aggregator.New()
	a.TextMessageStart("s", "A", "assistant")
	a.TextMessageStart("s", "B", "assistant")
	a.TextMessageContent("s", "A", "X")
	a.TextMessageContent("s", "B", "1")
	a.TextMessageContent("s", "A", "Y")
	a.TextMessageContent("s", "B", "2")
	a.TextMessageEnd("s", "A")
	a.TextMessageEnd("s", "B")

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		m := recvMessage(t, a.Events().MessageCompleted)
		if m.Message.Text == "XY" || m.Message.Text == "12" {
			got[m.Message.Text] = m.Message.Text
		}
	}
	assert.Contains(t, got, "XY")
	assert.Contains(t, got, "12")
}

func TestAggregatorIsolationAcrossSessions(t *testing.T) {
	a := aggregator.New()
	a.TextMessageStart("s1", "shared", "assistant")
	a.TextMessageStart("s2", "shared", "assistant")
	a.TextMessageContent("s1", "shared", "one")
	a.TextMessageContent("s2", "shared", "two")
	a.TextMessageEnd("s1", "shared")
	a.TextMessageEnd("s2", "shared")

	first := recvMessage(t, a.Events().MessageCompleted)
	second := recvMessage(t, a.Events().MessageCompleted)

	texts := map[string]bool{first.Message.Text: true, second.Message.Text: true}
	assert.True(t, texts["one"])
	assert.True(t, texts["two"])
}

func TestRunFinishedClearsAllInFlightState(t *testing.T) {
	a := aggregator.New()
	a.TextMessageStart("s", "A", "assistant")
	a.ToolCallStart("s", "T", "Read", "")

	require.True(t, a.HasInFlightMessage("s", "A"))
	require.True(t, a.HasInFlightToolCall("s", "T"))

	a.RunFinished("s")

	assert.False(t, a.HasInFlightMessage("s", "A"))
	assert.False(t, a.HasInFlightToolCall("s", "T"))
}

func TestRunErrorClearsAllInFlightState(t *testing.T) {
	a := aggregator.New()
	a.TextMessageStart("s", "A", "assistant")
	a.RunError("s", "boom")

	assert.False(t, a.HasInFlightMessage("s", "A"))
}

func TestToolCallEndEmitsCompletedRecord(t *testing.T) {
	a := aggregator.New()
	a.ToolCallStart("s", "T", "Read", "")
	a.ToolCallArgs("s", "T", `{"path":`)
	a.ToolCallArgs("s", "T", `"x"}`)
	a.ToolCallEnd("s", "T")

	select {
	case c := <-a.Events().ToolCallCompleted:
		assert.Equal(t, "Read", c.Content.ToolName)
		assert.Equal(t, `{"path":"x"}`, c.Content.ToolInput)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tool call completion")
	}
}

func TestTextMessageEndOnMissingIDIsNoop(t *testing.T) {
	a := aggregator.New()
	assert.NotPanics(t, func() {
		a.TextMessageEnd("s", "never-started")
	})
}
