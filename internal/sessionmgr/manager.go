// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionmgr composes the subprocess transport, SDK client,
// options factory, aggregator, startup tracker, and the volatile and
// durable stores into the session lifecycle operations: start, send
// (each send resumes the prior conversation), interrupt, and stop.
package sessionmgr

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/homespun/internal/aggregator"
	"github.com/wingedpig/homespun/internal/cliproc"
	"github.com/wingedpig/homespun/internal/engineerr"
	"github.com/wingedpig/homespun/internal/protocol"
	"github.com/wingedpig/homespun/internal/sdkclient"
	"github.com/wingedpig/homespun/internal/sessionmeta"
	"github.com/wingedpig/homespun/internal/sessionopts"
	"github.com/wingedpig/homespun/internal/sessionstore"
	"github.com/wingedpig/homespun/internal/startup"
)

// defaultRequestTimeout is the concurrency model's 30-minute default
// request timeout. It is not applied by this package: consume waits on a
// session's transport with no deadline.
const defaultRequestTimeout = 30 * time.Minute

// Subscriber receives every protocol message forwarded for a session, in
// transport receive order.
type Subscriber chan *protocol.Message

const subscriberBufferSize = 256

// Manager composes C2-C8 into the Start/Send/Interrupt/Stop surface.
// It is the sole owner of every component instance it creates: no
// component holds a back-pointer into another, breaking the cyclic
// ownership the design notes warn about.
type Manager struct {
	cliPath string
	logger  *log.Logger

	tracker *startup.Tracker
	live    *sessionstore.Store
	meta    *sessionmeta.Store
	agg     *aggregator.Aggregator

	mu      sync.Mutex
	running map[string]*runningSession // sessionId -> runtime handle
}

type runningSession struct {
	entityID     string
	mode         sessionopts.Mode
	client       *sdkclient.Client
	cancel       context.CancelFunc
	subscribers  map[Subscriber]struct{}
	mu           sync.Mutex
	requestGroup *errgroup.Group
}

// New constructs a Manager. cliPath, when non-empty, pins the assistant
// CLI executable path; when empty, the path is discovered here once via
// cliproc.Discover and cached (the construction-order design note). If
// discovery fails the path stays empty and Start fails. metaPath is the
// durable metadata file.
func New(cliPath, metaPath string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if cliPath == "" {
		if p, err := cliproc.Discover(""); err == nil {
			cliPath = p
		}
	}
	return &Manager{
		cliPath: cliPath,
		logger:  logger,
		tracker: startup.New(),
		live:    sessionstore.New(),
		meta:    sessionmeta.Open(metaPath, logger),
		agg:     aggregator.New(),
		running: make(map[string]*runningSession),
	}
}

// Aggregator exposes the shared event aggregator for UI subscribers.
func (m *Manager) Aggregator() *aggregator.Aggregator { return m.agg }

// LiveStore exposes the in-memory session catalog for listing/filtering.
func (m *Manager) LiveStore() *sessionstore.Store { return m.live }

// StartResult is returned by Start.
type StartResult struct {
	SessionID string
}

// Start creates a new session: single-flight guards the entity id,
// mints a session id, persists records to the live and durable stores,
// builds options via sessionopts, connects the transport, sends the
// initial prompt, and launches a dedicated consumer goroutine.
func (m *Manager) Start(ctx context.Context, entityID, projectID, cwd string, mode sessionopts.Mode, model, prompt, systemPrompt string) (StartResult, error) {
	if !m.tracker.TryMarkAsStarting(entityID) {
		return StartResult{}, engineerr.New(engineerr.KindStartup, "", nil, "startup already in flight for entity %s", entityID)
	}

	sessionID := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	m.live.Add(sessionstore.Record{
		ID: sessionID, EntityID: entityID, ProjectID: projectID,
		Mode: string(mode), WorkingDirectory: cwd, Model: model,
		Status: sessionstore.Starting, CreatedAt: time.Now().UnixNano(),
	})
	if err := m.meta.Save(sessionmeta.Metadata{
		SessionID: sessionID, EntityID: entityID, ProjectID: projectID,
		WorkingDirectory: cwd, Mode: string(mode), Model: model,
		SystemPrompt: systemPrompt, CreatedAt: createdAt,
	}); err != nil {
		m.logger.Printf("sessionmgr: failed to persist metadata for %s: %v", sessionID, err)
	}

	rs, err := m.launch(entityID, sessionID, mode, cwd, model, systemPrompt, "", prompt, nil)
	if err != nil {
		m.tracker.MarkAsFailed(entityID, err)
		m.tracker.Clear(entityID) // reopen the gate so the caller may retry
		m.live.Remove(sessionID)
		_ = m.meta.Remove(sessionID)
		return StartResult{}, err
	}

	m.tracker.MarkAsStarted(entityID)
	rec, _ := m.live.GetByID(sessionID)
	rec.Status = sessionstore.Running
	m.live.Update(rec)

	m.mu.Lock()
	m.running[sessionID] = rs
	m.mu.Unlock()

	return StartResult{SessionID: sessionID}, nil
}

// launch connects a fresh transport for one assistant CLI turn, carrying
// resume (a prior conversation id, or "" for a brand-new conversation),
// writes message, and starts its consumer goroutine. subscribers, when
// non-nil, is carried over from a prior runningSession so followers stay
// attached across turns.
func (m *Manager) launch(entityID, sessionID string, mode sessionopts.Mode, cwd, model, systemPrompt, resume, message string, subscribers map[Subscriber]struct{}) (*runningSession, error) {
	opts := sessionopts.Create(mode, cwd, model, systemPrompt, nil).WithResume(resume)

	client := sdkclient.New()
	parentCtx, cancel := context.WithCancel(context.Background())
	group, sessCtx := errgroup.WithContext(parentCtx)

	if err := client.ConnectAsync(sessCtx, m.transportOptions(opts)); err != nil {
		cancel()
		return nil, engineerr.New(engineerr.KindStartup, sessionID, err, "failed to connect assistant CLI")
	}

	if err := client.WriteUser(sessionID, message); err != nil {
		_ = client.Dispose()
		cancel()
		return nil, engineerr.New(engineerr.KindStartup, sessionID, err, "failed to send message")
	}

	if subscribers == nil {
		subscribers = make(map[Subscriber]struct{})
	}
	rs := &runningSession{
		entityID:     entityID,
		mode:         mode,
		client:       client,
		cancel:       cancel,
		subscribers:  subscribers,
		requestGroup: group,
	}

	group.Go(func() error {
		m.consume(sessCtx, sessionID, client)
		return nil
	})

	return rs, nil
}

func (m *Manager) transportOptions(opts sessionopts.Options) cliproc.Options {
	args := []string{
		"--output-format", "stream-json",
		"--input-format", "stream-json",
		"--permission-prompt-tool", "stdio",
		"--include-partial-messages",
	}
	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(append(args, "--allowedTools"), opts.AllowedTools...)
	}
	if len(opts.DisallowedTools) > 0 {
		args = append(append(args, "--disallowedTools"), opts.DisallowedTools...)
	}
	return cliproc.Options{
		ExecPath:         m.cliPath,
		Args:             args,
		Cwd:              opts.Cwd,
		MaxBufferSize:    opts.MaxBufferSize,
		OverflowBehavior: opts.BufferOverflowBehavior,
		OnBufferOverflow: opts.OnBufferOverflow,
		Logger:           m.logger,
	}
}

// Subscribe registers ch to receive every message forwarded for
// sessionID. Returns false if the session is unknown.
func (m *Manager) Subscribe(sessionID string, ch Subscriber) bool {
	m.mu.Lock()
	rs, ok := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	rs.mu.Lock()
	rs.subscribers[ch] = struct{}{}
	rs.mu.Unlock()
	return true
}

// Unsubscribe removes ch from sessionID's subscriber set.
func (m *Manager) Unsubscribe(sessionID string, ch Subscriber) {
	m.mu.Lock()
	rs, ok := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	rs.mu.Lock()
	delete(rs.subscribers, ch)
	rs.mu.Unlock()
}

func (rs *runningSession) fanOut(msg *protocol.Message) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for ch := range rs.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// consume is the per-session message consumer: it forwards protocol
// messages to the aggregator and to external subscribers, in the exact
// order received, and handles result-triggered conversation id capture
// and resume continuity.
func (m *Manager) consume(ctx context.Context, sessionID string, client *sdkclient.Client) {
	incoming := client.Incoming()
	gotResult := false

	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				if !gotResult {
					m.onTransportClosed(sessionID)
				}
				return
			}
			m.dispatch(sessionID, msg)
			if msg.Type == protocol.MessageResult {
				m.onResult(sessionID, msg)
				gotResult = true
			}
		case <-ctx.Done():
			_ = client.Interrupt()
			_ = client.Dispose()
			return
		}
	}
}

func (m *Manager) dispatch(sessionID string, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageAssistant, protocol.MessageUser:
		if msg.Inner != nil {
			for _, block := range msg.Inner.Content {
				switch block.Type {
				case protocol.ContentText:
					// A non-streaming CLI may deliver whole text blocks
					// without Start/Content/End framing; treat the
					// whole block as one complete message.
					mid := msg.UUID
					if mid == "" {
						mid = uuid.NewString()
					}
					m.agg.TextMessageStart(sessionID, mid, msg.Inner.Role)
					m.agg.TextMessageContent(sessionID, mid, block.Text)
					m.agg.TextMessageEnd(sessionID, mid)
				case protocol.ContentToolUse:
					m.agg.ToolCallStart(sessionID, block.ID, block.Name, "")
					m.agg.ToolCallArgs(sessionID, block.ID, string(block.Input))
					m.agg.ToolCallEnd(sessionID, block.ID)
				case protocol.ContentToolResult:
					m.agg.ToolCallResult(sessionID, block.ToolUseID, block.Content)
				}
			}
		}
	}

	m.mu.Lock()
	rs := m.running[sessionID]
	m.mu.Unlock()
	if rs != nil {
		rs.fanOut(msg)
	}
}

func (m *Manager) onResult(sessionID string, msg *protocol.Message) {
	rec, ok := m.live.GetByID(sessionID)
	if ok {
		rec.ConversationID = msg.SessionID
		rec.Status = sessionstore.Running
		m.live.Update(rec)
	}
	// The conversation id lives only in the live store (sessionstore.Record),
	// not in sessionmeta.Metadata, so there is nothing new to persist to C8
	// here; C8 was already written once at Start.
	if msg.IsError {
		m.agg.RunError(sessionID, firstOrEmpty(msg.Errors))
	} else {
		m.agg.RunFinished(sessionID)
	}
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func (m *Manager) onTransportClosed(sessionID string) {
	rec, ok := m.live.GetByID(sessionID)
	if ok && rec.Status != sessionstore.Stopped {
		rec.Status = sessionstore.Errored
		m.live.Update(rec)
	}
	m.agg.RunError(sessionID, "assistant CLI connection lost")
}

// Send starts a fresh assistant CLI turn for sessionID, resuming the
// prior conversation id so context carries across turns (testable
// property 13). Unknown sessions yield SESSION_NOT_FOUND rather than
// panicking.
func (m *Manager) Send(ctx context.Context, sessionID, message, modelOverride string) error {
	m.mu.Lock()
	prev, ok := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return engineerr.New(engineerr.KindSessionNotFound, sessionID, nil, "no such session")
	}

	rec, ok := m.live.GetByID(sessionID)
	if !ok {
		return engineerr.New(engineerr.KindSessionNotFound, sessionID, nil, "no such session")
	}
	if rec.Status == sessionstore.Stopping || rec.Status == sessionstore.Errored {
		return engineerr.SessionState(sessionID, string(rec.Status), string(sessionstore.Running))
	}

	model := rec.Model
	if modelOverride != "" {
		model = modelOverride
	}
	md, _ := m.meta.GetBySessionID(sessionID)

	prev.cancel()
	_ = prev.client.Dispose()
	_ = prev.requestGroup.Wait()

	prev.mu.Lock()
	subscribers := prev.subscribers
	prev.mu.Unlock()

	next, err := m.launch(rec.EntityID, sessionID, prev.mode, rec.WorkingDirectory, model, md.SystemPrompt, rec.ConversationID, message, subscribers)
	if err != nil {
		rec.Status = sessionstore.Errored
		m.live.Update(rec)
		return err
	}

	m.mu.Lock()
	m.running[sessionID] = next
	m.mu.Unlock()

	rec.Model = model
	rec.Status = sessionstore.Running
	m.live.Update(rec)
	return nil
}

// Interrupt forwards to the SDK client. Idempotent; unknown sessions are
// no-ops.
func (m *Manager) Interrupt(sessionID string) error {
	m.mu.Lock()
	rs, ok := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return rs.client.Interrupt()
}

// Stop tears down the session and removes it from the live store.
// Idempotent; unknown sessions are no-ops.
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	rs, ok := m.running[sessionID]
	if ok {
		delete(m.running, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	rec, ok := m.live.GetByID(sessionID)
	if ok {
		rec.Status = sessionstore.Stopping
		m.live.Update(rec)
	}
	rs.cancel()
	err := rs.client.Dispose()
	_ = rs.requestGroup.Wait()
	m.live.Remove(sessionID)
	m.tracker.Clear(rs.entityID)
	return err
}

// SendControlResponse answers a pending permission control_request on
// sessionID's transport.
func (m *Manager) SendControlResponse(sessionID, requestID string, behavior sdkclient.ControlBehavior, updatedInput []byte, denyMessage string) error {
	m.mu.Lock()
	rs, ok := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return engineerr.New(engineerr.KindSessionNotFound, sessionID, nil, "no such session")
	}
	return rs.client.SendControlResponse(requestID, behavior, updatedInput, denyMessage)
}
