// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionmeta is the durable, file-backed mapping from session
// id to its persisted metadata descriptor: eagerly loaded at
// construction, rewritten atomically on every mutation, and tolerant of
// a corrupted file on disk.
package sessionmeta

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Metadata is the durable subset of a session record (§3 "Session
// metadata (durable, C8)") — no status, no conversation id.
type Metadata struct {
	SessionID        string `json:"session_id"`
	EntityID         string `json:"entity_id"`
	ProjectID        string `json:"project_id"`
	WorkingDirectory string `json:"working_directory"`
	Mode             string `json:"mode"`
	Model            string `json:"model"`
	SystemPrompt     string `json:"system_prompt,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// Store is the durable metadata store. Every public operation is
// serialized under mu; every mutation is followed by a whole-file
// atomic rewrite.
type Store struct {
	mu       sync.Mutex
	path     string
	logger   *log.Logger
	byID     map[string]Metadata
}

// Open loads the metadata file at path, if present. A missing or
// malformed file degrades to an empty store rather than failing
// construction — the caller is only warned.
func Open(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{path: path, logger: logger, byID: make(map[string]Metadata)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("sessionmeta: failed to read %s: %v, starting empty", path, err)
		}
		return s
	}
	if len(data) == 0 {
		return s
	}

	var records []Metadata
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Printf("sessionmeta: corrupt metadata file %s: %v, starting empty", path, err)
		return s
	}
	for _, r := range records {
		s.byID[r.SessionID] = r
	}
	return s
}

// Save inserts or replaces the record at m.SessionID and rewrites the
// file atomically.
func (s *Store) Save(m Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.SessionID] = m
	return s.rewriteLocked()
}

// Remove deletes the record at sessionID, if present, and rewrites the
// file atomically.
func (s *Store) Remove(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sessionID]; !ok {
		return nil
	}
	delete(s.byID, sessionID)
	return s.rewriteLocked()
}

// GetBySessionID returns the record at sessionID, if any.
func (s *Store) GetBySessionID(sessionID string) (Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[sessionID]
	return m, ok
}

// GetByEntityID returns every record whose EntityID matches.
func (s *Store) GetByEntityID(entityID string) []Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Metadata
	for _, m := range s.byID {
		if m.EntityID == entityID {
			out = append(out, m)
		}
	}
	return out
}

// GetAll returns a snapshot copy of every record.
func (s *Store) GetAll() []Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Metadata, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	return out
}

func (s *Store) rewriteLocked() error {
	records := make([]Metadata, 0, len(s.byID))
	for _, m := range s.byID {
		records = append(records, m)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
