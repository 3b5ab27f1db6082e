// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// homespunctl is a local inspection tool for the session orchestration
// engine's on-disk state: durable session metadata and discovered
// transcripts. It talks to no network API — the engine has none in
// scope — and reads the same files the engine itself reads.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/wingedpig/homespun/internal/engineconfig"
	"github.com/wingedpig/homespun/internal/sessionmeta"
	"github.com/wingedpig/homespun/internal/transcripts"
)

var jsonOutput = false

func main() {
	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "list":
		err = cmdList(cfg)
	case "meta":
		err = cmdMeta(cfg, args)
	case "transcripts":
		err = cmdTranscripts(cfg, args)
	case "version", "-v", "--version":
		fmt.Println("homespunctl 0.1")
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`homespunctl - Inspect the session orchestration engine's on-disk state

Usage:
  homespunctl [-json] <command> [arguments]

Global Flags:
  -json                  Output in JSON format

Commands:
  list                   List durable session records (alias for meta)
  meta [sessionId]       Show durable session metadata, or one record by id
  transcripts <cwd>      Discover transcripts recorded for a working directory

  version                Show version
  help                   Show this help`)
}

func loadConfig() (*engineconfig.Config, error) {
	loader := engineconfig.NewLoader()
	path, err := loader.FindConfig()
	if err != nil {
		return &engineconfig.Config{}, nil
	}
	return loader.LoadWithDefaults(path)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func openMetaStore(cfg *engineconfig.Config) *sessionmeta.Store {
	return sessionmeta.Open(cfg.MetadataPath, log.New(os.Stderr, "homespunctl: ", 0))
}

func cmdList(cfg *engineconfig.Config) error {
	return cmdMeta(cfg, nil)
}

func cmdMeta(cfg *engineconfig.Config, args []string) error {
	store := openMetaStore(cfg)

	if len(args) > 0 {
		rec, ok := store.GetBySessionID(args[0])
		if !ok {
			return fmt.Errorf("no metadata for session %s", args[0])
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		printMetaDetail(rec)
		return nil
	}

	records := store.GetAll()
	if jsonOutput {
		printJSON(records)
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No durable session records found")
		return nil
	}

	fmt.Printf("%-36s %-12s %-8s %-30s %s\n", "SESSION ID", "MODE", "MODEL", "WORKING DIRECTORY", "CREATED")
	fmt.Println(strings.Repeat("-", 110))
	for _, r := range records {
		fmt.Printf("%-36s %-12s %-8s %-30s %s\n", r.SessionID, r.Mode, r.Model, r.WorkingDirectory, r.CreatedAt)
	}
	return nil
}

func printMetaDetail(rec sessionmeta.Metadata) {
	fmt.Printf("Session: %s\n", rec.SessionID)
	fmt.Printf("  Entity: %s\n", rec.EntityID)
	fmt.Printf("  Project: %s\n", rec.ProjectID)
	fmt.Printf("  Mode: %s\n", rec.Mode)
	fmt.Printf("  Model: %s\n", rec.Model)
	fmt.Printf("  Working directory: %s\n", rec.WorkingDirectory)
	fmt.Printf("  Created: %s\n", rec.CreatedAt)
	if rec.SystemPrompt != "" {
		fmt.Printf("  System prompt: %s\n", rec.SystemPrompt)
	}
}

func cmdTranscripts(cfg *engineconfig.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: homespunctl transcripts <cwd>")
	}
	cwd := args[0]

	root := cfg.TranscriptRoot
	if root == "" {
		root = transcripts.DefaultRoot()
	}
	disc := transcripts.New(root)

	sessions, err := disc.DiscoverSessions(cwd)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(sessions)
		return nil
	}

	if len(sessions) == 0 {
		fmt.Println("No transcripts found")
		return nil
	}

	fmt.Printf("%-36s %-10s %s\n", "SESSION ID", "SIZE", "MODIFIED")
	fmt.Println(strings.Repeat("-", 70))
	for _, s := range sessions {
		fmt.Printf("%-36s %-10d %s\n", s.SessionID, s.FileSize, s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
