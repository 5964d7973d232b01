// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "studio",
		Quiet:   true,
	})
	logger.Info("workspace created", "project_id", "proj-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	filename := "studio_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "workspace created") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), `"service":"studio"`) {
		t.Errorf("log file missing service attribute, got: %s", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "studio",
		Quiet:   true,
	})
	logger.Info("below threshold")
	logger.Warn("at threshold")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	filename := "studio_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "below threshold") {
		t.Error("Info message should have been filtered at Warn level")
	}
	if !strings.Contains(string(data), "at threshold") {
		t.Error("Warn message missing from log file")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{LogDir: dir, Service: "studio", Quiet: true})
	child := logger.With("task_id", "task-9")
	child.Info("task started")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	filename := "studio_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"task_id":"task-9"`) {
		t.Errorf("child logger attribute missing, got: %s", data)
	}
}
