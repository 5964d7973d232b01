// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AppForgeLocal/pkg/logging"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger := logging.New(logging.Config{
		LogDir:  t.TempDir(),
		Service: "studio-test",
		Quiet:   true,
	})
	t.Cleanup(func() { logger.Close() })
	return logger
}

func testOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *workspace.Workspace) {
	t.Helper()
	m, err := workspace.NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ws, err := m.Create("local-user", "proj")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	o, err := NewOrchestrator(cfg, m, testLogger(t), nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o, ws
}

func waitTerminal(t *testing.T, task *Task) Info {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if info := task.Info(); info.Status.Terminal() {
			return info
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never reached a terminal state (status %s)", task.ID(), task.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTaskSuccessWithAutoSnapshot(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(
			ScriptStep{Edit: &Edit{Path: "src/app.py", Content: []byte("print('a')")}},
			ScriptStep{Edit: &Edit{Path: "src/util.py", Content: []byte("print('b')")}},
		), nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, err := o.Start(context.Background(), Request{
		ProjectID:    ws.ID(),
		Owner:        "local-user",
		Prompt:       "build a greeter",
		AutoSnapshot: true,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	info := waitTerminal(t, task)
	if info.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", info.Status, info.Reason)
	}
	if info.EditCount != 2 {
		t.Errorf("EditCount = %d, want 2", info.EditCount)
	}
	if info.VersionID == "" {
		t.Fatal("no auto snapshot recorded")
	}

	// Both edits landed in the store.
	for _, p := range []string{"src/app.py", "src/util.py"} {
		if _, err := ws.Store().Read(p); err != nil {
			t.Errorf("missing %s after completion: %v", p, err)
		}
	}

	// The snapshot exists in the ledger and captures the final state.
	v, err := ws.Ledger().Get(info.VersionID)
	if err != nil {
		t.Fatalf("ledger missing auto snapshot: %v", err)
	}
	if len(v.Files) != 2 {
		t.Errorf("snapshot has %d files, want 2", len(v.Files))
	}
}

func TestTaskNoSnapshotWhenDisabled(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(
			ScriptStep{Edit: &Edit{Path: "a.txt", Content: []byte("x")}},
		), nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p"})
	info := waitTerminal(t, task)
	if info.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", info.Status)
	}
	if info.VersionID != "" {
		t.Errorf("unexpected snapshot %s with AutoSnapshot=false", info.VersionID)
	}
	if got := ws.Ledger().Count(); got != 0 {
		t.Errorf("ledger has %d versions, want 0", got)
	}
}

func TestFailureReasonPreservedVerbatim(t *testing.T) {
	const reason = "model backend unavailable"
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(
			ScriptStep{Edit: &Edit{Path: "a.txt", Content: []byte("x")}},
			ScriptStep{Err: &ProducerError{Reason: reason}},
		), nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p", AutoSnapshot: true})
	info := waitTerminal(t, task)

	if info.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", info.Status)
	}
	if info.Reason != reason {
		t.Errorf("Reason = %q, want %q verbatim", info.Reason, reason)
	}

	// The edit applied before the failure stays applied; no snapshot.
	if _, err := ws.Store().Read("a.txt"); err != nil {
		t.Errorf("pre-failure edit rolled back: %v", err)
	}
	if info.VersionID != "" {
		t.Error("failed task recorded a snapshot")
	}
}

func TestCancelAfterFirstEdit(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(
			ScriptStep{Edit: &Edit{Path: "first.txt", Content: []byte("1")}},
			ScriptStep{Edit: &Edit{Path: "second.txt", Content: []byte("2")}, Delay: 10 * time.Second},
		), nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p"})

	// Wait for the first edit to land, then cancel mid-second-step.
	deadline := time.After(5 * time.Second)
	for task.Info().EditCount == 0 {
		select {
		case <-deadline:
			t.Fatal("first edit never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := o.Cancel(context.Background(), task.ID(), ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	info := waitTerminal(t, task)
	if info.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", info.Status)
	}
	if _, err := ws.Store().Read("first.txt"); err != nil {
		t.Errorf("applied edit missing after cancel: %v", err)
	}
	if _, err := ws.Store().Read("second.txt"); !errors.Is(err, workspace.ErrNotFound) {
		t.Errorf("unapplied edit present after cancel: %v", err)
	}
}

// stubbornProducer ignores its context entirely: each Next sleeps a
// fixed interval on the wall clock and yields the next edit regardless
// of cancellation.
type stubbornProducer struct {
	edits []Edit
	idx   int
	pause time.Duration
}

func (p *stubbornProducer) Next(ctx context.Context) (*Edit, error) {
	time.Sleep(p.pause)
	if p.idx >= len(p.edits) {
		return nil, io.EOF
	}
	edit := p.edits[p.idx]
	p.idx++
	return &edit, nil
}

func TestCancelIgnoredByProducer(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return &stubbornProducer{
			edits: []Edit{
				{Path: "a.txt", Content: []byte("1")},
				{Path: "b.txt", Content: []byte("2")},
			},
			pause: 200 * time.Millisecond,
		}, nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{
		ProjectID:    ws.ID(),
		Prompt:       "p",
		AutoSnapshot: true,
	})

	deadline := time.After(5 * time.Second)
	for task.Info().EditCount == 0 {
		select {
		case <-deadline:
			t.Fatal("first edit never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := o.Cancel(context.Background(), task.ID(), ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The producer keeps yielding; the orchestrator must discard
	// everything past the cancellation point.
	info := waitTerminal(t, task)
	if info.Status != StatusCancelled {
		t.Fatalf("status = %s (%s), want cancelled", info.Status, info.Reason)
	}
	if info.EditCount != 1 {
		t.Errorf("EditCount = %d, want 1", info.EditCount)
	}
	if info.VersionID != "" {
		t.Error("cancelled task must not auto-snapshot")
	}
	if _, err := ws.Store().Read("b.txt"); !errors.Is(err, workspace.ErrNotFound) {
		t.Errorf("edit applied after cancellation: %v", err)
	}
	if ws.Ledger().Count() != 0 {
		t.Errorf("ledger has %d versions, want 0", ws.Ledger().Count())
	}
}

func TestCancelTerminalTask(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(), nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p"})
	waitTerminal(t, task)

	err := o.Cancel(context.Background(), task.ID(), "")
	if !errors.Is(err, workspace.ErrInvalidState) {
		t.Fatalf("Cancel on terminal task err = %v, want ErrInvalidState", err)
	}
}

func TestProducerTimeout(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(
			ScriptStep{Edit: &Edit{Path: "slow.txt", Content: []byte("x")}, Delay: 10 * time.Second},
		), nil
	}
	o, ws := testOrchestrator(t, Config{
		NewProducer:     factory,
		ProducerTimeout: 50 * time.Millisecond,
	})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p"})
	info := waitTerminal(t, task)

	if info.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", info.Status)
	}
	if info.Reason != "timeout" {
		t.Errorf("Reason = %q, want timeout", info.Reason)
	}
}

func TestPerProjectConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return &gateProducer{release: release}, nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory, MaxConcurrentPerProject: 1})

	t1, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "one"})
	t2, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "two"})

	// First task must be running, second held in queue.
	deadline := time.After(5 * time.Second)
	for t1.Status() != StatusRunning {
		select {
		case <-deadline:
			t.Fatal("first task never started")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	if got := t2.Status(); got != StatusQueued {
		t.Fatalf("second task status = %s, want queued while slot is held", got)
	}

	close(release)
	if info := waitTerminal(t, t1); info.Status != StatusCompleted {
		t.Fatalf("first task = %s", info.Status)
	}
	if info := waitTerminal(t, t2); info.Status != StatusCompleted {
		t.Fatalf("second task = %s", info.Status)
	}
}

// gateProducer blocks until released, then finishes with no edits.
type gateProducer struct {
	release <-chan struct{}
}

func (p *gateProducer) Next(ctx context.Context) (*Edit, error) {
	select {
	case <-p.release:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCancelQueuedTask(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return &gateProducer{release: release}, nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory, MaxConcurrentPerProject: 1})

	t1, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "one"})
	t2, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "two"})

	deadline := time.After(5 * time.Second)
	for t1.Status() != StatusRunning {
		select {
		case <-deadline:
			t.Fatal("first task never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := o.Cancel(context.Background(), t2.ID(), ""); err != nil {
		t.Fatalf("Cancel queued task: %v", err)
	}
	info := waitTerminal(t, t2)
	if info.Status != StatusCancelled {
		t.Fatalf("queued task status = %s, want cancelled", info.Status)
	}
	if info.EditCount != 0 {
		t.Errorf("queued task applied %d edits", info.EditCount)
	}
}

func TestRateLimit(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(), nil
	}
	o, ws := testOrchestrator(t, Config{
		NewProducer: factory,
		StartRate:   rate.Limit(0.001),
		StartBurst:  1,
	})

	if _, err := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "one"}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	_, err := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "two"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second Start err = %v, want ErrRateLimited", err)
	}
}

func TestStartUnknownProject(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(), nil
	}
	o, _ := testOrchestrator(t, Config{NewProducer: factory})

	_, err := o.Start(context.Background(), Request{ProjectID: "missing", Prompt: "p"})
	if !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLateSubscriberReplaysFullHistory(t *testing.T) {
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return NewScriptedProducer(
			ScriptStep{Edit: &Edit{Path: "a.txt", Content: []byte("1")}},
			ScriptStep{Edit: &Edit{Path: "b.txt", Content: []byte("2")}},
		), nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p", AutoSnapshot: true})
	waitTerminal(t, task)

	// Subscribe after the fact: the whole log replays, then closes.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []Event
	for ev := range task.Subscribe(ctx) {
		got = append(got, ev)
	}

	wantTypes := []EventType{EventQueued, EventStarted, EventEdit, EventEdit, EventSnapshot, EventCompleted}
	if len(got) != len(wantTypes) {
		t.Fatalf("replayed %d events, want %d: %+v", len(got), len(wantTypes), got)
	}
	for i, ev := range got {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.Type, wantTypes[i])
		}
		if ev.Seq != i+1 {
			t.Errorf("event %d seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestSubscribeCancelledContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	factory := func(ctx context.Context, req Request) (Producer, error) {
		return &gateProducer{release: release}, nil
	}
	o, ws := testOrchestrator(t, Config{NewProducer: factory})

	task, _ := o.Start(context.Background(), Request{ProjectID: ws.ID(), Prompt: "p"})

	ctx, cancel := context.WithCancel(context.Background())
	ch := task.Subscribe(ctx)
	<-ch // queued event
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // channel closed, goroutine exited
			}
		case <-deadline:
			t.Fatal("subscription channel never closed after ctx cancel")
		}
	}
}
