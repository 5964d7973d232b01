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
	"sync"
	"time"
)

// Status is a generation task's lifecycle state.
type Status string

// Task states. Queued and Running are transient; the other three are
// terminal and never change again.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// EventType labels one progress event.
type EventType string

// Progress event types, in the order they can occur.
const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventEdit      EventType = "edit"
	EventSnapshot  EventType = "snapshot"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event is one entry in a task's progress stream.
type Event struct {
	Seq       int       `json:"seq"`
	Type      EventType `json:"type"`
	Path      string    `json:"path,omitempty"`
	Delete    bool      `json:"delete,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	VersionID string    `json:"version_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Info is an immutable snapshot of a task's state for API responses.
type Info struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Prompt     string     `json:"prompt"`
	SessionID  string     `json:"session_id,omitempty"`
	Status     Status     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	VersionID  string     `json:"version_id,omitempty"`
	EditCount  int        `json:"edit_count"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Task is one generation run.
//
// # Description
//
//	Progress is an append-only event log guarded by a condition
//	variable. Subscribers replay the log from the start and then follow
//	it live, so a client that connects after the task finished still
//	sees the complete history. The log is the single source of truth
//	for ordering: an "edit" event is appended only after the edit has
//	been applied to the file store.
type Task struct {
	id        string
	projectID string
	owner     string
	prompt    string
	sessionID string
	createdAt time.Time

	cancel context.CancelFunc

	mu         sync.Mutex
	cond       *sync.Cond
	status     Status
	reason     string
	versionID  string
	editCount  int
	startedAt  *time.Time
	finishedAt *time.Time
	events     []Event
}

func newTask(id string, req Request, cancel context.CancelFunc) *Task {
	t := &Task{
		id:        id,
		projectID: req.ProjectID,
		owner:     req.Owner,
		prompt:    req.Prompt,
		sessionID: req.SessionID,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
		status:    StatusQueued,
	}
	t.cond = sync.NewCond(&t.mu)
	t.appendLocked(Event{Type: EventQueued})
	return t
}

// ID returns the task id.
func (t *Task) ID() string { return t.id }

// ProjectID returns the project this task mutates.
func (t *Task) ProjectID() string { return t.projectID }

// Owner returns the user who started the task.
func (t *Task) Owner() string { return t.owner }

// Info snapshots the task state.
func (t *Task) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		ID:         t.id,
		ProjectID:  t.projectID,
		Prompt:     t.prompt,
		SessionID:  t.sessionID,
		Status:     t.status,
		Reason:     t.reason,
		VersionID:  t.versionID,
		EditCount:  t.editCount,
		CreatedAt:  t.createdAt,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
	}
}

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// appendLocked stamps and appends one event. Caller holds t.mu.
func (t *Task) appendLocked(ev Event) {
	ev.Seq = len(t.events) + 1
	ev.Timestamp = time.Now().UTC()
	t.events = append(t.events, ev)
	t.cond.Broadcast()
}

func (t *Task) markRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.status = StatusRunning
	t.startedAt = &now
	t.appendLocked(Event{Type: EventStarted})
}

func (t *Task) recordEdit(edit *Edit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.editCount++
	t.appendLocked(Event{Type: EventEdit, Path: edit.Path, Delete: edit.Delete})
}

func (t *Task) recordSnapshot(versionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.versionID = versionID
	t.appendLocked(Event{Type: EventSnapshot, VersionID: versionID})
}

// finish moves the task to a terminal state exactly once, reporting
// whether this call performed the transition. Later calls are ignored,
// which makes the cancel/complete race harmless.
func (t *Task) finish(status Status, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return false
	}
	now := time.Now().UTC()
	t.status = status
	t.reason = reason
	t.finishedAt = &now

	var evType EventType
	switch status {
	case StatusCompleted:
		evType = EventCompleted
	case StatusCancelled:
		evType = EventCancelled
	default:
		evType = EventFailed
	}
	t.appendLocked(Event{Type: evType, Reason: reason})
	return true
}

// Subscribe streams the task's progress events. The full history is
// replayed first, then live events follow. The channel closes after the
// terminal event has been delivered, or when ctx is done.
func (t *Task) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)

	// Waiters block on the cond; a context cancellation has to wake
	// them so the goroutine can exit.
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})

	go func() {
		defer close(out)
		defer stop()
		next := 0
		for {
			t.mu.Lock()
			for next == len(t.events) && !t.status.Terminal() && ctx.Err() == nil {
				t.cond.Wait()
			}
			batch := make([]Event, len(t.events)-next)
			copy(batch, t.events[next:])
			next += len(batch)
			done := t.status.Terminal() && next == len(t.events)
			t.mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			if done || ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}
