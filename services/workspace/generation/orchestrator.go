// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generation runs prompt-driven edit streams against project
// workspaces. An Orchestrator owns the task table; each task consumes a
// Producer step by step, applying edits to the file store as they
// arrive so preview clients see progress live.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AppForgeLocal/pkg/extensions"
	"github.com/AleutianAI/AppForgeLocal/pkg/logging"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// ErrRateLimited indicates task starts are arriving faster than the
// configured rate. The HTTP layer maps it to 429.
var ErrRateLimited = errors.New("generation rate limit exceeded")

// Config tunes the orchestrator.
type Config struct {
	// MaxConcurrentPerProject bounds simultaneously running tasks per
	// project. Extra starts queue until a slot frees. Default 1.
	MaxConcurrentPerProject int

	// ProducerTimeout bounds each Producer.Next call. A producer that
	// stays silent longer fails the task with reason "timeout".
	// Default 2 minutes.
	ProducerTimeout time.Duration

	// StartRate and StartBurst rate-limit task starts across all
	// projects. Zero StartRate disables limiting.
	StartRate  rate.Limit
	StartBurst int

	// NewProducer builds the edit source for each task. Required.
	NewProducer ProducerFactory

	// OnTerminal, when set, is invoked once per task as it reaches a
	// terminal state. Used for metrics; must not block.
	OnTerminal func(Info)

	// OnEdit, when set, is invoked for each applied edit.
	OnEdit func()
}

func (c *Config) applyDefaults() error {
	if c.NewProducer == nil {
		return fmt.Errorf("generation: Config.NewProducer is required")
	}
	if c.MaxConcurrentPerProject <= 0 {
		c.MaxConcurrentPerProject = 1
	}
	if c.ProducerTimeout <= 0 {
		c.ProducerTimeout = 2 * time.Minute
	}
	if c.StartBurst <= 0 {
		c.StartBurst = 1
	}
	return nil
}

// Orchestrator starts, tracks, and cancels generation tasks.
type Orchestrator struct {
	cfg     Config
	manager *workspace.Manager
	logger  *logging.Logger
	audit   extensions.AuditLogger
	limiter *rate.Limiter

	mu    sync.Mutex
	tasks map[string]*Task
	slots map[string]*semaphore.Weighted
}

// NewOrchestrator wires an orchestrator against the workspace manager.
func NewOrchestrator(cfg Config, manager *workspace.Manager, logger *logging.Logger, audit extensions.AuditLogger) (*Orchestrator, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if audit == nil {
		audit = extensions.NopAuditLogger{}
	}
	o := &Orchestrator{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
		audit:   audit,
		tasks:   make(map[string]*Task),
		slots:   make(map[string]*semaphore.Weighted),
	}
	if cfg.StartRate > 0 {
		o.limiter = rate.NewLimiter(cfg.StartRate, cfg.StartBurst)
	}
	return o, nil
}

// Start launches a generation task and returns immediately. The task
// begins Queued; it runs once a concurrency slot for its project frees
// up. The task outlives the caller's request context.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Task, error) {
	if o.limiter != nil && !o.limiter.Allow() {
		return nil, ErrRateLimited
	}

	ws, err := o.lookup(req.ProjectID, req.Owner)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	task := newTask(uuid.NewString(), req, cancel)

	o.mu.Lock()
	o.tasks[task.ID()] = task
	o.mu.Unlock()

	o.logger.Info("generation task queued",
		"task_id", task.ID(), "project_id", req.ProjectID)
	if err := o.audit.Log(ctx, extensions.AuditEvent{
		EventType:    "task.start",
		UserID:       req.Owner,
		ResourceType: "task",
		ResourceID:   task.ID(),
		Outcome:      "success",
		Metadata:     map[string]any{"project_id": req.ProjectID},
	}); err != nil {
		o.logger.Warn("audit log failed", "error", err)
	}

	go o.run(runCtx, task, ws, req)
	return task, nil
}

func (o *Orchestrator) lookup(projectID, owner string) (*workspace.Workspace, error) {
	if owner != "" {
		return o.manager.GetOwned(projectID, owner)
	}
	return o.manager.Get(projectID)
}

// run drives one task to a terminal state. Edits already applied are
// never rolled back on cancel or failure; the version ledger is the
// undo mechanism.
func (o *Orchestrator) run(ctx context.Context, task *Task, ws *workspace.Workspace, req Request) {
	defer task.cancel()

	sem := o.slot(task.ProjectID())
	if err := sem.Acquire(ctx, 1); err != nil {
		o.finish(task, StatusCancelled, "cancelled before start")
		return
	}
	defer sem.Release(1)

	task.markRunning()
	ws.BeginTask()
	defer ws.EndTask()

	producer, err := o.cfg.NewProducer(ctx, req)
	if err != nil {
		o.fail(task, err)
		return
	}

	for {
		stepCtx, cancelStep := context.WithTimeout(ctx, o.cfg.ProducerTimeout)
		edit, err := producer.Next(stepCtx)
		cancelStep()

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				o.cancelled(task)
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				o.finish(task, StatusFailed, "timeout")
				o.logger.Warn("generation producer timed out",
					"task_id", task.ID(), "timeout", o.cfg.ProducerTimeout,
					"error", workspace.ErrTimeout)
				return
			}
			o.fail(task, err)
			return
		}

		// The cancellation point is enforced here, not by producer
		// courtesy: an edit yielded by a producer that ignores its
		// context is discarded once the task is cancelled.
		if ctx.Err() != nil {
			o.cancelled(task)
			return
		}

		if err := o.apply(ws, edit); err != nil {
			o.fail(task, err)
			return
		}
		task.recordEdit(edit)
		if o.cfg.OnEdit != nil {
			o.cfg.OnEdit()
		}
	}

	// A cancel that lands between the last edit and EOF must not turn
	// into a Completed task with an auto-snapshot.
	if ctx.Err() != nil {
		o.cancelled(task)
		return
	}

	if req.AutoSnapshot {
		v, err := ws.Ledger().Snapshot(snapshotLabel(req.Prompt))
		if err != nil {
			o.fail(task, fmt.Errorf("auto snapshot: %w", err))
			return
		}
		task.recordSnapshot(v.ID)
	}
	o.finish(task, StatusCompleted, "")
	o.logger.Info("generation task completed",
		"task_id", task.ID(), "edits_applied", task.Info().EditCount)
}

func (o *Orchestrator) apply(ws *workspace.Workspace, edit *Edit) error {
	if edit.Delete {
		return ws.Store().Delete(edit.Path)
	}
	_, err := ws.Store().Write(edit.Path, edit.Content)
	return err
}

// cancelled marks the task Cancelled after a cancel took effect.
func (o *Orchestrator) cancelled(task *Task) {
	o.finish(task, StatusCancelled, "cancelled")
	o.logger.Info("generation task cancelled",
		"task_id", task.ID(), "edits_applied", task.Info().EditCount)
}

// fail marks the task Failed, preserving a *ProducerError reason
// verbatim.
func (o *Orchestrator) fail(task *Task, err error) {
	reason := err.Error()
	var pe *ProducerError
	if errors.As(err, &pe) {
		reason = pe.Reason
	}
	o.finish(task, StatusFailed, reason)
	o.logger.Error("generation task failed",
		"task_id", task.ID(), "reason", reason)
}

// finish moves the task to a terminal state and fires the OnTerminal
// hook exactly once.
func (o *Orchestrator) finish(task *Task, status Status, reason string) {
	if !task.finish(status, reason) {
		return
	}
	if o.cfg.OnTerminal != nil {
		o.cfg.OnTerminal(task.Info())
	}
}

// slot returns the project's concurrency semaphore, creating it on
// first use.
func (o *Orchestrator) slot(projectID string) *semaphore.Weighted {
	o.mu.Lock()
	defer o.mu.Unlock()
	sem, ok := o.slots[projectID]
	if !ok {
		sem = semaphore.NewWeighted(int64(o.cfg.MaxConcurrentPerProject))
		o.slots[projectID] = sem
	}
	return sem
}

// Get returns a task, scoped to its owner when owner is non-empty.
func (o *Orchestrator) Get(taskID, owner string) (*Task, error) {
	o.mu.Lock()
	task, ok := o.tasks[taskID]
	o.mu.Unlock()
	if !ok || (owner != "" && task.Owner() != owner) {
		return nil, &workspace.NotFoundError{Kind: "task", Key: taskID}
	}
	return task, nil
}

// Cancel requests cooperative cancellation of a queued or running task.
// Terminal tasks return ErrInvalidState. Edits already applied remain.
func (o *Orchestrator) Cancel(ctx context.Context, taskID, owner string) error {
	task, err := o.Get(taskID, owner)
	if err != nil {
		return err
	}
	if task.Status().Terminal() {
		return fmt.Errorf("task %s already %s: %w", taskID, task.Status(), workspace.ErrInvalidState)
	}
	task.cancel()

	if err := o.audit.Log(ctx, extensions.AuditEvent{
		EventType:    "task.cancel",
		UserID:       owner,
		ResourceType: "task",
		ResourceID:   taskID,
		Outcome:      "success",
	}); err != nil {
		o.logger.Warn("audit log failed", "error", err)
	}
	return nil
}

// List returns the tasks for one project, newest first.
func (o *Orchestrator) List(projectID, owner string) []Info {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Info, 0)
	for _, task := range o.tasks {
		if task.ProjectID() != projectID {
			continue
		}
		if owner != "" && task.Owner() != owner {
			continue
		}
		out = append(out, task.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CancelProject cancels every live task of a project. Called when the
// project is deleted.
func (o *Orchestrator) CancelProject(projectID string) {
	o.mu.Lock()
	targets := make([]*Task, 0)
	for _, task := range o.tasks {
		if task.ProjectID() == projectID {
			targets = append(targets, task)
		}
	}
	o.mu.Unlock()

	for _, task := range targets {
		if !task.Status().Terminal() {
			task.cancel()
		}
	}
}

func snapshotLabel(prompt string) string {
	const maxLabel = 60
	label := prompt
	if len(label) > maxLabel {
		label = label[:maxLabel] + "…"
	}
	return "generated: " + label
}
