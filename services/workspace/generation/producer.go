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
	"fmt"
	"io"
	"time"
)

// Edit is one file change produced by a generation backend. Delete=true
// means remove the path; otherwise Content replaces it.
type Edit struct {
	Path    string `json:"path"`
	Content []byte `json:"content,omitempty"`
	Delete  bool   `json:"delete,omitempty"`
}

// Producer yields the edits for one generation task, one at a time.
//
// Next blocks until the next edit is ready, then returns it. A return of
// io.EOF means the producer finished successfully and all edits have
// been yielded. Any other error aborts the task; a *ProducerError
// carries a reason that is surfaced to the client verbatim.
//
// Next must honor ctx: the orchestrator bounds each call with the
// inactivity timeout and cancels it when the task is cancelled.
type Producer interface {
	Next(ctx context.Context) (*Edit, error)
}

// Request describes one generation run.
type Request struct {
	ProjectID string `json:"project_id"`
	Owner     string `json:"-"`
	Prompt    string `json:"prompt"`

	// SessionID groups related runs from one client conversation.
	// Opaque to the orchestrator; echoed back on task state.
	SessionID string `json:"session_id,omitempty"`

	// AutoSnapshot records a version after a successful run. Defaults
	// are set by the transport layer, not here.
	AutoSnapshot bool `json:"auto_snapshot"`
}

// ProducerFactory builds a Producer for one request. The orchestrator
// calls it once per task, after the task has acquired its concurrency
// slot.
type ProducerFactory func(ctx context.Context, req Request) (Producer, error)

// ProducerError is a generation failure with a client-facing reason.
// The orchestrator copies Reason into the task's failure state without
// rewording it.
type ProducerError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ProducerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("producer failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("producer failed: %s", e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *ProducerError) Unwrap() error {
	return e.Err
}

// ScriptStep is one step of a ScriptedProducer.
type ScriptStep struct {
	Edit  *Edit
	Err   error
	Delay time.Duration
}

// ScriptedProducer replays a fixed sequence of steps. Used in tests and
// by the offline demo backend; it gives deterministic timing without a
// model behind it.
type ScriptedProducer struct {
	steps []ScriptStep
	pos   int
}

// NewScriptedProducer builds a producer that yields the given steps in
// order, then io.EOF.
func NewScriptedProducer(steps ...ScriptStep) *ScriptedProducer {
	return &ScriptedProducer{steps: steps}
}

// Next returns the next scripted step, honoring per-step delays.
func (p *ScriptedProducer) Next(ctx context.Context) (*Edit, error) {
	if p.pos >= len(p.steps) {
		return nil, io.EOF
	}
	step := p.steps[p.pos]
	p.pos++

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Edit, nil
}

var _ Producer = (*ScriptedProducer)(nil)
