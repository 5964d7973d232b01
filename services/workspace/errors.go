// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"errors"
	"fmt"
)

// Sentinel errors for workspace operations. Callers match with errors.Is;
// the HTTP layer maps them to status codes.
var (
	// ErrInvalidPath indicates a malformed or traversing file path.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound indicates a missing file, version, project, or task.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation illegal for the current
	// state, e.g. cancelling a completed task.
	ErrInvalidState = errors.New("invalid state")

	// ErrTimeout indicates the generation producer exceeded its
	// inactivity bound.
	ErrTimeout = errors.New("timeout")

	// ErrConcurrencyConflict indicates a restore was refused because it
	// raced with concurrent mutation and the caller asked for
	// fail-if-busy semantics.
	ErrConcurrencyConflict = errors.New("concurrent mutation conflict")
)

// PathError describes why a path was rejected.
type PathError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// Unwrap returns the sentinel error.
func (e *PathError) Unwrap() error {
	return ErrInvalidPath
}

// NotFoundError identifies which resource was missing.
type NotFoundError struct {
	Kind string // "file", "version", "project", "task"
	Key  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Unwrap returns the sentinel error.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
