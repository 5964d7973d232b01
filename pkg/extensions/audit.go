// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent records a security-relevant action for compliance logging.
//
// Event types follow a "category.action" convention:
//   - "file.write", "file.delete" — workspace file mutations
//   - "version.snapshot", "version.restore" — ledger operations
//   - "task.start", "task.cancel" — generation lifecycle
//   - "project.create", "project.delete" — workspace lifecycle
type AuditEvent struct {
	// EventType categorizes the event, e.g. "file.write".
	EventType string

	// Timestamp is when the event occurred (UTC). Implementations set
	// it to time.Now().UTC() when zero.
	Timestamp time.Time

	// UserID identifies who performed the action.
	UserID string

	// ResourceType is the kind of resource involved: "file", "version",
	// "task", "project".
	ResourceType string

	// ResourceID is the specific resource (path, version id, task id).
	ResourceID string

	// Outcome is "success", "failure", or "blocked".
	Outcome string

	// Metadata holds event-specific details (project id, error text).
	Metadata map[string]any
}

// AuditLogger receives audit events from the service. Implementations
// should be non-blocking; the service does not retry failed writes.
type AuditLogger interface {
	// Log records one audit event. Errors are logged by the caller but
	// never propagated to the user-facing operation.
	Log(ctx context.Context, event AuditEvent) error
}

// NopAuditLogger discards all audit events (open source default).
type NopAuditLogger struct{}

// Log discards the event.
func (NopAuditLogger) Log(ctx context.Context, event AuditEvent) error { return nil }

var _ AuditLogger = (*NopAuditLogger)(nil)
