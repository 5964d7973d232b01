// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// StreamEvent is the envelope for one progress event on the SSE and
// WebSocket streams.
//
// Each event carries a SHA-256 hash of its content and the hash of the
// previous event, forming a verifiable chain. Clients that care about
// integrity can detect dropped or reordered frames; clients that don't
// can ignore both fields.
type StreamEvent struct {
	// ID is a UUID v4 assigned by the writer.
	ID string `json:"id"`

	// Type is the event type: "queued", "started", "edit", "snapshot",
	// "completed", "failed", "cancelled", or "reload".
	Type string `json:"type"`

	// Data is the type-specific payload.
	Data any `json:"data,omitempty"`

	// CreatedAt is the write time in Unix milliseconds.
	CreatedAt int64 `json:"created_at"`

	// Hash is the SHA-256 of this event's type, payload, and timestamp.
	Hash string `json:"hash"`

	// PrevHash chains to the preceding event; empty on the first event.
	PrevHash string `json:"prev_hash,omitempty"`
}

// TaskEventData is the payload for task progress events.
type TaskEventData struct {
	TaskID    string `json:"task_id"`
	Seq       int    `json:"seq"`
	Path      string `json:"path,omitempty"`
	Delete    bool   `json:"delete,omitempty"`
	Reason    string `json:"reason,omitempty"`
	VersionID string `json:"version_id,omitempty"`
	Status    string `json:"status"`
}

// ReloadEventData is the payload for preview reload events.
type ReloadEventData struct {
	ProjectID string   `json:"project_id"`
	Paths     []string `json:"paths,omitempty"`
	Reason    string   `json:"reason"`
}
