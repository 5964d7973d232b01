// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire-level request and response shapes
// of the studio API. Core types (workspace, generation) stay out of this
// package; handlers translate between the two.
package datatypes

import (
	"time"

	"github.com/AleutianAI/AppForgeLocal/services/workspace"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

// CreateProjectRequest creates a new project workspace.
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// ProjectResponse is one project in API responses.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	FileCount int       `json:"file_count"`
}

// NewProjectResponse converts a workspace to its API shape.
func NewProjectResponse(w *workspace.Workspace) ProjectResponse {
	meta := w.Meta()
	return ProjectResponse{
		ID:        meta.ID,
		Name:      meta.Name,
		CreatedAt: meta.CreatedAt,
		FileCount: w.Store().Count(),
	}
}

// WriteFileRequest creates or replaces one file.
type WriteFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// FileResponse is one file's metadata, optionally with content.
type FileResponse struct {
	Path      string    `json:"path"`
	Content   string    `json:"content,omitempty"`
	Hash      string    `json:"hash"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFileResponse converts a file record, including content when asked.
func NewFileResponse(rec workspace.FileRecord, withContent bool) FileResponse {
	resp := FileResponse{
		Path:      rec.Path,
		Hash:      rec.Hash,
		Size:      rec.Size,
		UpdatedAt: rec.UpdatedAt,
	}
	if withContent {
		resp.Content = string(rec.Content)
	}
	return resp
}

// FileListResponse lists file paths under a prefix.
type FileListResponse struct {
	Paths []string `json:"paths"`
}

// SnapshotRequest records a new version.
type SnapshotRequest struct {
	Label string `json:"label"`
}

// VersionResponse is one ledger version without file contents.
type VersionResponse struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"sequence"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	FileCount int       `json:"file_count"`
}

// NewVersionResponse projects a version down to metadata.
func NewVersionResponse(v workspace.Version) VersionResponse {
	return VersionResponse{
		ID:        v.ID,
		Sequence:  v.Sequence,
		Label:     v.Label,
		CreatedAt: v.CreatedAt,
		FileCount: len(v.Files),
	}
}

// RestoreRequest restores a version into the live file set.
type RestoreRequest struct {
	VersionID  string `json:"version_id" binding:"required"`
	FailIfBusy bool   `json:"fail_if_busy"`
}

// GenerateRequest starts a generation task.
type GenerateRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Prompt    string `json:"prompt" binding:"required"`

	// SessionID optionally groups runs from one client conversation.
	SessionID string `json:"session_id,omitempty"`

	// AutoSnapshot defaults to true; send false explicitly to skip the
	// post-run version.
	AutoSnapshot *bool `json:"auto_snapshot,omitempty"`
}

// TaskResponse mirrors generation.Info for API responses.
type TaskResponse struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Prompt     string     `json:"prompt"`
	SessionID  string     `json:"session_id,omitempty"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	VersionID  string     `json:"version_id,omitempty"`
	EditCount  int        `json:"edit_count"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewTaskResponse converts a task snapshot.
func NewTaskResponse(info generation.Info) TaskResponse {
	return TaskResponse{
		ID:         info.ID,
		ProjectID:  info.ProjectID,
		Prompt:     info.Prompt,
		SessionID:  info.SessionID,
		Status:     string(info.Status),
		Reason:     info.Reason,
		VersionID:  info.VersionID,
		EditCount:  info.EditCount,
		CreatedAt:  info.CreatedAt,
		StartedAt:  info.StartedAt,
		FinishedAt: info.FinishedAt,
	}
}

// DeployRequest kicks off a deployment of the current file set.
type DeployRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}

// DeployResponse reports a deployment's state.
type DeployResponse struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Status     string     `json:"status"`
	URL        string     `json:"url,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
