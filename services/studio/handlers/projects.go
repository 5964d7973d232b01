// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AppForgeLocal/pkg/extensions"
	"github.com/AleutianAI/AppForgeLocal/pkg/validation"
	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

// CreateProject makes a new empty workspace for the caller.
func CreateProject(m *workspace.Manager, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		name, err := validation.SanitizeProjectName(req.Name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		owner := middleware.UserID(c)
		w, err := m.Create(owner, name)
		if err != nil {
			slog.Error("failed to create project", "error", err)
			abortWithError(c, err)
			return
		}

		slog.Info("project created", "project_id", w.ID(), "owner", owner)
		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType:    "project.create",
			UserID:       owner,
			ResourceType: "project",
			ResourceID:   w.ID(),
			Outcome:      "success",
		}); err != nil {
			slog.Warn("audit log failed", "error", err)
		}
		c.JSON(http.StatusCreated, datatypes.NewProjectResponse(w))
	}
}

// ListProjects returns the caller's projects, oldest first.
func ListProjects(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaces := m.List(middleware.UserID(c))
		out := make([]datatypes.ProjectResponse, 0, len(workspaces))
		for _, w := range workspaces {
			out = append(out, datatypes.NewProjectResponse(w))
		}
		c.JSON(http.StatusOK, gin.H{"projects": out})
	}
}

// GetProject returns one project by id.
func GetProject(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewProjectResponse(w))
	}
}

// DeleteProject removes a project. Live generation tasks are cancelled
// first so nothing keeps mutating a workspace that no longer exists.
func DeleteProject(m *workspace.Manager, orch *generation.Orchestrator, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := middleware.UserID(c)
		projectID := c.Param("projectId")
		if _, err := m.GetOwned(projectID, owner); err != nil {
			abortWithError(c, err)
			return
		}

		orch.CancelProject(projectID)
		if err := m.Delete(projectID); err != nil {
			slog.Error("failed to delete project", "project_id", projectID, "error", err)
			abortWithError(c, err)
			return
		}

		slog.Info("project deleted", "project_id", projectID, "owner", owner)
		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType:    "project.delete",
			UserID:       owner,
			ResourceType: "project",
			ResourceID:   projectID,
			Outcome:      "success",
		}); err != nil {
			slog.Warn("audit log failed", "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "project_id": projectID})
	}
}
