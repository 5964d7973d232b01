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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AppForgeLocal/pkg/extensions"
	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/studio/observability"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// SnapshotVersion records the current file set as a new version.
func SnapshotVersion(m *workspace.Manager, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := middleware.UserID(c)
		w, err := m.GetOwned(c.Param("projectId"), owner)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var req datatypes.SnapshotRequest
		// Body is optional; an empty label is fine.
		_ = c.ShouldBindJSON(&req)

		v, err := w.Ledger().Snapshot(req.Label)
		if err != nil {
			slog.Error("snapshot failed", "project_id", w.ID(), "error", err)
			abortWithError(c, err)
			return
		}

		observability.RecordSnapshot("manual")
		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType:    "version.snapshot",
			UserID:       owner,
			ResourceType: "version",
			ResourceID:   v.ID,
			Outcome:      "success",
			Metadata:     map[string]any{"project_id": w.ID(), "sequence": v.Sequence},
		}); err != nil {
			slog.Warn("audit log failed", "error", err)
		}
		c.JSON(http.StatusCreated, datatypes.NewVersionResponse(v))
	}
}

// ListVersions returns version metadata, oldest first.
func ListVersions(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		versions := w.Ledger().List()
		out := make([]datatypes.VersionResponse, 0, len(versions))
		for _, v := range versions {
			out = append(out, datatypes.NewVersionResponse(v))
		}
		c.JSON(http.StatusOK, gin.H{"versions": out})
	}
}

// GetVersion returns one version's metadata.
func GetVersion(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		v, err := w.Ledger().Get(c.Param("versionId"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewVersionResponse(v))
	}
}

// RestoreVersion rewrites the live file set from a recorded version.
// The restore itself does not create a version.
func RestoreVersion(m *workspace.Manager, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := middleware.UserID(c)
		w, err := m.GetOwned(c.Param("projectId"), owner)
		if err != nil {
			abortWithError(c, err)
			return
		}

		// The version id comes from the route on the
		// /versions/:versionId/restore form, from the body on the
		// project-level /restore form.
		var req datatypes.RestoreRequest
		if versionID := c.Param("versionId"); versionID != "" {
			_ = c.ShouldBindJSON(&req)
			req.VersionID = versionID
		} else if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version_id is required"})
			return
		}

		err = w.Ledger().Restore(req.VersionID, workspace.RestoreOptions{
			FailIfBusy: req.FailIfBusy,
		})
		if err != nil {
			switch {
			case errors.Is(err, workspace.ErrConcurrencyConflict):
				observability.RecordRestore("conflict")
			case errors.Is(err, workspace.ErrNotFound):
				observability.RecordRestore("not_found")
			default:
				observability.RecordRestore("error")
			}
			abortWithError(c, err)
			return
		}

		observability.RecordRestore("success")
		slog.Info("version restored", "project_id", w.ID(), "version_id", req.VersionID)
		if err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType:    "version.restore",
			UserID:       owner,
			ResourceType: "version",
			ResourceID:   req.VersionID,
			Outcome:      "success",
			Metadata:     map[string]any{"project_id": w.ID()},
		}); err != nil {
			slog.Warn("audit log failed", "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "restored", "version_id": req.VersionID})
	}
}
