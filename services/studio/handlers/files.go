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
	"archive/zip"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/studio/observability"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// WriteFile creates or replaces one file in a project.
func WriteFile(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		var req datatypes.WriteFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
			return
		}

		rec, err := w.Store().Write(req.Path, []byte(req.Content))
		if err != nil {
			abortWithError(c, err)
			return
		}
		observability.RecordFileMutation("write")
		c.JSON(http.StatusOK, datatypes.NewFileResponse(rec, false))
	}
}

// ReadFile returns one file, content included.
func ReadFile(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		rec, err := w.Store().Read(c.Query("path"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewFileResponse(rec, true))
	}
}

// ListFiles returns the project's file paths, optionally filtered by a
// directory prefix.
func ListFiles(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		paths, err := w.Store().List(c.Query("prefix"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.FileListResponse{Paths: paths})
	}
}

// DeleteFile removes one file. A missing path is 404, not a silent
// no-op.
func DeleteFile(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		if err := w.Store().Delete(c.Query("path")); err != nil {
			abortWithError(c, err)
			return
		}
		observability.RecordFileMutation("delete")
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// ExportZip streams the project's current file set as a zip archive.
// The snapshot is atomic, so a generation task running concurrently
// cannot produce a half-updated archive.
func ExportZip(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		snap := w.Store().Snapshot()
		filename := fmt.Sprintf("%s.zip", w.Meta().Name)
		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(filename))

		paths := make([]string, 0, len(snap))
		for p := range snap {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		zw := zip.NewWriter(c.Writer)
		for _, p := range paths {
			rec := snap[p]
			f, err := zw.Create(rec.Path)
			if err != nil {
				slog.Error("zip entry failed", "path", rec.Path, "error", err)
				return
			}
			if _, err := f.Write(rec.Content); err != nil {
				slog.Error("zip write failed", "path", rec.Path, "error", err)
				return
			}
		}
		if err := zw.Close(); err != nil {
			slog.Error("zip close failed", "error", err)
		}
	}
}
