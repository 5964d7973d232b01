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

	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/studio/observability"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

// StartGeneration launches a generation task. Responds 202 immediately;
// progress flows over the task's SSE or WebSocket stream.
func StartGeneration(orch *generation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id and prompt are required"})
			return
		}

		autoSnapshot := true
		if req.AutoSnapshot != nil {
			autoSnapshot = *req.AutoSnapshot
		}

		task, err := orch.Start(c.Request.Context(), generation.Request{
			ProjectID:    req.ProjectID,
			Owner:        middleware.UserID(c),
			Prompt:       req.Prompt,
			SessionID:    req.SessionID,
			AutoSnapshot: autoSnapshot,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, datatypes.NewTaskResponse(task.Info()))
	}
}

// GetTask returns a task's current state.
func GetTask(orch *generation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := orch.Get(c.Param("taskId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewTaskResponse(task.Info()))
	}
}

// ListTasks returns a project's tasks, newest first.
func ListTasks(orch *generation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := orch.List(c.Param("projectId"), middleware.UserID(c))
		out := make([]datatypes.TaskResponse, 0, len(infos))
		for _, info := range infos {
			out = append(out, datatypes.NewTaskResponse(info))
		}
		c.JSON(http.StatusOK, gin.H{"tasks": out})
	}
}

// CancelTask requests cooperative cancellation. Edits already applied
// stay applied.
func CancelTask(orch *generation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")
		if err := orch.Cancel(c.Request.Context(), taskID, middleware.UserID(c)); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling", "task_id": taskID})
	}
}

// StreamTaskSSE streams a task's progress as Server-Sent Events. The
// full event history replays first, so late subscribers see everything;
// the stream ends after the terminal event.
func StreamTaskSSE(orch *generation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := orch.Get(c.Param("taskId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}

		closeStream := observability.StreamOpened("task_sse")
		defer closeStream()

		ctx := c.Request.Context()
		for ev := range task.Subscribe(ctx) {
			if err := writer.WriteEvent(string(ev.Type), taskEventData(task.ID(), task, ev)); err != nil {
				slog.Debug("SSE client gone", "task_id", task.ID(), "error", err)
				return
			}
		}
	}
}

// taskEventData builds the wire payload for one progress event.
func taskEventData(taskID string, task *generation.Task, ev generation.Event) datatypes.TaskEventData {
	return datatypes.TaskEventData{
		TaskID:    taskID,
		Seq:       ev.Seq,
		Path:      ev.Path,
		Delete:    ev.Delete,
		Reason:    ev.Reason,
		VersionID: ev.VersionID,
		Status:    string(task.Status()),
	}
}
