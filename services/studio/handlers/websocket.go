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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/studio/observability"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Previews are served same-origin in local deployments; the
		// reverse proxy enforces origin policy in hosted ones.
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

const wsWriteTimeout = 10 * time.Second

func sendStreamEvent(ws *websocket.Conn, eventType string, data any, prevHash string) (string, error) {
	event := datatypes.StreamEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now().UnixMilli(),
		PrevHash:  prevHash,
	}
	hash, err := eventHash(event)
	if err != nil {
		return prevHash, err
	}
	event.Hash = hash

	ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := ws.WriteJSON(event); err != nil {
		return prevHash, err
	}
	return hash, nil
}

// StreamTaskWebSocket streams a task's progress over a WebSocket, with
// the same replay-then-live semantics as the SSE stream. The connection
// closes after the terminal event is delivered.
func StreamTaskWebSocket(orch *generation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := orch.Get(c.Param("taskId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		closeStream := observability.StreamOpened("task_ws")
		defer closeStream()

		// Reads only consume control frames and detect disconnects.
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		go func() {
			defer cancel()
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		prevHash := ""
		for ev := range task.Subscribe(ctx) {
			prevHash, err = sendStreamEvent(ws, string(ev.Type), taskEventData(task.ID(), task, ev), prevHash)
			if err != nil {
				slog.Debug("websocket client gone", "task_id", task.ID(), "error", err)
				return
			}
		}
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"),
			time.Now().Add(wsWriteTimeout))
	}
}
