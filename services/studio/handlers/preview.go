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
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/studio/observability"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// entryCandidates are checked in order when serving a project's preview
// root. Plain HTML entries first, then framework-style entry modules.
var entryCandidates = []string{
	"index.html",
	"public/index.html",
	"app/index.html",
	"src/index.html",
	"src/app/page.html",
	"src/app/page.tsx",
	"app/page.tsx",
	"pages/index.tsx",
	"pages/index.js",
}

// fallbackPreviewHTML is served when no recognizable entry file exists.
const fallbackPreviewHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Preview</title></head>
<body>
<h1>Preview</h1>
<p>No typical entry file found. Use the file endpoint with ?path=... to fetch files.</p>
</body>
</html>`

// contentTypeFor guesses a response content type from the file
// extension. Preview serves source files as-is; TSX is plain text
// because browsers cannot execute it untranspiled.
func contentTypeFor(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(lower, ".js"):
		return "application/javascript"
	case strings.HasSuffix(lower, ".ts"):
		return "application/typescript"
	case strings.HasSuffix(lower, ".tsx"):
		return "text/plain"
	case strings.HasSuffix(lower, ".css"):
		return "text/css"
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	case strings.HasSuffix(lower, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".woff2"):
		return "font/woff2"
	default:
		return "text/plain; charset=utf-8"
	}
}

// PreviewEntry serves the project's entry file, best-effort. With no
// recognizable entry a minimal instructional page comes back instead of
// a 404, so an empty project still previews.
func PreviewEntry(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		for _, candidate := range entryCandidates {
			rec, err := w.Store().Read(candidate)
			if err != nil {
				continue
			}
			c.Data(http.StatusOK, contentTypeFor(rec.Path), rec.Content)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fallbackPreviewHTML))
	}
}

// PreviewFile serves one project file raw, content-typed by extension.
func PreviewFile(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}

		path := c.Query("path")
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path query param is required"})
			return
		}
		rec, err := w.Store().Read(path)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypeFor(rec.Path), rec.Content)
	}
}

// PreviewReloadWS pushes reload signals to a preview client. Each
// message is a StreamEvent of type "reload"; clients refresh whatever
// they need on receipt. The socket closes when the project is deleted.
//
// Incoming "ping" text frames are answered with "pong" so simple
// clients can keep the connection alive without WebSocket control
// frames.
func PreviewReloadWS(m *workspace.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := m.GetOwned(c.Param("projectId"), middleware.UserID(c))
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

		closeStream := observability.StreamOpened("reload_ws")
		defer closeStream()

		sub := m.Notifier().Subscribe(w.ID())
		defer sub.Close()

		// Reader goroutine: forwards pings and detects disconnect. All
		// writes stay on the select loop below; gorilla/websocket
		// allows only one concurrent writer per connection.
		done := make(chan struct{})
		pings := make(chan struct{}, 1)
		go func() {
			defer close(done)
			for {
				msgType, data, err := ws.ReadMessage()
				if err != nil {
					return
				}
				if msgType == websocket.TextMessage && string(data) == "ping" {
					select {
					case pings <- struct{}{}:
					default:
					}
				}
			}
		}()

		prevHash := ""
		for {
			select {
			case <-pings:
				ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
					return
				}
			case sig, ok := <-sub.C():
				if !ok {
					// Project deleted; tell the client and stop.
					ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "project deleted"),
						time.Now().Add(wsWriteTimeout))
					return
				}
				data := datatypes.ReloadEventData{
					ProjectID: sig.ProjectID,
					Paths:     sig.Paths,
					Reason:    "file_change",
				}
				prevHash, err = sendStreamEvent(ws, "reload", data, prevHash)
				if err != nil {
					slog.Debug("reload client gone", "project_id", w.ID(), "error", err)
					return
				}
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
