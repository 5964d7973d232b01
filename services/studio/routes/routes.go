// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AppForgeLocal/pkg/extensions"
	"github.com/AleutianAI/AppForgeLocal/services/studio/deploy"
	"github.com/AleutianAI/AppForgeLocal/services/studio/handlers"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

// SetupRoutes registers the full studio API surface on the router.
func SetupRoutes(router *gin.Engine, m *workspace.Manager, orch *generation.Orchestrator,
	deploySvc *deploy.Service, opts extensions.ServiceOptions) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		projects := v1.Group("/projects")
		{
			projects.POST("", handlers.CreateProject(m, opts.AuditLogger))
			projects.GET("", handlers.ListProjects(m))
			projects.GET("/:projectId", handlers.GetProject(m))
			projects.DELETE("/:projectId", handlers.DeleteProject(m, orch, opts.AuditLogger))

			projects.POST("/:projectId/files", handlers.WriteFile(m))
			projects.GET("/:projectId/files", handlers.ListFiles(m))
			projects.GET("/:projectId/file", handlers.ReadFile(m))
			projects.PUT("/:projectId/file", handlers.WriteFile(m))
			projects.DELETE("/:projectId/file", handlers.DeleteFile(m))
			projects.GET("/:projectId/export", handlers.ExportZip(m))

			projects.POST("/:projectId/versions", handlers.SnapshotVersion(m, opts.AuditLogger))
			projects.GET("/:projectId/versions", handlers.ListVersions(m))
			projects.GET("/:projectId/versions/:versionId", handlers.GetVersion(m))
			projects.POST("/:projectId/versions/:versionId/restore", handlers.RestoreVersion(m, opts.AuditLogger))
			projects.POST("/:projectId/restore", handlers.RestoreVersion(m, opts.AuditLogger))

			projects.GET("/:projectId/tasks", handlers.ListTasks(orch))
			projects.GET("/:projectId/deployments", handlers.ListDeploys(m, deploySvc))
		}

		generate := v1.Group("/generate")
		{
			generate.POST("", handlers.StartGeneration(orch))
			generate.GET("/:taskId", handlers.GetTask(orch))
			generate.POST("/:taskId/cancel", handlers.CancelTask(orch))
			generate.GET("/:taskId/events", handlers.StreamTaskSSE(orch))
			generate.GET("/:taskId/ws", handlers.StreamTaskWebSocket(orch))
		}

		preview := v1.Group("/preview")
		{
			preview.GET("/:projectId", handlers.PreviewEntry(m))
			preview.GET("/:projectId/file", handlers.PreviewFile(m))
			preview.GET("/:projectId/ws", handlers.PreviewReloadWS(m))
		}

		deployGroup := v1.Group("/deploy")
		{
			deployGroup.POST("", handlers.StartDeploy(m, deploySvc))
			deployGroup.GET("/:deployId", handlers.GetDeploy(deploySvc))
		}
	}
}
