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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AppForgeLocal/services/studio/deploy"
	"github.com/AleutianAI/AppForgeLocal/services/studio/middleware"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

type startDeployRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Provider  string `json:"provider"`
}

// StartDeploy kicks off a simulated deployment of the project's current
// file set.
func StartDeploy(m *workspace.Manager, d *deploy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startDeployRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
			return
		}
		if req.Provider == "" {
			req.Provider = "none"
		}

		owner := middleware.UserID(c)
		if _, err := m.GetOwned(req.ProjectID, owner); err != nil {
			abortWithError(c, err)
			return
		}

		deployID, err := d.Start(owner, req.ProjectID, req.Provider)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"deploy_id": deployID, "status": deploy.StatusPending})
	}
}

// GetDeploy returns one deployment's state and logs.
func GetDeploy(d *deploy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Get(c.Param("deployId"), middleware.UserID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// ListDeploys returns a project's deployments, oldest first.
func ListDeploys(m *workspace.Manager, d *deploy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := middleware.UserID(c)
		projectID := c.Param("projectId")
		if _, err := m.GetOwned(projectID, owner); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deployments": d.ListForProject(projectID, owner)})
	}
}
