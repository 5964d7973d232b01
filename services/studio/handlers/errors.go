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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AppForgeLocal/services/workspace"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

// abortWithError maps core errors onto HTTP status codes and writes the
// uniform error envelope.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workspace.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, workspace.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workspace.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, workspace.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, generation.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, workspace.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
