// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deploy simulates hosting-provider deployments of a project's
// current file set. Records live in memory; the pipeline walks through
// build phases on a timer and ends at a provider-shaped URL. Real
// provider integrations plug in behind the same Service surface.
package deploy

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AppForgeLocal/pkg/logging"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// Deployment statuses.
const (
	StatusPending  = "pending"
	StatusBuilding = "building"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
)

// providerHosts maps provider names to their URL suffix. Unknown
// providers fall back to example.com.
var providerHosts = map[string]string{
	"vercel":  "vercel.app",
	"heroku":  "herokuapp.com",
	"fly":     "fly.dev",
	"railway": "railway.app",
	"none":    "local.dev",
}

// ValidProvider reports whether the provider name is recognized.
func ValidProvider(p string) bool {
	_, ok := providerHosts[p]
	return ok
}

// Record is one deployment's state.
type Record struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	ProjectID  string     `json:"project_id"`
	Provider   string     `json:"provider"`
	Status     string     `json:"status"`
	URL        string     `json:"url,omitempty"`
	Logs       []string   `json:"logs"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Service runs simulated deployments.
type Service struct {
	logger *logging.Logger

	// PhaseDelay is the pause between pipeline phases. Tests shorten it.
	PhaseDelay time.Duration

	mu        sync.Mutex
	records   map[string]*Record
	byProject map[string][]string

	// onFinish is invoked with the terminal status; used for metrics.
	onFinish func(status string)
}

// NewService builds a deploy service with the default half-second phase
// delay.
func NewService(logger *logging.Logger, onFinish func(status string)) *Service {
	if onFinish == nil {
		onFinish = func(string) {}
	}
	return &Service{
		logger:     logger,
		PhaseDelay: 500 * time.Millisecond,
		records:    make(map[string]*Record),
		byProject:  make(map[string][]string),
		onFinish:   onFinish,
	}
}

// Start creates a deployment record and simulates the pipeline in the
// background. Returns the deployment id immediately.
func (s *Service) Start(owner, projectID, provider string) (string, error) {
	if !ValidProvider(provider) {
		return "", fmt.Errorf("unknown provider %q: %w", provider, workspace.ErrInvalidState)
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Owner:     owner,
		ProjectID: projectID,
		Provider:  provider,
		Status:    StatusPending,
		Logs:      []string{},
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.byProject[projectID] = append(s.byProject[projectID], rec.ID)
	s.mu.Unlock()

	s.logger.Info("deployment started",
		"deploy_id", rec.ID, "project_id", projectID, "provider", provider)
	go s.simulate(rec.ID)
	return rec.ID, nil
}

// Get returns a snapshot of one deployment.
func (s *Service) Get(deployID, owner string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[deployID]
	if !ok || (owner != "" && rec.Owner != owner) {
		return Record{}, &workspace.NotFoundError{Kind: "deployment", Key: deployID}
	}
	return snapshot(rec), nil
}

// ListForProject returns a project's deployments, oldest first.
func (s *Service) ListForProject(projectID, owner string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0)
	for _, id := range s.byProject[projectID] {
		rec, ok := s.records[id]
		if !ok || (owner != "" && rec.Owner != owner) {
			continue
		}
		out = append(out, snapshot(rec))
	}
	return out
}

func (s *Service) simulate(deployID string) {
	phases := []string{
		"Packaging project...",
		"", // filled per provider below
	}

	s.mu.Lock()
	rec, ok := s.records[deployID]
	if !ok {
		s.mu.Unlock()
		return
	}
	provider := rec.Provider
	projectID := rec.ProjectID
	s.mu.Unlock()
	phases[1] = fmt.Sprintf("Pushing to %s...", provider)

	for _, log := range phases {
		s.update(deployID, func(r *Record) {
			r.Status = StatusBuilding
			r.Logs = append(r.Logs, log)
		})
		time.Sleep(s.PhaseDelay)
	}

	host, ok := providerHosts[provider]
	if !ok {
		host = "example.com"
	}
	short := projectID
	if len(short) > 8 {
		short = short[:8]
	}
	url := fmt.Sprintf("https://%s.%s", short, host)

	s.update(deployID, func(r *Record) {
		now := time.Now().UTC()
		r.Status = StatusSuccess
		r.URL = url
		r.FinishedAt = &now
		r.Logs = append(r.Logs, fmt.Sprintf("Deployed at %s", url))
	})
	s.logger.Info("deployment finished", "deploy_id", deployID, "url", url)
	s.onFinish(StatusSuccess)
}

func (s *Service) update(deployID string, fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[deployID]; ok {
		fn(rec)
	}
}

func snapshot(rec *Record) Record {
	out := *rec
	out.Logs = append([]string(nil), rec.Logs...)
	return out
}
