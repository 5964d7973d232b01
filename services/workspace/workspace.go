// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace holds the per-project state of the studio service:
// the in-memory file store, the append-only version ledger, and the
// reload notifier that tells preview clients when files change.
//
// Each project gets one Workspace. A single mutex per workspace covers
// the file store and the ledger together, which is what makes snapshots
// atomic and reload signals consistent with durable state. The Manager
// owns the workspace map and the shared notifier, and rebuilds both from
// the Archive on startup.
package workspace

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ProjectMeta is the identity of one project.
type ProjectMeta struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Workspace bundles one project's file store and version ledger behind a
// shared mutex.
type Workspace struct {
	meta ProjectMeta

	mu     sync.Mutex
	store  *FileStore
	ledger *VersionLedger

	// activeTasks counts generation tasks currently running against
	// this workspace. Restore uses it for fail-if-busy checks.
	activeTasks atomic.Int32
}

func newWorkspace(meta ProjectMeta, archive Archive, notifier *ReloadNotifier) *Workspace {
	w := &Workspace{meta: meta}
	w.store = newFileStore(meta.ID, &w.mu, archive, notifier)
	w.ledger = newVersionLedger(meta.ID, &w.mu, w.store, w, archive)
	return w
}

// Meta returns the project identity.
func (w *Workspace) Meta() ProjectMeta { return w.meta }

// ID returns the project id.
func (w *Workspace) ID() string { return w.meta.ID }

// Owner returns the owning user id.
func (w *Workspace) Owner() string { return w.meta.Owner }

// Store returns the file store.
func (w *Workspace) Store() *FileStore { return w.store }

// Ledger returns the version ledger.
func (w *Workspace) Ledger() *VersionLedger { return w.ledger }

// BeginTask marks a generation task as actively mutating this workspace.
// Must be paired with EndTask.
func (w *Workspace) BeginTask() { w.activeTasks.Add(1) }

// EndTask releases a BeginTask marker.
func (w *Workspace) EndTask() { w.activeTasks.Add(-1) }

// ActiveTasks reports how many generation tasks are running here.
func (w *Workspace) ActiveTasks() int { return int(w.activeTasks.Load()) }

// Manager owns all workspaces and the shared reload notifier.
type Manager struct {
	mu         sync.RWMutex
	archive    Archive // may be nil (ephemeral manager, used in tests)
	notifier   *ReloadNotifier
	workspaces map[string]*Workspace
}

// NewManager builds a manager and, when an archive is supplied, rehydrates
// every archived project, its files, and its version history.
func NewManager(archive Archive) (*Manager, error) {
	m := &Manager{
		archive:    archive,
		notifier:   NewReloadNotifier(),
		workspaces: make(map[string]*Workspace),
	}
	if archive == nil {
		return m, nil
	}

	metas, err := archive.LoadProjects()
	if err != nil {
		return nil, err
	}
	for _, meta := range metas {
		w := newWorkspace(meta, archive, m.notifier)
		files, err := archive.LoadFiles(meta.ID)
		if err != nil {
			return nil, err
		}
		w.store.load(files)
		versions, err := archive.LoadVersions(meta.ID)
		if err != nil {
			return nil, err
		}
		w.ledger.load(versions)
		m.workspaces[meta.ID] = w
	}
	return m, nil
}

// Notifier returns the shared reload notifier.
func (m *Manager) Notifier() *ReloadNotifier { return m.notifier }

// Create makes a new empty project owned by the given user.
func (m *Manager) Create(owner, name string) (*Workspace, error) {
	meta := ProjectMeta{
		ID:        uuid.NewString(),
		Owner:     owner,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if m.archive != nil {
		if err := m.archive.SaveProject(meta); err != nil {
			return nil, err
		}
	}

	w := newWorkspace(meta, m.archive, m.notifier)
	m.mu.Lock()
	m.workspaces[meta.ID] = w
	m.mu.Unlock()
	return w, nil
}

// Get returns a workspace by project id.
func (m *Manager) Get(projectID string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[projectID]
	if !ok {
		return nil, &NotFoundError{Kind: "project", Key: projectID}
	}
	return w, nil
}

// GetOwned returns a workspace only if the given user owns it. A project
// owned by someone else reads as not found, so project ids leak nothing
// across users.
func (m *Manager) GetOwned(projectID, owner string) (*Workspace, error) {
	w, err := m.Get(projectID)
	if err != nil {
		return nil, err
	}
	if w.Owner() != owner {
		return nil, &NotFoundError{Kind: "project", Key: projectID}
	}
	return w, nil
}

// List returns the user's workspaces, oldest first.
func (m *Manager) List(owner string) []*Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workspace, 0)
	for _, w := range m.workspaces {
		if w.Owner() == owner {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].meta.CreatedAt.Equal(out[j].meta.CreatedAt) {
			return out[i].meta.ID < out[j].meta.ID
		}
		return out[i].meta.CreatedAt.Before(out[j].meta.CreatedAt)
	})
	return out
}

// Delete removes a project, its archived state, and terminates its reload
// subscriptions.
func (m *Manager) Delete(projectID string) error {
	m.mu.Lock()
	_, ok := m.workspaces[projectID]
	if !ok {
		m.mu.Unlock()
		return &NotFoundError{Kind: "project", Key: projectID}
	}
	delete(m.workspaces, projectID)
	m.mu.Unlock()

	m.notifier.CloseProject(projectID)
	if m.archive != nil {
		return m.archive.DeleteProject(projectID)
	}
	return nil
}
