// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Version is one immutable point-in-time capture of a project's files.
// Sequence numbers are dense and strictly increasing per project; the
// first snapshot of a project is sequence 1.
type Version struct {
	ID        string                `json:"id"`
	Sequence  int                   `json:"sequence"`
	Label     string                `json:"label,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	Files     map[string]FileRecord `json:"files"`
}

func (v Version) clone() Version {
	out := v
	out.Files = make(map[string]FileRecord, len(v.Files))
	for p, rec := range v.Files {
		out.Files[p] = rec.clone()
	}
	return out
}

// RestoreOptions tunes Restore behavior.
type RestoreOptions struct {
	// FailIfBusy makes Restore return ErrConcurrencyConflict when a
	// generation task is actively mutating the project, instead of
	// interleaving with it.
	FailIfBusy bool
}

// VersionLedger records snapshots of a project and restores them.
//
// The ledger shares its Workspace's mutex with the file store, so a
// snapshot is always internally consistent: no writer can interleave
// between capturing the first and last file. Versions are append-only;
// restoring does not add a version, it only rewrites the live file set.
type VersionLedger struct {
	projectID string
	mu        *sync.Mutex
	store     *FileStore
	ws        *Workspace
	archive   Archive // may be nil
	versions  []Version
}

func newVersionLedger(projectID string, mu *sync.Mutex, store *FileStore, ws *Workspace, archive Archive) *VersionLedger {
	return &VersionLedger{
		projectID: projectID,
		mu:        mu,
		store:     store,
		ws:        ws,
		archive:   archive,
	}
}

// Snapshot captures the current file set as a new version. The label is
// free-form and may be empty.
func (l *VersionLedger) Snapshot(label string) (Version, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := Version{
		ID:        uuid.NewString(),
		Sequence:  len(l.versions) + 1,
		Label:     label,
		CreatedAt: time.Now().UTC(),
		Files:     l.store.snapshotLocked(),
	}
	if l.archive != nil {
		if err := l.archive.SaveVersion(l.projectID, v); err != nil {
			return Version{}, err
		}
	}
	l.versions = append(l.versions, v)
	return v.clone(), nil
}

// List returns all versions, oldest first. File contents are included;
// callers presenting a listing should project down to metadata.
func (l *VersionLedger) List() []Version {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Version, 0, len(l.versions))
	for _, v := range l.versions {
		out = append(out, v.clone())
	}
	return out
}

// Get returns one version by ID.
func (l *VersionLedger) Get(versionID string) (Version, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.versions {
		if v.ID == versionID {
			return v.clone(), nil
		}
	}
	return Version{}, &NotFoundError{Kind: "version", Key: versionID}
}

// Latest returns the most recent version, or ErrNotFound when the
// project has no snapshots yet.
func (l *VersionLedger) Latest() (Version, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.versions) == 0 {
		return Version{}, &NotFoundError{Kind: "version", Key: "latest"}
	}
	return l.versions[len(l.versions)-1].clone(), nil
}

// Restore rewrites the live file set to match the named version.
//
// The swap is all-or-nothing: on any error the live set is untouched.
// Restore does not create a new version; re-snapshotting a restored
// state is an explicit caller decision. Reload subscribers receive one
// signal listing only the paths that differ from the pre-restore state.
func (l *VersionLedger) Restore(versionID string, opts RestoreOptions) error {
	if opts.FailIfBusy && l.ws != nil && l.ws.ActiveTasks() > 0 {
		return ErrConcurrencyConflict
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.versions {
		if v.ID == versionID {
			return l.store.replaceAllLocked(v.Files)
		}
	}
	return &NotFoundError{Kind: "version", Key: versionID}
}

// Count returns the number of recorded versions.
func (l *VersionLedger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.versions)
}

// load seeds the ledger from archived state. Startup only.
func (l *VersionLedger) load(versions []Version) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.versions = make([]Version, 0, len(versions))
	for _, v := range versions {
		l.versions = append(l.versions, v.clone())
	}
}
