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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRecord is one file in a project workspace. Content is treated as
// immutable once stored; mutation always replaces the whole record.
type FileRecord struct {
	Path      string    `json:"path"`
	Content   []byte    `json:"content"`
	Hash      string    `json:"hash"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// clone deep-copies the record so callers can never alias store-internal
// content slices.
func (r FileRecord) clone() FileRecord {
	out := r
	out.Content = make([]byte, len(r.Content))
	copy(out.Content, r.Content)
	return out
}

// Archive is the durable backing store for workspace state. The in-memory
// structures are the source of truth at runtime; the archive exists so a
// restart reconstructs them. Implementations must be safe for concurrent
// use across projects (per-project calls are serialized by the workspace
// lock).
type Archive interface {
	SaveProject(meta ProjectMeta) error
	DeleteProject(projectID string) error

	SaveFile(projectID string, rec FileRecord) error
	DeleteFile(projectID string, path string) error
	// ReplaceFiles atomically swaps a project's entire file set.
	ReplaceFiles(projectID string, files map[string]FileRecord) error

	SaveVersion(projectID string, v Version) error

	LoadProjects() ([]ProjectMeta, error)
	LoadFiles(projectID string) (map[string]FileRecord, error)
	LoadVersions(projectID string) ([]Version, error)
}

// hashContent returns the lowercase hex SHA-256 of the content. Hashes
// let restores and full-set replacements skip unchanged files when
// computing the reload diff.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FileStore holds a single project's files.
//
// # Description
//
//	All operations are linearizable per project: the store shares its
//	parent Workspace's mutex, so a snapshot taken by the version ledger
//	can never observe a half-applied multi-file change. Durability comes
//	before visibility: every mutation is written to the archive first,
//	then applied in memory, then published to reload subscribers. A
//	reload signal therefore never precedes the durable state it
//	announces.
//
// # Limitations
//   - Content lives in memory; very large projects pay for that. The
//     archive is not consulted on reads.
type FileStore struct {
	projectID string
	mu        *sync.Mutex
	files     map[string]FileRecord
	archive   Archive // may be nil (ephemeral store, used in tests)
	notifier  *ReloadNotifier
}

func newFileStore(projectID string, mu *sync.Mutex, archive Archive, notifier *ReloadNotifier) *FileStore {
	return &FileStore{
		projectID: projectID,
		mu:        mu,
		files:     make(map[string]FileRecord),
		archive:   archive,
		notifier:  notifier,
	}
}

// Write creates or replaces one file and notifies reload subscribers.
// The returned record is a copy.
func (s *FileStore) Write(p string, content []byte) (FileRecord, error) {
	clean, err := NormalizePath(p)
	if err != nil {
		return FileRecord{}, err
	}

	rec := FileRecord{
		Path:      clean,
		Content:   append([]byte(nil), content...),
		Hash:      hashContent(content),
		Size:      len(content),
		UpdatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archive != nil {
		if err := s.archive.SaveFile(s.projectID, rec); err != nil {
			return FileRecord{}, err
		}
	}
	s.files[clean] = rec
	s.notifier.Publish(s.projectID, []string{clean})
	return rec.clone(), nil
}

// Delete removes one file. Deleting a path that does not exist returns a
// *NotFoundError so clients can distinguish a typo from a no-op.
func (s *FileStore) Delete(p string) error {
	clean, err := NormalizePath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[clean]; !ok {
		return &NotFoundError{Kind: "file", Key: clean}
	}
	if s.archive != nil {
		if err := s.archive.DeleteFile(s.projectID, clean); err != nil {
			return err
		}
	}
	delete(s.files, clean)
	s.notifier.Publish(s.projectID, []string{clean})
	return nil
}

// Read returns a copy of one file's record.
func (s *FileStore) Read(p string) (FileRecord, error) {
	clean, err := NormalizePath(p)
	if err != nil {
		return FileRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[clean]
	if !ok {
		return FileRecord{}, &NotFoundError{Kind: "file", Key: clean}
	}
	return rec.clone(), nil
}

// List returns the paths under the given prefix, sorted. An empty prefix
// lists everything. The prefix matches whole path segments: "src" matches
// "src/app.py" but not "srcfoo.py".
func (s *FileStore) List(prefix string) ([]string, error) {
	clean := ""
	if prefix != "" {
		var err error
		clean, err = NormalizePath(prefix)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		if clean == "" || p == clean || strings.HasPrefix(p, clean+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Snapshot returns a deep copy of the full file set, taken atomically.
func (s *FileStore) Snapshot() map[string]FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *FileStore) snapshotLocked() map[string]FileRecord {
	out := make(map[string]FileRecord, len(s.files))
	for p, rec := range s.files {
		out[p] = rec.clone()
	}
	return out
}

// ReplaceAll swaps the entire file set for the given one, publishing a
// single coalesced reload signal listing only the paths whose content
// actually changed. Used by version restore.
func (s *FileStore) ReplaceAll(files map[string]FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceAllLocked(files)
}

func (s *FileStore) replaceAllLocked(files map[string]FileRecord) error {
	next := make(map[string]FileRecord, len(files))
	for p, rec := range files {
		next[p] = rec.clone()
	}

	changed := make([]string, 0)
	for p, rec := range next {
		old, ok := s.files[p]
		if !ok || old.Hash != rec.Hash {
			changed = append(changed, p)
		}
	}
	for p := range s.files {
		if _, ok := next[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)

	if s.archive != nil {
		if err := s.archive.ReplaceFiles(s.projectID, next); err != nil {
			return err
		}
	}
	s.files = next
	if len(changed) > 0 {
		s.notifier.Publish(s.projectID, changed)
	}
	return nil
}

// load seeds the in-memory set from archived state. Startup only; no
// reload signal is published.
func (s *FileStore) load(files map[string]FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]FileRecord, len(files))
	for p, rec := range files {
		s.files[p] = rec.clone()
	}
}

// Count returns the number of files in the store.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
