// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewArchive(db)
}

func TestProjectRoundTrip(t *testing.T) {
	a := newTestArchive(t)

	meta := workspace.ProjectMeta{
		ID:        "p1",
		Owner:     "alice",
		Name:      "shop",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, a.SaveProject(meta))

	metas, err := a.LoadProjects()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, meta, metas[0])
}

func TestFileRoundTrip(t *testing.T) {
	a := newTestArchive(t)

	rec := workspace.FileRecord{
		Path:      "src/app.py",
		Content:   []byte("print('hi')"),
		Hash:      "abc",
		Size:      11,
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, a.SaveFile("p1", rec))
	require.NoError(t, a.SaveFile("p2", workspace.FileRecord{Path: "other.txt"}))

	files, err := a.LoadFiles("p1")
	require.NoError(t, err)
	require.Len(t, files, 1, "files must be scoped per project")
	assert.Equal(t, rec, files["src/app.py"])

	require.NoError(t, a.DeleteFile("p1", "src/app.py"))
	files, err = a.LoadFiles("p1")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReplaceFiles(t *testing.T) {
	a := newTestArchive(t)

	require.NoError(t, a.SaveFile("p1", workspace.FileRecord{Path: "stale.txt"}))
	next := map[string]workspace.FileRecord{
		"a.txt": {Path: "a.txt", Content: []byte("a")},
		"b.txt": {Path: "b.txt", Content: []byte("b")},
	}
	require.NoError(t, a.ReplaceFiles("p1", next))

	files, err := a.LoadFiles("p1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.NotContains(t, files, "stale.txt")
	assert.Contains(t, files, "a.txt")
	assert.Contains(t, files, "b.txt")
}

func TestVersionOrdering(t *testing.T) {
	a := newTestArchive(t)

	// Saved out of order; load must come back in sequence order.
	for _, seq := range []int{3, 1, 2} {
		require.NoError(t, a.SaveVersion("p1", workspace.Version{
			ID:       fmt.Sprintf("v%d", seq),
			Sequence: seq,
			Files:    map[string]workspace.FileRecord{},
		}))
	}

	versions, err := a.LoadVersions("p1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Sequence)
	}
}

func TestDeleteProjectRemovesEverything(t *testing.T) {
	a := newTestArchive(t)

	require.NoError(t, a.SaveProject(workspace.ProjectMeta{ID: "p1"}))
	require.NoError(t, a.SaveFile("p1", workspace.FileRecord{Path: "a.txt"}))
	require.NoError(t, a.SaveVersion("p1", workspace.Version{ID: "v1", Sequence: 1}))
	require.NoError(t, a.SaveProject(workspace.ProjectMeta{ID: "p2"}))

	require.NoError(t, a.DeleteProject("p1"))

	metas, err := a.LoadProjects()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "p2", metas[0].ID)

	files, err := a.LoadFiles("p1")
	require.NoError(t, err)
	assert.Empty(t, files)

	versions, err := a.LoadVersions("p1")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestManagerRehydration(t *testing.T) {
	// Simulate a restart: build state through one manager, then open a
	// second manager over the same archive and compare.
	a := newTestArchive(t)

	m1, err := workspace.NewManager(a)
	require.NoError(t, err)
	w, err := m1.Create("alice", "shop")
	require.NoError(t, err)
	_, err = w.Store().Write("src/app.py", []byte("v1"))
	require.NoError(t, err)
	v, err := w.Ledger().Snapshot("baseline")
	require.NoError(t, err)
	_, err = w.Store().Write("src/app.py", []byte("v2"))
	require.NoError(t, err)

	m2, err := workspace.NewManager(a)
	require.NoError(t, err)
	w2, err := m2.Get(w.ID())
	require.NoError(t, err)
	assert.Equal(t, "alice", w2.Owner())

	rec, err := w2.Store().Read("src/app.py")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(rec.Content))

	got, err := w2.Ledger().Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sequence)
	assert.Equal(t, "v1", string(got.Files["src/app.py"].Content))

	// Restore still works after rehydration.
	require.NoError(t, w2.Ledger().Restore(v.ID, workspace.RestoreOptions{}))
	rec, err = w2.Store().Read("src/app.py")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(rec.Content))
}
