// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deploy

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AppForgeLocal/pkg/logging"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logging.New(logging.Config{Quiet: true})
	svc := NewService(logger, nil)
	svc.PhaseDelay = time.Millisecond
	return svc
}

func waitStatus(t *testing.T, svc *Service, deployID, owner, want string) Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := svc.Get(deployID, owner)
		require.NoError(t, err)
		if rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("deployment %s never reached status %q", deployID, want)
	return Record{}
}

func TestDeploySuccess(t *testing.T) {
	svc := newTestService(t)

	id, err := svc.Start("alice", "proj-1234-abcd", "fly")
	require.NoError(t, err)

	rec := waitStatus(t, svc, id, "alice", StatusSuccess)
	assert.Equal(t, "fly", rec.Provider)
	assert.True(t, strings.HasPrefix(rec.URL, "https://proj-123."),
		"URL should start with the shortened project id, got %q", rec.URL)
	assert.True(t, strings.HasSuffix(rec.URL, ".fly.dev"), "got %q", rec.URL)
	require.NotNil(t, rec.FinishedAt)

	// Pipeline phases land in the logs in order.
	require.GreaterOrEqual(t, len(rec.Logs), 3)
	assert.Equal(t, "Packaging project...", rec.Logs[0])
	assert.Equal(t, "Pushing to fly...", rec.Logs[1])
	assert.Contains(t, rec.Logs[len(rec.Logs)-1], "Deployed at")
}

func TestDeployUnknownProvider(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Start("alice", "proj", "digitalocean")
	require.Error(t, err)
	assert.True(t, errors.Is(err, workspace.ErrInvalidState))
}

func TestDeployOwnerScoping(t *testing.T) {
	svc := newTestService(t)

	id, err := svc.Start("alice", "proj", "none")
	require.NoError(t, err)

	_, err = svc.Get(id, "bob")
	var nf *workspace.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "deployment", nf.Kind)

	_, err = svc.Get(id, "alice")
	require.NoError(t, err)
}

func TestListForProject(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Start("alice", "proj", "none")
	require.NoError(t, err)
	second, err := svc.Start("alice", "proj", "vercel")
	require.NoError(t, err)
	_, err = svc.Start("alice", "other", "none")
	require.NoError(t, err)

	recs := svc.ListForProject("proj", "alice")
	require.Len(t, recs, 2)
	assert.Equal(t, first, recs[0].ID)
	assert.Equal(t, second, recs[1].ID)

	assert.Empty(t, svc.ListForProject("proj", "bob"))
}

func TestRecordSnapshotIsolated(t *testing.T) {
	svc := newTestService(t)

	id, err := svc.Start("alice", "proj", "none")
	require.NoError(t, err)
	rec := waitStatus(t, svc, id, "alice", StatusSuccess)

	// Mutating the returned snapshot must not touch service state.
	rec.Logs = append(rec.Logs, "tampered")
	again, err := svc.Get(id, "alice")
	require.NoError(t, err)
	assert.NotContains(t, again.Logs, "tampered")
}
