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
	"errors"
	"testing"
)

func TestSnapshotSequence(t *testing.T) {
	w := newTestWorkspace(t)
	w.Store().Write("a.txt", []byte("1"))

	v1, err := w.Ledger().Snapshot("first")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	v2, err := w.Ledger().Snapshot("")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if v1.Sequence != 1 || v2.Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", v1.Sequence, v2.Sequence)
	}
	if v1.ID == v2.ID {
		t.Error("version ids collide")
	}
	if v1.Label != "first" {
		t.Errorf("Label = %q, want first", v1.Label)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	w := newTestWorkspace(t)
	w.Store().Write("a.txt", []byte("before"))

	v, err := w.Ledger().Snapshot("")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	w.Store().Write("a.txt", []byte("after"))

	got, err := w.Ledger().Get(v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Files["a.txt"].Content) != "before" {
		t.Errorf("snapshot mutated by later write: %q", got.Files["a.txt"].Content)
	}
}

func TestRestore(t *testing.T) {
	w := newTestWorkspace(t)
	store := w.Store()
	store.Write("keep.txt", []byte("v1"))
	store.Write("doomed.txt", []byte("x"))

	v, err := w.Ledger().Snapshot("baseline")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Diverge: mutate one, delete one, add one.
	store.Write("keep.txt", []byte("v2"))
	store.Delete("doomed.txt")
	store.Write("new.txt", []byte("y"))

	if err := w.Ledger().Restore(v.ID, RestoreOptions{}); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := store.Read("keep.txt")
	if err != nil || string(got.Content) != "v1" {
		t.Errorf("keep.txt = %q, %v; want v1", got.Content, err)
	}
	if _, err := store.Read("doomed.txt"); err != nil {
		t.Errorf("doomed.txt missing after restore: %v", err)
	}
	if _, err := store.Read("new.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("new.txt survived restore: %v", err)
	}
}

func TestRestoreDoesNotCreateVersion(t *testing.T) {
	w := newTestWorkspace(t)
	w.Store().Write("a.txt", []byte("1"))
	v, _ := w.Ledger().Snapshot("")
	w.Store().Write("a.txt", []byte("2"))

	before := w.Ledger().Count()
	if err := w.Ledger().Restore(v.ID, RestoreOptions{}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if after := w.Ledger().Count(); after != before {
		t.Errorf("Restore changed version count: %d -> %d", before, after)
	}
}

func TestRestoreUnknownVersion(t *testing.T) {
	w := newTestWorkspace(t)
	w.Store().Write("a.txt", []byte("1"))

	err := w.Ledger().Restore("no-such-version", RestoreOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// The live set must be untouched by a failed restore.
	got, readErr := w.Store().Read("a.txt")
	if readErr != nil || string(got.Content) != "1" {
		t.Errorf("live set changed after failed restore: %q, %v", got.Content, readErr)
	}
}

func TestRestoreFailIfBusy(t *testing.T) {
	w := newTestWorkspace(t)
	w.Store().Write("a.txt", []byte("1"))
	v, _ := w.Ledger().Snapshot("")

	w.BeginTask()
	defer w.EndTask()

	err := w.Ledger().Restore(v.ID, RestoreOptions{FailIfBusy: true})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("err = %v, want ErrConcurrencyConflict", err)
	}

	// Without the flag the restore proceeds even while busy.
	if err := w.Ledger().Restore(v.ID, RestoreOptions{}); err != nil {
		t.Fatalf("Restore without FailIfBusy: %v", err)
	}
}

func TestRestorePublishesOnlyDiff(t *testing.T) {
	m, _ := NewManager(nil)
	w, _ := m.Create("local-user", "p")
	store := w.Store()

	store.Write("same.txt", []byte("stable"))
	store.Write("changed.txt", []byte("old"))
	v, _ := w.Ledger().Snapshot("")
	store.Write("changed.txt", []byte("new"))
	store.Write("added.txt", []byte("x"))

	sub := m.Notifier().Subscribe(w.ID())
	defer sub.Close()

	if err := w.Ledger().Restore(v.ID, RestoreOptions{}); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	sig := <-sub.C()
	want := map[string]bool{"changed.txt": true, "added.txt": true}
	if len(sig.Paths) != len(want) {
		t.Fatalf("signal paths = %v, want changed.txt and added.txt only", sig.Paths)
	}
	for _, p := range sig.Paths {
		if !want[p] {
			t.Errorf("unexpected path %q in reload signal", p)
		}
	}
}

func TestLatest(t *testing.T) {
	w := newTestWorkspace(t)

	if _, err := w.Ledger().Latest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest on empty ledger err = %v, want ErrNotFound", err)
	}

	w.Store().Write("a.txt", []byte("1"))
	w.Ledger().Snapshot("one")
	v2, _ := w.Ledger().Snapshot("two")

	got, err := w.Ledger().Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != v2.ID {
		t.Errorf("Latest = %s, want %s", got.ID, v2.ID)
	}
}
