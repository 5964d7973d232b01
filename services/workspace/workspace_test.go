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
	"time"
)

func TestManagerCreateAndGet(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	w, err := m.Create("alice", "shop")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.Owner() != "alice" || w.Meta().Name != "shop" {
		t.Errorf("meta = %+v", w.Meta())
	}
	if w.ID() == "" {
		t.Error("empty project id")
	}

	got, err := m.Get(w.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != w {
		t.Error("Get returned a different workspace")
	}
}

func TestManagerGetOwned(t *testing.T) {
	m, _ := NewManager(nil)
	w, _ := m.Create("alice", "shop")

	if _, err := m.GetOwned(w.ID(), "alice"); err != nil {
		t.Fatalf("owner blocked: %v", err)
	}

	// Someone else's project must read as not found, not forbidden.
	_, err := m.GetOwned(w.ID(), "bob")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestManagerList(t *testing.T) {
	m, _ := NewManager(nil)
	a1, _ := m.Create("alice", "one")
	time.Sleep(2 * time.Millisecond)
	a2, _ := m.Create("alice", "two")
	m.Create("bob", "other")

	got := m.List("alice")
	if len(got) != 2 {
		t.Fatalf("List(alice) = %d workspaces, want 2", len(got))
	}
	if got[0].ID() != a1.ID() || got[1].ID() != a2.ID() {
		t.Errorf("List order = %s, %s; want oldest first", got[0].Meta().Name, got[1].Meta().Name)
	}
}

func TestManagerDelete(t *testing.T) {
	m, _ := NewManager(nil)
	w, _ := m.Create("alice", "shop")
	sub := m.Notifier().Subscribe(w.ID())

	if err := m.Delete(w.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(w.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Error("subscription got a signal instead of close on project delete")
		}
	case <-time.After(time.Second):
		t.Fatal("reload subscription not closed on project delete")
	}

	if err := m.Delete(w.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestActiveTaskTracking(t *testing.T) {
	m, _ := NewManager(nil)
	w, _ := m.Create("alice", "shop")

	if got := w.ActiveTasks(); got != 0 {
		t.Fatalf("ActiveTasks = %d, want 0", got)
	}
	w.BeginTask()
	w.BeginTask()
	if got := w.ActiveTasks(); got != 2 {
		t.Errorf("ActiveTasks = %d, want 2", got)
	}
	w.EndTask()
	w.EndTask()
	if got := w.ActiveTasks(); got != 0 {
		t.Errorf("ActiveTasks = %d, want 0", got)
	}
}
