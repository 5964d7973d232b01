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
)

// ReloadSignal tells a preview client that project files changed and it
// should refresh. Paths lists the changed files as a hint; consumers must
// tolerate an empty list and re-fetch whatever they need.
type ReloadSignal struct {
	ProjectID string    `json:"project_id"`
	Paths     []string  `json:"paths,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReloadSubscription is one consumer's handle on a project's reload
// stream. Signals are delivered at-most-once per change burst: if the
// consumer lags, consecutive signals coalesce into one carrying the union
// of changed paths. Receiving is never load-bearing for correctness; a
// consumer that misses a signal only refreshes later.
type ReloadSubscription struct {
	projectID string
	ch        chan ReloadSignal

	mu     sync.Mutex
	closed bool
	onStop func()
}

// C returns the signal channel. It is closed when the subscription is
// closed or the project is deleted.
func (s *ReloadSubscription) C() <-chan ReloadSignal {
	return s.ch
}

// Close detaches the subscription and closes its channel. Safe to call
// more than once.
func (s *ReloadSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.onStop != nil {
		s.onStop()
	}
	close(s.ch)
}

// deliver pushes a signal without blocking. A full buffer means the
// consumer has an undelivered signal already; the two are merged so the
// consumer still sees every changed path exactly once.
func (s *ReloadSubscription) deliver(sig ReloadSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- sig:
		return
	default:
	}
	select {
	case pending := <-s.ch:
		sig.Paths = mergePaths(pending.Paths, sig.Paths)
	default:
	}
	select {
	case s.ch <- sig:
	default:
	}
}

// ReloadNotifier fans file-change signals out to preview subscribers,
// keyed by project. Publishing never blocks the writer: the file store
// calls Publish while holding the workspace lock, so a slow WebSocket
// consumer must not be able to stall file writes.
type ReloadNotifier struct {
	mu   sync.Mutex
	subs map[string]map[*ReloadSubscription]struct{}
}

// NewReloadNotifier creates an empty notifier.
func NewReloadNotifier() *ReloadNotifier {
	return &ReloadNotifier{
		subs: make(map[string]map[*ReloadSubscription]struct{}),
	}
}

// Subscribe registers a consumer for a project's reload signals. Multiple
// independent subscriptions per project are supported; each receives
// every published signal (coalesced under lag). The caller must Close the
// subscription when done.
func (n *ReloadNotifier) Subscribe(projectID string) *ReloadSubscription {
	sub := &ReloadSubscription{
		projectID: projectID,
		ch:        make(chan ReloadSignal, 1),
	}
	sub.onStop = func() { n.remove(sub) }

	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[projectID]
	if !ok {
		set = make(map[*ReloadSubscription]struct{})
		n.subs[projectID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish emits one reload signal to all current subscribers of the
// project. With no subscribers it is a no-op.
func (n *ReloadNotifier) Publish(projectID string, paths []string) {
	sig := ReloadSignal{
		ProjectID: projectID,
		Paths:     paths,
		Timestamp: time.Now().UTC(),
	}

	n.mu.Lock()
	targets := make([]*ReloadSubscription, 0, len(n.subs[projectID]))
	for sub := range n.subs[projectID] {
		targets = append(targets, sub)
	}
	n.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(sig)
	}
}

// CloseProject terminates every subscription for a project. Used when the
// project is deleted so preview clients observe a closed stream instead
// of silence.
func (n *ReloadNotifier) CloseProject(projectID string) {
	n.mu.Lock()
	targets := make([]*ReloadSubscription, 0, len(n.subs[projectID]))
	for sub := range n.subs[projectID] {
		targets = append(targets, sub)
	}
	delete(n.subs, projectID)
	n.mu.Unlock()

	for _, sub := range targets {
		sub.Close()
	}
}

// SubscriberCount reports how many subscriptions a project currently has.
func (n *ReloadNotifier) SubscriberCount(projectID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[projectID])
}

func (n *ReloadNotifier) remove(sub *ReloadSubscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[sub.projectID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(n.subs, sub.projectID)
	}
}

func mergePaths(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}
