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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AppForgeLocal/services/studio/datatypes"
)

// SSEWriter writes hash-chained StreamEvents in SSE wire format
// (event: type\ndata: json\n\n). Safe for concurrent use; each event is
// flushed immediately so clients see progress without buffering delays.
type SSEWriter interface {
	// WriteEvent assigns ID, CreatedAt, Hash, and PrevHash, serializes
	// the event, writes it, and flushes.
	WriteEvent(eventType string, data any) error
}

// sseWriter is the production SSEWriter bound to an http.ResponseWriter.
type sseWriter struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	prevHash string
}

// NewSSEWriter prepares the response for event streaming and returns a
// writer. Returns an error if the ResponseWriter cannot flush.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) WriteEvent(eventType string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := datatypes.StreamEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now().UnixMilli(),
		PrevHash:  s.prevHash,
	}
	hash, err := eventHash(event)
	if err != nil {
		return err
	}
	event.Hash = hash

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	s.flusher.Flush()
	s.prevHash = hash
	return nil
}

// eventHash hashes the event's type, payload, timestamp, and chain
// predecessor. The Hash field itself is excluded.
func eventHash(event datatypes.StreamEvent) (string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return "", fmt.Errorf("marshal event data for hashing: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", event.Type, data, event.CreatedAt, event.PrevHash)
	return hex.EncodeToString(h.Sum(nil)), nil
}
