// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the studio
// service: generation task lifecycle, workspace mutation counters, and
// progress-stream instrumentation.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "appforge"

// StudioMetrics holds all Prometheus metrics for the studio service.
// Initialize once at startup via InitMetrics().
type StudioMetrics struct {
	// TasksTotal counts generation tasks by terminal status.
	// Labels: status (completed, failed, cancelled)
	TasksTotal *prometheus.CounterVec

	// TaskDurationSeconds measures queue-to-terminal task duration.
	// Labels: status
	TaskDurationSeconds *prometheus.HistogramVec

	// EditsAppliedTotal counts generation edits applied to workspaces.
	EditsAppliedTotal prometheus.Counter

	// FileMutationsTotal counts direct file writes and deletes.
	// Labels: operation (write, delete)
	FileMutationsTotal *prometheus.CounterVec

	// SnapshotsTotal counts ledger snapshots.
	// Labels: trigger (manual, auto)
	SnapshotsTotal *prometheus.CounterVec

	// RestoresTotal counts version restores by outcome.
	// Labels: status (success, conflict, not_found, error)
	RestoresTotal *prometheus.CounterVec

	// ActiveStreams tracks open progress and reload streams.
	// Labels: kind (task_sse, task_ws, reload_ws)
	ActiveStreams *prometheus.GaugeVec

	// StreamDurationSeconds measures how long progress streams stay open.
	// Labels: kind
	StreamDurationSeconds *prometheus.HistogramVec

	// DeploysTotal counts deployments by terminal status.
	// Labels: status (succeeded, failed)
	DeploysTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *StudioMetrics

// InitMetrics creates and registers all studio metrics. Call once at
// startup; promauto panics on duplicate registration.
func InitMetrics() *StudioMetrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}
	DefaultMetrics = &StudioMetrics{
		TasksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "tasks_total",
			Help:      "Generation tasks by terminal status.",
		}, []string{"status"}),

		TaskDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "task_duration_seconds",
			Help:      "Duration from task creation to terminal state.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),

		EditsAppliedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "edits_applied_total",
			Help:      "File edits applied by generation tasks.",
		}),

		FileMutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workspace",
			Name:      "file_mutations_total",
			Help:      "Direct file writes and deletes via the API.",
		}, []string{"operation"}),

		SnapshotsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workspace",
			Name:      "snapshots_total",
			Help:      "Ledger snapshots by trigger.",
		}, []string{"trigger"}),

		RestoresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workspace",
			Name:      "restores_total",
			Help:      "Version restores by outcome.",
		}, []string{"status"}),

		ActiveStreams: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "streaming",
			Name:      "active_streams",
			Help:      "Currently open progress and reload streams.",
		}, []string{"kind"}),

		StreamDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "streaming",
			Name:      "stream_duration_seconds",
			Help:      "How long progress and reload streams stay open.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"kind"}),

		DeploysTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "deploy",
			Name:      "deploys_total",
			Help:      "Deployments by terminal status.",
		}, []string{"status"}),
	}
	return DefaultMetrics
}

// RecordTaskTerminal records one task reaching a terminal state.
func RecordTaskTerminal(status string, durationSeconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.TasksTotal.WithLabelValues(status).Inc()
	DefaultMetrics.TaskDurationSeconds.WithLabelValues(status).Observe(durationSeconds)
}

// RecordFileMutation records one direct write or delete.
func RecordFileMutation(operation string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.FileMutationsTotal.WithLabelValues(operation).Inc()
}

// RecordSnapshot records one ledger snapshot.
func RecordSnapshot(trigger string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.SnapshotsTotal.WithLabelValues(trigger).Inc()
}

// RecordRestore records one restore outcome.
func RecordRestore(status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.RestoresTotal.WithLabelValues(status).Inc()
}

// StreamOpened marks a progress or reload stream as open. The returned
// function closes it and observes the stream duration.
func StreamOpened(kind string) func() {
	if DefaultMetrics == nil {
		return func() {}
	}
	DefaultMetrics.ActiveStreams.WithLabelValues(kind).Inc()
	timer := prometheus.NewTimer(DefaultMetrics.StreamDurationSeconds.WithLabelValues(kind))
	return func() {
		DefaultMetrics.ActiveStreams.WithLabelValues(kind).Dec()
		timer.ObserveDuration()
	}
}

// RecordDeploy records one deployment outcome.
func RecordDeploy(status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.DeploysTotal.WithLabelValues(status).Inc()
}

// RecordEditApplied records one generation edit.
func RecordEditApplied() {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.EditsAppliedTotal.Inc()
}
