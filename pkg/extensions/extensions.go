// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the dependency-injection seams that let
// enterprise deployments substitute real implementations of authentication
// and audit logging without modifying the core service.
//
// The open source build uses the no-op defaults from DefaultOptions():
// every caller is "local-user" and audit events are discarded. The studio
// service receives a ServiceOptions at construction and never inspects
// which implementation it holds.
package extensions

// ServiceOptions carries the pluggable collaborators for a service
// instance. All fields must be non-nil; use DefaultOptions() as the base
// and override selectively.
type ServiceOptions struct {
	// AuthProvider resolves bearer tokens to caller identity.
	AuthProvider AuthProvider

	// AuditLogger receives security-relevant events.
	AuditLogger AuditLogger
}

// DefaultOptions returns no-op implementations suitable for local,
// single-user deployments.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: NopAuthProvider{},
		AuditLogger:  NopAuditLogger{},
	}
}
