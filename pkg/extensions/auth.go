// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Implementations should wrap this error with additional context:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication. Every workspace operation is scoped to an AuthInfo; the
// core never issues or validates credentials itself.
//
// Required fields (always populated):
//   - UserID: unique identifier for the caller
//
// Optional fields (may be empty):
//   - Email, Roles, Metadata
type AuthInfo struct {
	// UserID uniquely identifies the caller. Workspace ownership is
	// keyed on this value.
	UserID string

	// Email is the caller's email address, if known.
	Email string

	// Roles lists the caller's roles or groups.
	Roles []string

	// Metadata holds arbitrary provider-specific claims.
	Metadata map[string]any
}

// AuthProvider validates bearer tokens and resolves caller identity.
//
// The open source build ships NopAuthProvider, which accepts every token
// and reports a fixed local user. Enterprise deployments substitute a
// provider backed by a real identity system; the rest of the service is
// unaware which it holds.
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	//
	// Returns an error wrapping ErrUnauthorized when the token is
	// invalid, expired, or revoked.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider authenticates every request as a fixed local user.
// This keeps single-user local deployments working with zero auth
// infrastructure.
type NopAuthProvider struct{}

// Validate always succeeds, reporting the local user with admin role.
func (NopAuthProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

var _ AuthProvider = (*NopAuthProvider)(nil)
