// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up
// in filenames, URLs, or subprocess calls. Using these validators
// prevents injection attacks (command injection, path traversal, header
// injection via download filenames).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches valid project names.
// Allows: letters, digits, then dots, hyphens, underscores, spaces.
// Max length: 64 characters.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\- ]{0,63}$`)

// ValidateProjectName validates a user-supplied project name.
//
// Valid names:
//   - 1-64 characters
//   - Start with a letter or digit
//   - Letters, digits, dots, hyphens, underscores, spaces after that
//
// The name appears in export filenames and deployment URLs, so path
// separators and control characters are rejected outright.
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateProjectName(name); err != nil {
//	    return nil, fmt.Errorf("invalid project name: %w", err)
//	}
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid project name: %q (must be 1-64 chars: letters, digits, dots, hyphens, underscores, spaces; must start alphanumeric)", name)
	}

	return nil
}

// SanitizeProjectName normalizes and validates a project name.
// Returns the trimmed name if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeName, err := validation.SanitizeProjectName(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeProjectName(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if err := ValidateProjectName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
