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
	"path"
	"strings"
)

// NormalizePath canonicalizes a workspace-relative file path.
//
// # Description
//
//	Workspace paths are forward-slash separated, case-sensitive, and
//	always relative to the project root. Leading slashes are stripped so
//	"/src/app.py" and "src/app.py" address the same file. Anything that
//	would escape the project root is rejected.
//
// # Inputs
//   - p: the caller-supplied path.
//
// # Outputs
//   - The canonical form, or a *PathError wrapping ErrInvalidPath.
func NormalizePath(p string) (string, error) {
	if strings.ContainsAny(p, "\\\x00") {
		return "", &PathError{Path: p, Reason: "illegal character"}
	}
	trimmed := strings.TrimLeft(p, "/")
	if trimmed == "" {
		return "", &PathError{Path: p, Reason: "empty"}
	}
	clean := path.Clean(trimmed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &PathError{Path: p, Reason: "escapes project root"}
	}
	return clean, nil
}
