// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".appforge", "appforge.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	// File materialized with the defaults.
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, 12300, cfg.Studio.Port)
	assert.Equal(t, "demo", cfg.Studio.Generation.Backend)

	// Second load reads the same values back.
	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadFromReadsExistingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appforge.yaml")
	raw := `studio:
  port: 9000
  gin_mode: debug
  generation:
    backend: openai
    openai:
      base_url: http://localhost:11434/v1
      model: qwen2.5-coder
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Studio.Port)
	assert.Equal(t, "debug", cfg.Studio.GinMode)
	assert.Equal(t, "openai", cfg.Studio.Generation.Backend)
	assert.Equal(t, "qwen2.5-coder", cfg.Studio.Generation.OpenAI.Model)
}

func TestLoadFromRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("studio: [not a mapping"), 0644))

	_, err := LoadFrom(path)
	require.Error(t, err)
}
