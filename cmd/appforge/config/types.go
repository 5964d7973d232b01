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
	"github.com/AleutianAI/AppForgeLocal/services/studio"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
)

// AppForgeConfig is the on-disk shape of ~/.appforge/appforge.yaml.
type AppForgeConfig struct {
	// Studio configures the studio HTTP service. Fields left at their
	// zero value fall back to service defaults at startup.
	Studio studio.Config `yaml:"studio"`
}

// DefaultConfig is what a first run writes to disk. The demo backend is
// the default so the service works before any model is configured; the
// openai section is pre-filled with an Ollama-style local endpoint to
// make switching a one-line edit.
func DefaultConfig() AppForgeConfig {
	return AppForgeConfig{
		Studio: studio.Config{
			Port:    12300,
			DataDir: "~/.appforge/data",
			LogDir:  "~/.appforge/logs",
			GinMode: "release",
			Generation: studio.GenerationConfig{
				Backend: "demo",
				OpenAI: generation.OpenAIConfig{
					BaseURL: "http://localhost:11434/v1",
					Model:   "",
				},
			},
		},
	}
}
