// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command appforge is the AppForgeLocal CLI.
//
// The CLI reads its configuration from ~/.appforge/appforge.yaml, which
// is created with defaults on first run. Every setting there can also be
// overridden with a flag or environment variable.
//
// # Usage
//
//	appforge serve              # start the studio server
//	appforge serve --port 9000  # override the configured port
//	appforge version            # print the build version
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AppForgeLocal/cmd/appforge/config"
)

var rootCmd = &cobra.Command{
	Use:   "appforge",
	Short: "AppForge: prompt-to-app workspace server",
	Long: `AppForge turns prompts into editable, versioned web app workspaces.

The studio server owns project files, version history, generation tasks,
live preview, and deployment simulation. Point a frontend (or curl) at
its HTTP API.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return config.Load()
	}
}
