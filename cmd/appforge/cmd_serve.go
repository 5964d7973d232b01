// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AppForgeLocal/cmd/appforge/config"
	"github.com/AleutianAI/AppForgeLocal/services/studio"
)

var (
	servePort     int    // overrides studio.port from the config file
	serveDataDir  string // overrides studio.data_dir
	serveInMemory bool   // discard all state on exit
)

// serveCmd starts the studio HTTP server in the foreground.
//
// # Description
//
// Runs the full workspace pipeline: project CRUD, file store, version
// ledger, generation tasks, preview with live reload, and deployment
// simulation. Blocks until the process is terminated.
//
// # Environment Variables
//
//   - APPFORGE_OPENAI_API_KEY: model API key; wins over the config file
//     so the key never has to live on disk
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector; wins over
//     the config file
//
// # Examples
//
//	appforge serve                    # config-file settings
//	appforge serve --port 9000        # custom port
//	appforge serve --in-memory        # throwaway sandbox, no disk state
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AppForge studio server",
	Long: `Starts the studio HTTP server.

The server reads ~/.appforge/appforge.yaml; flags override the file.

Examples:
  appforge serve                # serve on the configured port
  appforge serve --port 9000    # override the port
  appforge serve --in-memory    # no persistence, useful for demos`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "workspace database directory (overrides config)")
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false, "keep all state in memory, nothing on disk")
	rootCmd.AddCommand(serveCmd)
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := config.Global.Studio

	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}
	if serveInMemory {
		cfg.InMemory = true
	}
	if key := os.Getenv("APPFORGE_OPENAI_API_KEY"); key != "" {
		cfg.Generation.OpenAI.APIKey = key
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.OTelEndpoint = endpoint
	}

	// Open source build: no-op auth and audit. Enterprise builds swap in
	// their ServiceOptions here.
	svc, err := studio.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create studio service: %w", err)
	}
	return svc.Run()
}
