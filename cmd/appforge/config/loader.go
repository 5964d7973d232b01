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
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global AppForgeConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable. A missing
// config file is created with defaults on first run.
func Load() error {
	var err error
	once.Do(func() {
		var path string
		path, err = defaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".appforge", "appforge.yaml"), nil
}

// LoadFrom reads the config at path, creating it with defaults when it
// does not exist yet.
func LoadFrom(path string) (AppForgeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return AppForgeConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AppForgeConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	var cfg AppForgeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppForgeConfig{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
