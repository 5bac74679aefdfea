// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for qbot.
//
// TOML, JSON and YAML files are supported, with defaults, environment
// overrides and validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: server URL, timeout and rate limit
//   - SessionConfig: expiry poll period and fallback token lifetime
//   - StorageConfig: session persistence backend (file, sqlite, memory)
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (QBOT_*, including those from .env files)
//   - ~/.qbot/config.toml
//   - ~/.qbot/config.json
//   - ~/.qbot/config.yaml
//   - Built-in defaults
//
// The directory can be moved with QBOT_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.NewClient(cfg.API.BaseURL).WithTimeout(cfg.API.Timeout())
package config
