// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/qbot-tui/internal/config"
)

func (a *App) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(cfg)
				}
				for _, key := range config.GetAllKeys() {
					v, err := cfg.Get(key)
					if err != nil {
						continue
					}
					fmt.Fprintf(a.Out, "%s = %v\n", LabelStyle.Width(28).Render(key), v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value, e.g. api.base_url",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return fmt.Errorf("%w: %w", NewNotFoundError("config key", args[0]), err)
				}
				if a.jsonOut {
					return a.printJSON(ConfigValueData{Key: args[0], Value: v})
				}
				fmt.Fprintln(a.Out, v)
				return nil
			},
		},
		&cobra.Command{
			Use:     "set <key> <value>",
			Short:   "Change one value and save the config file",
			Example: "  qbot config set api.base_url http://127.0.0.1:8000\n  qbot config set storage.backend sqlite",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.configSet(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config, storage and log file locations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.configPaths()
			},
		},
	)
	return cmd
}

// configSet updates a key in the config file. Environment overrides are
// not written back.
func (a *App) configSet(key, value string) error {
	path, err := a.writablePath()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}

	if _, err := cfg.Get(key); err != nil {
		return fmt.Errorf("%w: %w", NewNotFoundError("config key", key), err)
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return NewValidationError(key, value, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	saved, _ := cfg.Get(key)
	if a.jsonOut {
		return a.printJSON(ConfigValueData{Key: key, Value: saved})
	}
	fmt.Fprintf(a.Out, "%s %s = %v\n", SuccessStyle.Render("Saved"), key, saved)
	fmt.Fprintln(a.Out, DimStyle.Render(path))
	return nil
}

// writablePath is --config when given, else the default TOML file.
func (a *App) writablePath() (string, error) {
	if a.configPath != "" {
		switch strings.ToLower(filepath.Ext(a.configPath)) {
		case ".json", ".yaml", ".yml":
			return "", NewValidationError("--config", a.configPath, "config set only writes TOML files")
		}
		return a.configPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return path, nil
}

func (a *App) configPaths() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	configPath, err := a.writablePath()
	if err != nil {
		return err
	}
	storagePath, err := cfg.StoragePath()
	if err != nil {
		return err
	}
	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == "memory" {
		storagePath = ""
	}

	if a.jsonOut {
		return a.printJSON(map[string]string{
			"config":  configPath,
			"storage": storagePath,
			"log":     logPath,
		})
	}
	exists := func(p string) string {
		if _, err := os.Stat(p); err != nil {
			return p + DimStyle.Render(" (not created yet)")
		}
		return p
	}
	a.printField("Config", exists(configPath))
	if storagePath != "" {
		a.printField("Storage", exists(storagePath))
	} else {
		a.printField("Storage", "in memory")
	}
	a.printField("Log", logPath)
	return nil
}
