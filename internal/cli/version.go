// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.Build
			if a.jsonOut {
				return a.printJSON(VersionData{
					Version:   b.Version,
					Commit:    b.Commit,
					BuildDate: b.Date,
					GoVersion: runtime.Version(),
					Platform:  runtime.GOOS + "/" + runtime.GOARCH,
				})
			}
			fmt.Fprintf(a.Out, "qbot version %s (commit: %s, built: %s)\n", b.Version, b.Commit, b.Date)
			return nil
		},
	}
}
