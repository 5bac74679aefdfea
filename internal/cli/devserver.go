// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jeranaias/qbot-tui/internal/apitest"
	"github.com/jeranaias/qbot-tui/internal/logging"
)

// newDevServerCmd runs the in-memory fake API for trying the client
// without a real backend.
func (a *App) newDevServerCmd() *cobra.Command {
	var (
		addr  string
		users []string
	)
	cmd := &cobra.Command{
		Use:    "dev-server",
		Short:  "Run an in-memory QBot API for local testing",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg.Logging.Path = logging.Stderr
			logger, err := logging.New(cfg)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrConfig, err)
			}
			defer func() { _ = logger.Sync() }()

			gin.SetMode(gin.ReleaseMode)
			srv := apitest.New(logger.Named("devserver"))
			for _, spec := range users {
				name, email, password, err := parseUserSpec(spec)
				if err != nil {
					return err
				}
				if _, err := srv.AddUser(name, email, password); err != nil {
					return fmt.Errorf("failed to add %s: %w", email, err)
				}
			}

			fmt.Fprintf(a.Err, "QBot dev server listening on http://%s\n", addr)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringArrayVar(&users, "user", nil, "pre-create an account as name:email:password (repeatable)")
	return cmd
}

func parseUserSpec(spec string) (name, email, password string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", NewValidationErrorWithExample("--user", spec, "expected name:email:password", "Ada:ada@example.com:secret")
	}
	return parts[0], parts[1], parts[2], nil
}
