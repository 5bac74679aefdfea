// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/storage"
	"github.com/jeranaias/qbot-tui/internal/ui/components"
)

type authFlags struct {
	name          string
	email         string
	passwordStdin bool
}

// =============================================================================
// LOGIN
// =============================================================================

func (a *App) newLoginCmd() *cobra.Command {
	var f authFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Example: "  qbot login --email ada@example.com\n" +
			"  echo \"$PASSWORD\" | qbot login --email ada@example.com --password-stdin",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(func(e *env) error {
				req, err := a.collectAuth(components.AuthLogin, f)
				if err != nil {
					return err
				}
				sess, err := a.login(cmd.Context(), e, req.Email, req.Password)
				if err != nil {
					return err
				}
				return a.printSignedIn(sess, false)
			})
		},
	}
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "account email")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// login signs in against the server and stores the session.
func (a *App) login(ctx context.Context, e *env, email, password string) (session.Session, error) {
	ctx, cancel := e.requestContext(ctx)
	defer cancel()

	resp, err := e.client.Login(ctx, email, password)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return session.Session{}, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return session.Session{}, err
	}
	if err := e.store.Login(resp.Credentials()); err != nil {
		return session.Session{}, err
	}

	sess, _ := e.store.Current()
	e.log.Info("login completed", zap.String("email", sess.UserEmail))
	return sess, nil
}

// =============================================================================
// REGISTER
// =============================================================================

func (a *App) newRegisterCmd() *cobra.Command {
	var f authFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(func(e *env) error {
				req, err := a.collectAuth(components.AuthRegister, f)
				if err != nil {
					return err
				}

				ctx, cancel := e.requestContext(cmd.Context())
				_, err = e.client.Register(ctx, req.Name, req.Email, req.Password)
				cancel()
				if err != nil {
					var apiErr *api.APIError
					if errors.As(err, &apiErr) && apiErr.Status < 500 {
						return fmt.Errorf("%w: %w", ErrAuthFailed, err)
					}
					return err
				}

				sess, err := a.login(cmd.Context(), e, req.Email, req.Password)
				if err != nil {
					return NewCommandError("register", "account created but sign-in failed; run 'qbot login'", err)
				}
				return a.printSignedIn(sess, true)
			})
		},
	}
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "account email")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// collectAuth fills the request from flags and prompts, then validates it.
func (a *App) collectAuth(mode components.AuthMode, f authFlags) (components.AuthRequest, error) {
	req := components.AuthRequest{Mode: mode, Name: f.name, Email: f.email}

	var err error
	if mode == components.AuthRegister && req.Name == "" {
		if req.Name, err = a.promptInput("Name: "); err != nil {
			return req, err
		}
	}
	if req.Email == "" {
		if req.Email, err = a.promptInput("Email: "); err != nil {
			return req, err
		}
	}
	if req.Password, err = a.promptPassword("Password: ", f.passwordStdin); err != nil {
		return req, err
	}

	req = components.AuthRequest{
		Mode:     req.Mode,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	}
	if problem := req.Validate(); problem != "" {
		return req, &ValidationError{Field: "credentials", Reason: problem}
	}
	return req, nil
}

func (a *App) printSignedIn(sess session.Session, registered bool) error {
	if a.jsonOut {
		return a.printJSON(AuthData{
			User:      UserData{Name: sess.UserName, Email: sess.UserEmail},
			ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	if registered {
		fmt.Fprintln(a.Out, SuccessStyle.Render("Account created"))
	}
	fmt.Fprintf(a.Out, "Signed in as %s\n", ValueStyle.Render(sess.User().DisplayName()))
	fmt.Fprintln(a.Out, DimStyle.Render("Session expires "+formatExpiry(sess.ExpiresAt, time.Now())))
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

func (a *App) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(func(e *env) error {
				_, hadSession := e.store.Current()
				if err := e.store.Logout(session.ReasonUser); err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(map[string]bool{"signed_out": hadSession})
				}
				if !hadSession {
					fmt.Fprintln(a.Out, DimStyle.Render("Not signed in"))
					return nil
				}
				fmt.Fprintln(a.Out, SuccessStyle.Render("Logged out successfully"))
				return nil
			})
		},
	}
}

// =============================================================================
// STATUS
// =============================================================================

func (a *App) newStatusCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server, storage and session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(func(e *env) error {
				return a.status(cmd.Context(), e, check)
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "verify the session against the server")
	return cmd
}

func (a *App) status(ctx context.Context, e *env, check bool) error {
	now := time.Now()
	data := StatusData{
		Server:  e.client.BaseURL(),
		Storage: e.cfg.Storage.Backend,
	}
	if p, ok := e.kv.(storage.Pather); ok {
		data.StoragePath = p.Path()
	}

	sess, err := e.requireSession()
	if err == nil {
		data.SignedIn = true
		data.User = &UserData{Name: sess.UserName, Email: sess.UserEmail}
		data.ExpiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
		data.ExpiresIn = formatExpiry(sess.ExpiresAt, now)
	}

	if check && data.SignedIn {
		rctx, cancel := e.requestContext(ctx)
		_, herr := e.client.History(rctx)
		cancel()
		reachable := herr == nil || !errors.Is(herr, api.ErrNetwork)
		data.Reachable = &reachable
		if errors.Is(herr, api.ErrUnauthorized) {
			_ = e.store.Logout(session.ReasonUnauthorized)
			data.SignedIn, data.User, data.ExpiresAt, data.ExpiresIn = false, nil, "", ""
		}
	}

	if a.jsonOut {
		return a.printJSON(data)
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("QBot status"))
	a.printField("Server", data.Server)
	storageLine := data.Storage
	if data.StoragePath != "" {
		storageLine += " (" + data.StoragePath + ")"
	}
	a.printField("Storage", storageLine)
	if data.Reachable != nil {
		a.printField("Reachable", RenderStatus(*data.Reachable, "yes", "no"))
	}
	a.printField("Signed in", RenderStatus(data.SignedIn, "yes", "no"))
	if data.User != nil {
		a.printField("User", sess.User().DisplayName())
		a.printField("Expires", data.ExpiresIn)
	}
	return nil
}
