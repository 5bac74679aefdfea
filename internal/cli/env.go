// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/logging"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/storage"
	"github.com/jeranaias/qbot-tui/internal/ui/components"
)

// =============================================================================
// ENVIRONMENT
// =============================================================================

// env is the set of services a command runs against.
type env struct {
	cfg    *config.Config
	base   *zap.Logger
	log    *zap.Logger
	kv     storage.Store
	store  *session.Store
	client *api.Client
	chat   *chat.Controller
}

// loadConfig reads the config file named by --config, or the default
// locations, and applies --base-url.
func (a *App) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Path = logging.Stderr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// openEnv builds the services and restores the stored session, if any.
func (a *App) openEnv() (*env, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	kv, err := storage.Open(cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	store := session.NewStore(kv, session.ConfigFrom(cfg), logger)
	store.Resume()

	client := api.NewFromConfig(cfg, store, logger).
		WithUserAgent("qbot/" + a.Build.Version)

	e := &env{
		cfg:    cfg,
		base:   logger,
		log:    logger.Named("cli"),
		kv:     kv,
		store:  store,
		client: client,
		chat:   chat.NewController(client, store, logger),
	}
	e.log.Debug("environment ready",
		zap.String("command", a.command),
		zap.String("server", client.BaseURL()),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("signed_in", store.IsAuthenticated()))
	return e, nil
}

// Close stops the session timer and releases storage.
func (e *env) Close() error {
	err := e.store.Close()
	if kvErr := e.kv.Close(); kvErr != nil && !errors.Is(kvErr, storage.ErrClosed) {
		err = errors.Join(err, kvErr)
	}
	_ = e.log.Sync()
	return err
}

// requireSession fails with ErrNotSignedIn unless a live session is stored.
func (e *env) requireSession() (session.Session, error) {
	sess, ok := e.store.Current()
	if !ok || !e.store.IsAuthenticated() {
		return session.Session{}, ErrNotSignedIn
	}
	return sess, nil
}

// requestContext bounds a single command's network work.
func (e *env) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.API.Timeout()+5*time.Second)
}

// markdown returns the answer renderer configured for command output.
func (e *env) markdown(plain bool) *components.Markdown {
	return components.NewMarkdown(e.cfg.UI.Markdown && !plain, e.cfg.UI.Theme)
}

// withEnv opens the environment, runs fn and closes it.
func (a *App) withEnv(fn func(e *env) error) error {
	e, err := a.openEnv()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			e.log.Warn("failed to close environment", zap.Error(cerr))
		}
	}()
	return fn(e)
}
