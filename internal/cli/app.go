// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared bootstrap for CLI command handlers.
//
// Every handler needs the same wiring: config, catalog, auth manager,
// dispatcher, admin client. App builds it once so the handlers stay small and
// the construction order lives in exactly one place.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/redcell-tui/internal/admin"
	"github.com/jeranaias/redcell-tui/internal/auth"
	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/config"
	"github.com/jeranaias/redcell-tui/internal/dispatch"
)

// ErrNoIdentity indicates sign-in is not configured. The message names the
// exact config keys so the fix is obvious.
var ErrNoIdentity = errors.New(
	"sign-in is not configured: set identity.tenant_id and identity.client_id in the config file (redcell config init)")

// App holds the wired components a command handler works with.
type App struct {
	Config     *config.Config
	ConfigPath string // config file actually loaded, "" when running on defaults
	Auth       *auth.Manager
	Catalog    *catalog.Catalog
	Dispatcher *dispatch.Dispatcher
	Admin      *admin.Client
}

// NewApp loads configuration and wires the domain components.
func NewApp(args Args) (*App, error) {
	var cfg *config.Config
	var cfgPath string
	var err error

	if args.Config != "" {
		cfg, err = config.LoadFromPath(args.Config)
		cfgPath = args.Config
	} else {
		cfg, err = config.Load()
		if path, pathErr := config.ConfigPathTOML(); pathErr == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				cfgPath = path
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cat, err := catalog.New(cfg.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	mgr := auth.NewManager(auth.Options{
		TenantID: cfg.Identity.TenantID,
		ClientID: cfg.Identity.ClientID,
	})

	dispatcher := dispatch.New(dispatch.Options{
		Catalog:           cat,
		Tokens:            mgr,
		SystemPrompt:      cfg.Chat.SystemPrompt,
		Timeout:           time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
		RequestsPerMinute: cfg.Chat.RequestsPerMinute,
	})

	adminClient := admin.NewClient(admin.Options{
		Tokens:         mgr,
		SubscriptionID: cfg.Identity.SubscriptionID,
	})

	return &App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Auth:       mgr,
		Catalog:    cat,
		Dispatcher: dispatcher,
		Admin:      adminClient,
	}, nil
}

// EnsureSignedIn establishes the session if none is active. The device-code
// prompt goes to stderr, keeping stdout clean for piped output.
func (a *App) EnsureSignedIn(ctx context.Context) error {
	if a.Auth.SignedIn() {
		return nil
	}
	if !a.Config.HasIdentity() {
		return ErrNoIdentity
	}
	return a.Auth.SignIn(ctx)
}

// DefaultEndpoint resolves the endpoint a command should use: the --endpoint
// flag, then the config default, then the first catalog entry.
func (a *App) DefaultEndpoint(args Args) (string, error) {
	if args.Endpoint != "" {
		return args.Endpoint, nil
	}
	if a.Config.Chat.DefaultEndpoint != "" {
		return a.Config.Chat.DefaultEndpoint, nil
	}
	names := a.Catalog.Names()
	if len(names) > 0 {
		return names[0], nil
	}
	return "", fmt.Errorf("no endpoints configured: add [[endpoints]] to the config file or run 'redcell endpoints refresh'")
}

// WatchConfig starts a catalog watcher on the loaded config file, so editing
// the file mid-session swaps the static endpoints without a restart. Returns
// nil when the app runs on built-in defaults (nothing to watch).
func (a *App) WatchConfig(ctx context.Context) (*catalog.Watcher, error) {
	if a.ConfigPath == "" {
		return nil, nil
	}
	w, err := catalog.NewWatcher(a.Catalog, a.ConfigPath, config.StaticEndpoints)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(ctx); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// DefaultProject resolves the project name for admin operations.
func (a *App) DefaultProject(p *ArgParser) (string, error) {
	if project := p.Flag("project"); project != "" {
		return project, nil
	}
	if a.Config.Admin.DefaultProject != "" {
		return a.Config.Admin.DefaultProject, nil
	}
	return "", NewUsageError("admin", "no project given: pass --project or set admin.default_project in the config")
}
