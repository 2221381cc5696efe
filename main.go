// redcell - a terminal console for red-team exercises against Azure AI
// Foundry model deployments.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/redcell-tui/internal/cli"
	"github.com/jeranaias/redcell-tui/internal/ui/chat"
	"github.com/jeranaias/redcell-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with the cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdAsk:
		err = cli.HandleAsk(args)
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdAuth:
		err = cli.HandleAuth(args)
	case cli.CmdEndpoints:
		err = cli.HandleEndpoints(args)
	case cli.CmdAdmin:
		err = cli.HandleAdmin(args)
	case cli.CmdRedTeam:
		err = cli.HandleRedTeam(args)
	case cli.CmdRuns:
		err = cli.HandleRuns(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		err = cli.NewUsageError("redcell", "unknown command")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// runTUI signs in, resolves the starting endpoint, and hands control to the
// Bubble Tea program. The device-code prompt happens here, before the
// alternate screen takes over stdout.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("the console"); err != nil {
		return err
	}

	app, err := cli.NewApp(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.EnsureSignedIn(ctx); err != nil {
		return err
	}

	endpoint, err := app.DefaultEndpoint(args)
	if err != nil {
		return err
	}

	// Live config reload keeps the catalog current while the console runs.
	watcher, err := app.WatchConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config watch disabled: %v\n", err)
	} else if watcher != nil {
		defer watcher.Close()
	}

	model := chat.New(styles.NewTheme(), chat.Deps{
		Dispatcher: app.Dispatcher,
		Catalog:    app.Catalog,
		Session:    app.Auth,
		Endpoint:   endpoint,
		Version:    Version,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}
