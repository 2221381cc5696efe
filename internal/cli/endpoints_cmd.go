// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// endpoints_cmd.go - Endpoint catalog commands for the redcell CLI.
//
// Command: endpoints
// Short:   List or refresh the endpoint catalog
//
// Examples:
//   redcell endpoints                       List catalog endpoints
//   redcell endpoints refresh               Discover and register deployments
//   redcell endpoints refresh --project p   Discover from a specific project

package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jeranaias/redcell-tui/internal/admin"
)

// HandleEndpoints handles the "endpoints" command.
func HandleEndpoints(args Args) error {
	parser := NewArgParser(args.Raw)

	app, err := NewApp(args)
	if err != nil {
		return err
	}

	switch parser.Subcommand() {
	case "", "list":
		return handleEndpointsList(app)
	case "refresh", "discover":
		return handleEndpointsRefresh(app, parser, args)
	default:
		return NewUsageError("endpoints", fmt.Sprintf("unknown subcommand %q", parser.Subcommand()))
	}
}

func handleEndpointsList(app *App) error {
	list := app.Catalog.List()
	if len(list) == 0 {
		fmt.Println(DimStyle.Render("No endpoints configured. Add [[endpoints]] to the config file or run 'redcell endpoints refresh'."))
		return nil
	}

	fmt.Println(TitleStyle.Render("Endpoint Catalog"))
	for _, d := range list {
		fmt.Printf("%s %s\n", RenderLabel("Name:"), ValueStyle.Render(d.Name))
		if d.Provider != "" {
			fmt.Printf("%s %s\n", RenderLabel("Provider:"), ValueStyle.Render(d.Provider))
		}
		if d.Model != "" {
			fmt.Printf("%s %s\n", RenderLabel("Model:"), ValueStyle.Render(d.Model))
		}
		fmt.Printf("%s %s\n", RenderLabel("Base URL:"), DimStyle.Render(d.BaseURL))
		fmt.Println()
	}
	fmt.Printf("%d endpoints\n", len(list))
	return nil
}

func handleEndpointsRefresh(app *App, parser *ArgParser, args Args) error {
	project, err := app.DefaultProject(parser)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := app.EnsureSignedIn(ctx); err != nil {
		return err
	}

	list, err := app.Admin.ListDeployments(ctx, project)
	if err != nil {
		return err
	}
	if list.Status != http.StatusOK {
		return fmt.Errorf("deployment discovery for %s returned HTTP %d (admin permissions required)",
			project, list.Status)
	}

	discovered := admin.ToDescriptors(project, list.Deployments)
	kept := app.Catalog.RegisterDiscovered(discovered)

	fmt.Printf("%s Discovered %d deployments from %s (%d registered)\n",
		SuccessStyle.Render("[OK]"), len(list.Deployments), project, kept)

	if !args.Quiet {
		return handleEndpointsList(app)
	}
	return nil
}
