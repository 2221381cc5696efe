// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// admin_cmd.go - Management-plane commands for the redcell CLI.
//
// Command: admin
// Short:   List projects and deployments through the Azure management plane
//
// Examples:
//   redcell admin projects                List AI Foundry projects
//   redcell admin deployments             List the default project's deployments
//   redcell admin deployments --project p List a specific project's deployments
//   redcell admin probe                   Check admin capability

package cli

import (
	"context"
	"fmt"
	"net/http"
)

// HandleAdmin handles the "admin" command.
func HandleAdmin(args Args) error {
	parser := NewArgParser(args.Raw)

	app, err := NewApp(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := app.EnsureSignedIn(ctx); err != nil {
		return err
	}

	switch parser.Subcommand() {
	case "projects":
		return handleAdminProjects(ctx, app)
	case "deployments", "":
		return handleAdminDeployments(ctx, app, parser)
	case "probe":
		return handleAdminProbe(ctx, app, parser)
	default:
		return NewUsageError("admin", fmt.Sprintf("unknown subcommand %q", parser.Subcommand()))
	}
}

func handleAdminProjects(ctx context.Context, app *App) error {
	if app.Config.Identity.SubscriptionID == "" {
		return NewUsageError("admin", "identity.subscription_id is not configured")
	}

	list, err := app.Admin.ListProjects(ctx)
	if err != nil {
		return err
	}
	if list.Status != http.StatusOK {
		fmt.Printf("%s Project listing returned HTTP %d (admin permissions required).\n",
			WarningStyle.Render("[WARN]"), list.Status)
		return nil
	}

	projects := list.Projects
	if len(projects) == 0 {
		fmt.Println(DimStyle.Render("No AI Foundry projects found in the subscription."))
		return nil
	}

	fmt.Println(TitleStyle.Render("AI Foundry Projects"))
	for _, p := range projects {
		fmt.Printf("%s %s\n", RenderLabel("Name:"), ValueStyle.Render(p.Name))
		fmt.Printf("%s %s\n", RenderLabel("Resource group:"), ValueStyle.Render(p.ResourceGroup))
		fmt.Printf("%s %s\n", RenderLabel("Location:"), ValueStyle.Render(p.Location))
		fmt.Println()
	}
	fmt.Printf("%d projects\n", len(projects))
	return nil
}

func handleAdminDeployments(ctx context.Context, app *App, parser *ArgParser) error {
	project, err := app.DefaultProject(parser)
	if err != nil {
		return err
	}

	list, err := app.Admin.ListDeployments(ctx, project)
	if err != nil {
		return err
	}
	if list.Status != http.StatusOK {
		fmt.Printf("%s Deployment listing for %s returned HTTP %d (admin permissions required).\n",
			WarningStyle.Render("[WARN]"), project, list.Status)
		return nil
	}

	if len(list.Deployments) == 0 {
		// An empty project is a well-formed result, not a failure.
		fmt.Printf("%s Project %s has no model deployments.\n",
			InfoStyle.Render("[Info]"), project)
		return nil
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("Deployments in %s", project)))
	for _, d := range list.Deployments {
		fmt.Printf("%s %s\n", RenderLabel("Name:"), ValueStyle.Render(d.Name))
		fmt.Printf("%s %s\n", RenderLabel("Model:"), ValueStyle.Render(d.ModelName))
		if d.ModelVersion != "" {
			fmt.Printf("%s %s\n", RenderLabel("Version:"), ValueStyle.Render(d.ModelVersion))
		}
		if d.ModelPublisher != "" {
			fmt.Printf("%s %s\n", RenderLabel("Publisher:"), ValueStyle.Render(d.ModelPublisher))
		}
		fmt.Println()
	}
	fmt.Printf("%d deployments\n", len(list.Deployments))
	return nil
}

func handleAdminProbe(ctx context.Context, app *App, parser *ArgParser) error {
	project, err := app.DefaultProject(parser)
	if err != nil {
		return err
	}

	isAdmin, err := app.Admin.IsAdmin(ctx, project)
	if err != nil {
		return err
	}

	if isAdmin {
		fmt.Printf("%s %s can list deployments for %s\n",
			SuccessStyle.Render("[OK]"), app.Auth.Account(), project)
	} else {
		fmt.Printf("%s %s cannot list deployments for %s (permission denied)\n",
			WarningStyle.Render("[WARN]"), app.Auth.Account(), project)
	}
	return nil
}
