// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command handler for the redcell CLI.
//
// Command: status
// Short:   Show session, config, and catalog status
// Aliases: s

package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/redcell-tui/internal/storage"
)

// HandleStatus handles the "status" command.
func HandleStatus(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("redcell status"))

	// Session: a fresh process is always signed out; this reflects config
	// readiness, not a persisted session.
	fmt.Println(SectionStyle.Render("Session"))
	fmt.Printf("%s %s\n", RenderLabel("State:"), ValueStyle.Render(app.Auth.State().String()))
	if app.Config.HasIdentity() {
		fmt.Printf("%s %s\n", RenderLabel("Identity:"), SuccessStyle.Render("configured"))
		fmt.Printf("%s %s\n", RenderLabel("Tenant:"), DimStyle.Render(app.Config.Identity.TenantID))
	} else {
		fmt.Printf("%s %s\n", RenderLabel("Identity:"), WarningStyle.Render("not configured"))
	}

	fmt.Println(SectionStyle.Render("Config"))
	if app.ConfigPath != "" {
		fmt.Printf("%s %s\n", RenderLabel("File:"), ValueStyle.Render(app.ConfigPath))
	} else {
		fmt.Printf("%s %s\n", RenderLabel("File:"), DimStyle.Render("built-in defaults"))
	}
	fmt.Printf("%s %ds timeout, %d req/min\n", RenderLabel("Dispatch:"),
		app.Config.Chat.TimeoutSecs, app.Config.Chat.RequestsPerMinute)

	fmt.Println(SectionStyle.Render("Catalog"))
	fmt.Printf("%s %d endpoints\n", RenderLabel("Endpoints:"), app.Catalog.Len())
	if app.Config.Chat.DefaultEndpoint != "" {
		fmt.Printf("%s %s\n", RenderLabel("Default:"), ValueStyle.Render(app.Config.Chat.DefaultEndpoint))
	}
	if app.Config.Admin.DefaultProject != "" {
		fmt.Printf("%s %s\n", RenderLabel("Project:"), ValueStyle.Render(app.Config.Admin.DefaultProject))
	}

	fmt.Println(SectionStyle.Render("Result Store"))
	if path, err := storage.DefaultPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Printf("%s %s\n", RenderLabel("Database:"), ValueStyle.Render(path))
		} else {
			fmt.Printf("%s %s\n", RenderLabel("Database:"), DimStyle.Render("not created yet"))
		}
	}

	return nil
}
