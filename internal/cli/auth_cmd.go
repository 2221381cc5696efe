// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign-in management for the redcell CLI.
//
// Command: auth
// Short:   Manage the Entra ID session
//
// Examples:
//   redcell auth signin     Sign in via the device code flow
//   redcell auth signout    Sign out and clear local tokens
//   redcell auth status     Show session state and account

package cli

import (
	"context"
	"fmt"
	"os"
)

// HandleAuth handles the "auth" command.
func HandleAuth(args Args) error {
	parser := NewArgParser(args.Raw)

	app, err := NewApp(args)
	if err != nil {
		return err
	}

	switch parser.Subcommand() {
	case "signin", "login", "":
		return handleSignIn(app)
	case "signout", "logout":
		return handleSignOut(app)
	case "status":
		return handleAuthStatus(app)
	default:
		return NewUsageError("auth", fmt.Sprintf("unknown subcommand %q", parser.Subcommand()))
	}
}

func handleSignIn(app *App) error {
	if !app.Config.HasIdentity() {
		return ErrNoIdentity
	}

	fmt.Fprintln(os.Stderr, InfoStyle.Render("Signing in..."))
	if err := app.Auth.SignIn(context.Background()); err != nil {
		return err
	}

	fmt.Printf("%s Signed in as %s\n",
		SuccessStyle.Render("[OK]"),
		ValueStyle.Render(app.Auth.Account()))
	fmt.Println(DimStyle.Render("Note: tokens live in process memory only; long-lived commands sign in themselves."))
	return nil
}

func handleSignOut(app *App) error {
	// Local clearing happens regardless; only the remote call can fail.
	err := app.Auth.SignOut(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s remote sign-out failed: %v\n",
			WarningStyle.Render("[WARN]"), err)
	}
	fmt.Printf("%s Local session cleared\n", SuccessStyle.Render("[OK]"))
	return nil
}

func handleAuthStatus(app *App) error {
	fmt.Println(TitleStyle.Render("Session"))
	fmt.Printf("%s %s\n", RenderLabel("State:"), ValueStyle.Render(app.Auth.State().String()))
	if account := app.Auth.Account(); account != "" {
		fmt.Printf("%s %s\n", RenderLabel("Account:"), ValueStyle.Render(account))
	}
	if app.Config.HasIdentity() {
		fmt.Printf("%s %s\n", RenderLabel("Tenant:"), ValueStyle.Render(app.Config.Identity.TenantID))
		fmt.Printf("%s %s\n", RenderLabel("Client:"), ValueStyle.Render(app.Config.Identity.ClientID))
	} else {
		fmt.Printf("%s %s\n", RenderLabel("Identity:"), WarningStyle.Render("not configured"))
	}
	return nil
}
