// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command handler for the redcell CLI.
//
// Command: config
// Short:   Show or initialize configuration
//
// Examples:
//   redcell config show     Show effective configuration
//   redcell config path     Print the config file path
//   redcell config init     Write a starter config file

package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/redcell-tui/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "", "show":
		return handleConfigShow(args)
	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "init":
		return handleConfigInit()
	default:
		return NewUsageError("config", fmt.Sprintf("unknown subcommand %q", parser.Subcommand()))
	}
}

func handleConfigShow(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	cfg := app.Config

	fmt.Println(TitleStyle.Render("Configuration"))
	if app.ConfigPath != "" {
		fmt.Printf("%s %s\n", RenderLabel("Source:"), ValueStyle.Render(app.ConfigPath))
	} else {
		fmt.Printf("%s %s\n", RenderLabel("Source:"), DimStyle.Render("built-in defaults"))
	}

	fmt.Println(SectionStyle.Render("Identity"))
	fmt.Printf("%s %s\n", RenderLabel("Tenant:"), valueOrUnset(cfg.Identity.TenantID))
	fmt.Printf("%s %s\n", RenderLabel("Client:"), valueOrUnset(cfg.Identity.ClientID))
	fmt.Printf("%s %s\n", RenderLabel("Subscription:"), valueOrUnset(cfg.Identity.SubscriptionID))

	fmt.Println(SectionStyle.Render("Chat"))
	fmt.Printf("%s %s\n", RenderLabel("Default endpoint:"), valueOrUnset(cfg.Chat.DefaultEndpoint))
	fmt.Printf("%s %d seconds\n", RenderLabel("Timeout:"), cfg.Chat.TimeoutSecs)
	fmt.Printf("%s %d (0 = unlimited)\n", RenderLabel("Rate limit:"), cfg.Chat.RequestsPerMinute)

	fmt.Println(SectionStyle.Render("Admin"))
	fmt.Printf("%s %s\n", RenderLabel("Default project:"), valueOrUnset(cfg.Admin.DefaultProject))

	fmt.Println(SectionStyle.Render("Endpoints"))
	fmt.Printf("%s %d static entries\n", RenderLabel("Catalog:"), len(cfg.Endpoints))

	return nil
}

func handleConfigInit() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.Save(config.Default()); err != nil {
		return err
	}
	fmt.Printf("%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	fmt.Println(DimStyle.Render("Fill in identity.tenant_id, identity.client_id, and [[endpoints]]."))
	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return DimStyle.Render("(unset)")
	}
	return ValueStyle.Render(v)
}
