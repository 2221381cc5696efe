// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for redcell.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdAuth
	CmdEndpoints
	CmdAdmin
	CmdRedTeam
	CmdRuns
	CmdConfig
	CmdStatus
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet    bool   // Minimal output
	Plain    bool   // Disable markdown rendering of replies
	Endpoint string // Override default endpoint (deployment name)
	Config   string // Override config file path

	// Command-specific
	Query      string
	System     string // System prompt override for ask
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `redcell - terminal red-team console for Azure AI Foundry

Redcell signs you into Entra ID, chats with model deployments from a
configurable endpoint catalog, runs an adversarial prompt suite against
those deployments, and lists live deployments through the management plane.

Usage:
  redcell                       Start TUI (default)
  redcell chat                  Interactive chat REPL
  redcell ask "question"        Ask a single question
  redcell auth <subcommand>     Sign-in management
  redcell endpoints [refresh]   Endpoint catalog
  redcell admin <subcommand>    Management-plane listings
  redcell redteam <subcommand>  Adversarial prompt suite
  redcell runs <subcommand>     Stored red-team runs
  redcell config [show|init]    Configuration
  redcell status, s             Show session and catalog status
  redcell version               Show version
  redcell help                  Show this help

Auth Commands:
  redcell auth signin           Sign in (device code flow)
  redcell auth signout          Sign out and clear local tokens
  redcell auth status           Show session state and account

Endpoint Commands:
  redcell endpoints             List catalog endpoints
  redcell endpoints refresh     Discover deployments and register them
    --project NAME              Project to discover from (default: config)

Admin Commands:
  redcell admin projects        List AI Foundry projects in the subscription
  redcell admin deployments     List a project's model deployments
    --project NAME              Project name (default: config)
  redcell admin probe           Check whether the account can list deployments

Red-Team Commands:
  redcell redteam categories    List built-in probe categories
  redcell redteam run           Run the probe suite against an endpoint
    --endpoint NAME             Deployment to probe (default: config)
    --category NAME             Run a single category instead of the suite
    --prompts FILE              Load probes from a JSON file
    --no-save                   Do not record the run in the result store

Run Store Commands:
  redcell runs list             List stored red-team runs
    --limit N                   Show at most N runs (default: 20)
  redcell runs show <id>        Show one run's probe results
  redcell runs delete <id>      Delete a run
    --confirm                   Required confirmation flag

Chat Commands (during chat):
  /help, /h                     Show available commands
  /clear, /c                    Clear conversation history
  /endpoint [name]              Show or switch endpoint
  /endpoints                    List catalog endpoints
  /history                      Show conversation history
  /status, /s                   Show session status
  /quit, /q                     Exit chat
  Ctrl+C                        Cancel the in-flight request
  Ctrl+D                        Exit chat

Global Flags:
  --endpoint NAME     Override the default endpoint
  --config PATH       Use a specific config file
  --plain             Disable markdown rendering
  -q, --quiet         Minimal output

Examples:
  redcell                                   Start TUI interface
  redcell auth signin                       Sign in via device code
  redcell ask "Summarize RFC 9110"          One-shot question
  redcell ask --endpoint o4-mini "hello"    Ask a specific deployment
  redcell chat                              Interactive chat
  redcell endpoints refresh --project trav  Discover deployments
  redcell redteam run --endpoint gpt-4o     Run the full probe suite
  redcell redteam run --category "Prompt Injection"
  redcell runs show 3                       Inspect a stored run

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("redcell version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	args := os.Args[1:]

	remaining, parsedArgs := parseGlobalFlags(args)

	// No remaining args: default to the TUI.
	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat":
		return CmdChat, parsedArgs

	case "auth", "login":
		// Argument parsing is done in auth_cmd.go HandleAuth
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdAuth, parsedArgs

	case "endpoints", "endpoint", "catalog":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdEndpoints, parsedArgs

	case "admin":
		// Argument parsing is done in admin_cmd.go HandleAdmin
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdAdmin, parsedArgs

	case "redteam", "rt":
		// Argument parsing is done in redteam_cmd.go HandleRedTeam
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdRedTeam, parsedArgs

	case "runs", "run":
		// Argument parsing is done in redteam_cmd.go HandleRuns
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdRuns, parsedArgs

	case "config":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdConfig, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "version", "-v", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command - treat it as a direct prompt for the TUI.
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		return CmdTUI, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "--plain", "--no-markdown":
			parsedArgs.Plain = true
		case "--endpoint":
			if i+1 < len(args) {
				i++
				parsedArgs.Endpoint = args[i]
			}
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.Config = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--endpoint="):
				parsedArgs.Endpoint = strings.TrimPrefix(arg, "--endpoint=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.Config = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseAskArgs parses ask command specific arguments. Everything that is not
// a flag joins the query.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-e", "--endpoint":
			if i+1 < len(remaining) {
				i++
				args.Endpoint = remaining[i]
			}
		case "--system":
			if i+1 < len(remaining) {
				i++
				args.System = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--endpoint="):
				args.Endpoint = strings.TrimPrefix(arg, "--endpoint=")
			case strings.HasPrefix(arg, "--system="):
				args.System = strings.TrimPrefix(arg, "--system=")
			case !strings.HasPrefix(arg, "-"):
				query = append(query, arg)
			}
		}
	}

	args.Query = strings.Join(query, " ")
}

// =============================================================================
// SIMPLE COMMAND HANDLERS
// =============================================================================

// HandleVersion handles the "version" command.
func HandleVersion() {
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}
