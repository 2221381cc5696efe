// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Tests for CLI parsing: the unified ArgParser, command routing, and the
// error-to-exit-code mapping.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jeranaias/redcell-tui/internal/auth"
	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/dispatch"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"run"},
			wantSub: "run",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"run", "--endpoint", "gpt-4o"},
			wantSub: "run",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("endpoint") != "gpt-4o" {
					t.Errorf("Flag(endpoint) = %q, want %q", p.Flag("endpoint"), "gpt-4o")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"run", "--category=Prompt Injection"},
			wantSub: "run",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("category") != "Prompt Injection" {
					t.Errorf("Flag(category) = %q", p.Flag("category"))
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"run", "--no-save"},
			wantSub: "run",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("no-save") {
					t.Error("BoolFlag(no-save) should be true")
				}
			},
		},
		{
			name:    "explicit boolean value",
			args:    []string{"run", "--no-save=false"},
			wantSub: "run",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("no-save") {
					t.Error("BoolFlag(no-save=false) should be false")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"show", "3", "extra"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 3 {
					t.Errorf("PositionalCount() = %d, want 3", p.PositionalCount())
				}
				if p.Positional(1) != "3" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "3")
				}
			},
		},
		{
			name:    "mixed flags and positional",
			args:    []string{"delete", "--confirm", "7"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				// --confirm swallows the following token as its value; the
				// documented order is flags after positionals.
				if !p.HasFlag("confirm") {
					t.Error("HasFlag(confirm) should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		flagName   string
		defaultVal int
		want       int
	}{
		{
			name:       "flag present",
			args:       []string{"list", "--limit", "10"},
			flagName:   "limit",
			defaultVal: 20,
			want:       10,
		},
		{
			name:       "flag absent",
			args:       []string{"list"},
			flagName:   "limit",
			defaultVal: 20,
			want:       20,
		},
		{
			name:       "flag not an integer",
			args:       []string{"list", "--limit", "many"},
			flagName:   "limit",
			defaultVal: 20,
			want:       20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			if got := parser.FlagIntOrDefault(tt.flagName, tt.defaultVal); got != tt.want {
				t.Errorf("FlagIntOrDefault(%s) = %d, want %d", tt.flagName, got, tt.want)
			}
		})
	}
}

// =============================================================================
// COMMAND ROUTING TESTS (cli.go)
// =============================================================================

func TestParse_CommandRouting(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
	}{
		{"no args defaults to TUI", []string{"redcell"}, CmdTUI},
		{"chat", []string{"redcell", "chat"}, CmdChat},
		{"ask", []string{"redcell", "ask", "hello"}, CmdAsk},
		{"auth", []string{"redcell", "auth", "signin"}, CmdAuth},
		{"endpoints", []string{"redcell", "endpoints"}, CmdEndpoints},
		{"admin", []string{"redcell", "admin", "projects"}, CmdAdmin},
		{"redteam alias", []string{"redcell", "rt", "run"}, CmdRedTeam},
		{"runs", []string{"redcell", "runs", "list"}, CmdRuns},
		{"config", []string{"redcell", "config", "show"}, CmdConfig},
		{"status alias", []string{"redcell", "s"}, CmdStatus},
		{"version flag", []string{"redcell", "--version"}, CmdVersion},
		{"help flag", []string{"redcell", "-h"}, CmdHelp},
		{"unknown command falls through to TUI", []string{"redcell", "bogus"}, CmdTUI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			os.Args = tt.argv
			defer func() { os.Args = oldArgs }()

			cmd, _ := Parse()
			if cmd != tt.wantCmd {
				t.Errorf("Parse() = %v, want %v", cmd, tt.wantCmd)
			}
		})
	}
}

func TestParse_GlobalFlags(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"redcell", "--endpoint", "o4-mini", "--plain", "-q", "chat"}
	defer func() { os.Args = oldArgs }()

	cmd, args := Parse()
	if cmd != CmdChat {
		t.Fatalf("Parse() = %v, want CmdChat", cmd)
	}
	if args.Endpoint != "o4-mini" {
		t.Errorf("Endpoint = %q, want %q", args.Endpoint, "o4-mini")
	}
	if !args.Plain || !args.Quiet {
		t.Errorf("Plain = %v, Quiet = %v, want both true", args.Plain, args.Quiet)
	}
}

func TestParse_AskQueryAndFlags(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"redcell", "ask", "--endpoint=gpt-4o", "What", "is", "QUIC?"}
	defer func() { os.Args = oldArgs }()

	cmd, args := Parse()
	if cmd != CmdAsk {
		t.Fatalf("Parse() = %v, want CmdAsk", cmd)
	}
	if args.Endpoint != "gpt-4o" {
		t.Errorf("Endpoint = %q", args.Endpoint)
	}
	if args.Query != "What is QUIC?" {
		t.Errorf("Query = %q", args.Query)
	}
}

func TestParse_AskSystemOverride(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"redcell", "ask", "--system", "Answer in French", "hello"}
	defer func() { os.Args = oldArgs }()

	_, args := Parse()
	if args.System != "Answer in French" {
		t.Errorf("System = %q", args.System)
	}
	if args.Query != "hello" {
		t.Errorf("Query = %q", args.Query)
	}
}

// =============================================================================
// EXIT CODE MAPPING TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"usage", NewUsageError("runs", "run ID required"), ExitUsageError},
		{"tty required", &TTYRequiredError{Operation: "chat"}, ExitUsageError},
		{"auth", &auth.AuthError{Op: "sign in", Err: errors.New("denied")}, ExitAuthError},
		{
			"endpoint not found",
			&catalog.ResolutionError{Name: "ghost", Err: catalog.ErrNotFound},
			ExitNotFoundError,
		},
		{"canceled", context.Canceled, ExitTimeoutError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"dispatch failure", &dispatch.DispatchError{Status: 500}, ExitNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// =============================================================================
// STYLE HELPER TESTS (styles.go)
// =============================================================================

func TestRenderStatusVerdicts(t *testing.T) {
	for _, verdict := range []string{"answered", "blocked", "error"} {
		out := RenderStatus(verdict)
		if !strings.Contains(out, strings.ToUpper(verdict)) {
			t.Errorf("RenderStatus(%q) = %q, want the verdict name", verdict, out)
		}
	}
}
