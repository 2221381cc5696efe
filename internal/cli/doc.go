// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and command handlers for redcell.
//
// The package owns everything between os.Args and the domain packages: the
// hand-rolled argument parser, the command registry, terminal detection,
// shared lipgloss styles, and one handler file per command (auth, chat, ask,
// endpoints, admin, redteam, runs, config, status).
//
// Handlers always return errors; main.go decides how to display them and
// which exit code to use. Colored output is automatically disabled for
// non-TTY output and respects NO_COLOR.
package cli
