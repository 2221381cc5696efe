// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations and red-team runs as Markdown files.
//
// Two shapes come through here: a live chat transcript (history messages) and
// a stored red-team run (run metadata plus per-probe results). Both render to
// plain Markdown so reports can go straight into an engagement write-up.
// Writes are atomic; a crash mid-export never leaves a half-written report.
package export
