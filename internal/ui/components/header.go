// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/redcell-tui/internal/ui/styles"
)

// HeaderData is what the header renders each frame.
type HeaderData struct {
	// Endpoint is the active deployment name.
	Endpoint string
	// Model is the underlying model, when the catalog knows it.
	Model string
	// SessionState is the auth state label ("signed in", "signed out", ...).
	SessionState string
	// Version is the build version shown on the right edge.
	Version string
}

// RenderHeader renders the one-line console header.
func RenderHeader(theme *styles.Theme, width int, d HeaderData) string {
	target := d.Endpoint
	if target == "" {
		target = "no endpoint"
	}
	if d.Model != "" && d.Model != d.Endpoint {
		target += " (" + d.Model + ")"
	}
	// Leave room for the title, separators, state, and padding.
	maxTarget := width - len("redcell") - len(d.SessionState) - 16
	if maxTarget > 0 {
		target = TruncateToWidth(target, maxTarget)
	}

	left := lipgloss.JoinHorizontal(lipgloss.Center,
		theme.HeaderTitle.Render("redcell"),
		theme.HeaderState.Render(" │ "),
		theme.HeaderEndpoint.Render(target),
		theme.HeaderState.Render(" │ "+d.SessionState),
	)

	right := ""
	if d.Version != "" {
		right = theme.HeaderState.Render("v" + d.Version)
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
		right = ""
	}
	return theme.Header.Render(left + PadToWidth("", gap) + right)
}
