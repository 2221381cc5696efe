// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/redcell-tui/internal/ui/styles"
)

// StatusBarData is what the status bar renders each frame.
type StatusBarData struct {
	// Waiting is true while a dispatch is in flight.
	Waiting bool
	// Turns is the number of messages in the conversation.
	Turns int
	// SignedIn reflects the session state.
	SignedIn bool
	// Notice is a transient message shown instead of the key legend.
	Notice string
}

// keyHint is one entry in the status bar legend.
type keyHint struct {
	key  string
	desc string
}

var readyHints = []keyHint{
	{"enter", "send"},
	{"ctrl+e", "endpoint"},
	{"ctrl+l", "clear"},
	{"?", "help"},
	{"ctrl+c", "quit"},
}

var waitingHints = []keyHint{
	{"esc", "stop"},
	{"pgup/pgdn", "scroll"},
}

// RenderStatusBar renders the bottom status line: session state, turn count,
// and a context-sensitive key legend.
func RenderStatusBar(theme *styles.Theme, width int, d StatusBarData) string {
	var session string
	if d.SignedIn {
		session = theme.SignedIn.Render("● signed in")
	} else {
		session = theme.SignedOut.Render("○ signed out")
	}

	left := lipgloss.JoinHorizontal(lipgloss.Center,
		session,
		theme.StatusDesc.Render(fmt.Sprintf("  %d turns", d.Turns)),
	)

	var right string
	switch {
	case d.Notice != "":
		right = theme.StatusDesc.Render(TruncateToWidth(d.Notice, width/2))
	case d.Waiting:
		right = renderHints(theme, waitingHints)
	default:
		right = renderHints(theme, readyHints)
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Render(left + PadToWidth("", gap) + right)
}

func renderHints(theme *styles.Theme, hints []keyHint) string {
	out := ""
	for i, h := range hints {
		if i > 0 {
			out += theme.StatusDesc.Render("  ")
		}
		out += theme.StatusKey.Render(h.key) + theme.StatusDesc.Render(" "+h.desc)
	}
	return out
}
