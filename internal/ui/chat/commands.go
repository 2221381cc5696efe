// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Slash commands for the console.
package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/redcell-tui/internal/export"
	"github.com/jeranaias/redcell-tui/internal/history"
)

// handleSlashCommand interprets "/command arg" input. Notices go to the
// status bar; listings are recorded as system turns in the transcript.
func (m Model) handleSlashCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch command {
	case "/help", "/h", "/?":
		m.showHelp = true
		return m, nil

	case "/clear", "/c":
		m.conversation.Clear()
		m.lastDiag = nil
		m.updateViewport()
		return m.setNotice("conversation cleared")

	case "/endpoint", "/e":
		if arg == "" {
			return m.setNotice("endpoint: " + m.endpoint)
		}
		return m.switchEndpoint(arg)

	case "/endpoints":
		names := m.deps.Catalog.Names()
		if len(names) == 0 {
			return m.setNotice("catalog is empty")
		}
		for i, name := range names {
			if name == m.endpoint {
				names[i] = name + " *"
			}
		}
		m.conversation.Append(history.NewSystemMessage("endpoints: " + strings.Join(names, ", ")))
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, nil

	case "/export":
		if arg == "" {
			return m.setNotice("usage: /export <file.md>")
		}
		data := export.Transcript(m.conversation.Messages(), m.endpoint)
		if err := export.WriteFile(arg, data); err != nil {
			return m.setNotice("export failed: " + err.Error())
		}
		return m.setNotice("transcript written to " + arg)

	case "/quit", "/q", "/exit":
		return m, tea.Quit

	default:
		return m.setNotice("unknown command " + command + " (/help)")
	}
}
