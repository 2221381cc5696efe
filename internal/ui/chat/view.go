// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Rendering for the console: transcript, input area, header, status bar, and
// the help overlay.
package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/redcell-tui/internal/history"
	"github.com/jeranaias/redcell-tui/internal/ui/components"
)

// View renders the console.
func (m Model) View() string {
	if m.width == 0 {
		return "starting..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// CHROME
// =============================================================================

func (m Model) renderHeader() string {
	state := "signed out"
	if m.deps.Session != nil && m.deps.Session.SignedIn() {
		state = "signed in"
	}

	model := ""
	if desc, err := m.deps.Catalog.FindByName(m.endpoint); err == nil {
		model = desc.ModelName()
	}

	return components.RenderHeader(m.theme, m.width, components.HeaderData{
		Endpoint:     m.endpoint,
		Model:        model,
		SessionState: state,
		Version:      m.deps.Version,
	})
}

func (m Model) renderInput() string {
	sep := m.theme.Separator.Render(strings.Repeat("─", max(1, m.width)))

	var line string
	if m.state == StateWaiting {
		line = m.theme.Spinner.Render(m.spinner.View()) + " " +
			m.theme.WaitingText.Render("waiting for "+m.endpoint+"  (esc to stop)")
	} else {
		line = m.input.View()
	}

	return sep + "\n" + m.theme.InputContainer.Render(line) + "\n"
}

func (m Model) renderStatusBar() string {
	return components.RenderStatusBar(m.theme, m.width, components.StatusBarData{
		Waiting:  m.state == StateWaiting,
		Turns:    m.conversation.Len(),
		SignedIn: m.deps.Session != nil && m.deps.Session.SignedIn(),
		Notice:   m.notice,
	})
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// rebuildRenderer recreates the markdown renderer for the current width.
func (m *Model) rebuildRenderer() {
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// updateViewport rebuilds the transcript. Called from the update loop only,
// never while a dispatch may be appending to the conversation.
func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderMessages())
}

func (m *Model) renderMessages() string {
	var b strings.Builder

	for _, msg := range m.conversation.Messages() {
		switch msg.Role {
		case history.RoleUser:
			b.WriteString(m.theme.UserHeader.Render("you"))
			b.WriteString("\n")
			b.WriteString(m.theme.MessageBody.Render(msg.Content))
		case history.RoleAssistant:
			b.WriteString(m.theme.AssistantHeader.Render(m.endpoint))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Content))
		case history.RoleSystem:
			b.WriteString(m.theme.SystemNotice.Render("· " + msg.Content))
		}
		b.WriteString("\n\n")
	}

	if m.pending != "" {
		b.WriteString(m.theme.UserHeader.Render("you"))
		b.WriteString("\n")
		b.WriteString(m.theme.MessageBody.Render(m.pending))
		b.WriteString("\n\n")
	}

	if m.lastDiag != nil {
		b.WriteString(components.RenderDiagnostic(m.theme, m.width, *m.lastDiag))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return m.theme.MessageBody.Render(content)
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return m.theme.MessageBody.Render(content)
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

func (m Model) renderHelp() string {
	rows := []struct{ key, desc string }{
		{"Enter", "send message"},
		{"Esc", "stop the in-flight request"},
		{"Ctrl+E", "cycle endpoints"},
		{"Ctrl+L", "clear conversation"},
		{"PgUp / PgDn", "scroll transcript"},
		{"Ctrl+C", "quit"},
		{"", ""},
		{"/endpoint <name>", "switch endpoint"},
		{"/endpoints", "list catalog entries"},
		{"/export <file>", "write the transcript as Markdown"},
		{"/clear", "clear conversation"},
		{"/quit", "exit"},
	}

	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("redcell keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		if r.key == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(m.theme.HelpKey.Render(components.PadToWidth(r.key, 18)))
		b.WriteString(m.theme.HelpDesc.Render(r.desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.HelpDesc.Render("press any key to close"))

	box := m.theme.HelpBox.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
