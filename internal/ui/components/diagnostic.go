// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/redcell-tui/internal/diagnose"
	"github.com/jeranaias/redcell-tui/internal/ui/styles"
)

// RenderDiagnostic renders a classified dispatch failure as a bordered panel
// for the transcript. Content-filter hits get a distinct warning line so the
// operator can tell a guardrail block from an infrastructure failure.
func RenderDiagnostic(theme *styles.Theme, width int, d diagnose.Diagnostic) string {
	var b strings.Builder

	b.WriteString(theme.ErrorTitle.Render("Request failed"))
	b.WriteString("\n")
	b.WriteString(theme.ErrorMessage.Render(d.Summary))

	if d.Code != "" {
		b.WriteString("\n")
		b.WriteString(theme.Timestamp.Render("code: " + d.Code))
	}
	if d.FilterHit() {
		b.WriteString("\n")
		b.WriteString(theme.FilterWarning.Render("⚠ content filter triggered"))
	}

	boxWidth := width - 4
	if boxWidth < 20 {
		boxWidth = 20
	}
	return theme.ErrorBox.Width(boxWidth).Render(b.String())
}
