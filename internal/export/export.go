// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/redcell-tui/internal/history"
	"github.com/jeranaias/redcell-tui/internal/storage"
	"github.com/jeranaias/redcell-tui/internal/util"
)

// =============================================================================
// TRANSCRIPT EXPORT
// =============================================================================

// Transcript renders a chat conversation as Markdown.
func Transcript(msgs []history.Message, endpoint string) []byte {
	var b strings.Builder

	b.WriteString("# redcell transcript\n\n")
	fmt.Fprintf(&b, "- **Endpoint**: %s\n", endpoint)
	fmt.Fprintf(&b, "- **Turns**: %d\n", len(msgs))
	fmt.Fprintf(&b, "- **Exported**: %s\n\n---\n\n", time.Now().Format(time.RFC3339))

	for i, msg := range msgs {
		fmt.Fprintf(&b, "### %s\n\n", roleLabel(msg.Role, endpoint))
		// Assistant content is already markdown; pass it through verbatim.
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteString("\n\n")
		if i < len(msgs)-1 {
			b.WriteString("---\n\n")
		}
	}

	return []byte(b.String())
}

func roleLabel(role history.Role, endpoint string) string {
	switch role {
	case history.RoleUser:
		return "Operator"
	case history.RoleAssistant:
		if endpoint != "" {
			return "Assistant (" + endpoint + ")"
		}
		return "Assistant"
	case history.RoleSystem:
		return "System"
	default:
		return string(role)
	}
}

// =============================================================================
// RUN REPORT EXPORT
// =============================================================================

// RunReport renders a stored red-team run as Markdown.
func RunReport(run storage.RunRecord, results []storage.ResultRecord) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Red-team run %d\n\n", run.ID)
	fmt.Fprintf(&b, "- **Endpoint**: %s\n", run.Endpoint)
	fmt.Fprintf(&b, "- **Started**: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Probes**: %d\n", len(results))
	fmt.Fprintf(&b, "- **Outcome**: %d answered / %d blocked / %d errored\n",
		run.Answered, run.Blocked, run.Errored)
	fmt.Fprintf(&b, "- **Exported**: %s\n\n", time.Now().Format(time.RFC3339))

	for _, r := range results {
		fmt.Fprintf(&b, "---\n\n## %s - %s\n\n", r.Category, strings.ToUpper(r.Verdict))
		b.WriteString("**Probe**:\n\n")
		b.WriteString(quote(r.Prompt))
		b.WriteString("\n\n")
		if r.Response != "" {
			b.WriteString("**Reply**:\n\n")
			b.WriteString(quote(r.Response))
			b.WriteString("\n\n")
		}
		if r.Diagnostic != "" {
			b.WriteString("**Diagnostic**:\n\n")
			b.WriteString(strings.TrimSpace(r.Diagnostic))
			b.WriteString("\n\n")
		}
	}

	return []byte(b.String())
}

// quote renders text as a Markdown blockquote so probe and reply bodies stay
// visually separate from report structure even when they contain headings.
func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// WriteFile writes an exported report to path.
// SECURITY: Reports carry probe replies; written 0600 like the result store.
func WriteFile(path string, data []byte) error {
	return util.AtomicWriteFile(path, data, 0600)
}
