// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/redcell-tui/internal/diagnose"
	"github.com/jeranaias/redcell-tui/internal/ui/styles"
)

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"fits unchanged", "gpt-4o", 10, "gpt-4o"},
		{"exact width unchanged", "gpt-4o", 6, "gpt-4o"},
		{"truncated with ellipsis", "my-very-long-endpoint", 10, "my-very..."},
		{"zero width", "anything", 0, ""},
		{"tiny width no ellipsis", "abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateToWidth(tt.input, tt.width); got != tt.want {
				t.Errorf("TruncateToWidth(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncateToWidth_WideRunes(t *testing.T) {
	// CJK characters occupy two cells; the result must fit the cell budget,
	// not the rune count.
	got := TruncateToWidth("模型部署名称", 8)
	if w := runewidth.StringWidth(got); w > 8 {
		t.Errorf("truncated width = %d cells, want <= 8 (%q)", w, got)
	}
}

func TestPadToWidth(t *testing.T) {
	if got := PadToWidth("ab", 5); got != "ab   " {
		t.Errorf("PadToWidth = %q", got)
	}
	if got := PadToWidth("abcdef", 3); got != "abcdef" {
		t.Errorf("PadToWidth should not shorten, got %q", got)
	}
}

func TestRenderDiagnosticIncludesFilterWarning(t *testing.T) {
	theme := styles.NewTheme()

	d := diagnose.Diagnostic{
		Summary: "The response was blocked by the content management policy.",
		Code:    "content_filter",
		Filtered: []diagnose.CategoryResult{
			{Category: "violence", Filtered: true},
		},
	}
	out := RenderDiagnostic(theme, 80, d)

	if !strings.Contains(out, "content filter") {
		t.Error("filtered diagnostic should render the filter warning")
	}
	if !strings.Contains(out, "content_filter") {
		t.Error("diagnostic should render the error code")
	}
}

func TestRenderStatusBarLegendFollowsState(t *testing.T) {
	theme := styles.NewTheme()

	ready := RenderStatusBar(theme, 120, StatusBarData{SignedIn: true, Turns: 4})
	if !strings.Contains(ready, "send") {
		t.Error("ready legend should mention send")
	}

	waiting := RenderStatusBar(theme, 120, StatusBarData{Waiting: true})
	if !strings.Contains(waiting, "stop") {
		t.Error("waiting legend should mention stop")
	}

	notice := RenderStatusBar(theme, 120, StatusBarData{Notice: "endpoint switched"})
	if !strings.Contains(notice, "endpoint switched") {
		t.Error("notice should replace the legend")
	}
}
