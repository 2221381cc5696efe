// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the console.
// It detects the terminal's color capability once at construction.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderEndpoint lipgloss.Style
	HeaderState    lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	UserHeader      lipgloss.Style
	AssistantHeader lipgloss.Style
	SystemNotice    lipgloss.Style
	MessageBody     lipgloss.Style
	Timestamp       lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Separator      lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusKey    lipgloss.Style
	StatusDesc   lipgloss.Style
	SignedIn     lipgloss.Style
	SignedOut    lipgloss.Style

	// ==========================================================================
	// SPINNER AND WAITING STYLES
	// ==========================================================================

	Spinner     lipgloss.Style
	WaitingText lipgloss.Style

	// ==========================================================================
	// ERROR AND DIAGNOSTIC STYLES
	// ==========================================================================

	ErrorBox      lipgloss.Style
	ErrorTitle    lipgloss.Style
	ErrorMessage  lipgloss.Style
	FilterWarning lipgloss.Style

	// ==========================================================================
	// HELP OVERLAY STYLES
	// ==========================================================================

	HelpBox  lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// NewTheme creates a theme from the current terminal's capabilities.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Crimson)
	t.HeaderEndpoint = lipgloss.NewStyle().
		Foreground(Cyan)
	t.HeaderState = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Transcript
	t.UserHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(Crimson)
	t.AssistantHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.SystemNotice = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Crimson)
	t.Separator = lipgloss.NewStyle().
		Foreground(Overlay)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.StatusDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.SignedIn = lipgloss.NewStyle().
		Foreground(Emerald)
	t.SignedOut = lipgloss.NewStyle().
		Foreground(Amber)

	// Spinner
	t.Spinner = lipgloss.NewStyle().
		Foreground(Crimson)
	t.WaitingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Errors and diagnostics
	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	t.ErrorTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)
	t.ErrorMessage = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.FilterWarning = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	// Help overlay
	t.HelpBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 2)
	t.HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.HelpDesc = lipgloss.NewStyle().
		Foreground(TextSecondary)
}

// SetSize records the terminal dimensions for styles that depend on width.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
	t.Header = t.Header.Width(width)
	t.StatusBar = t.StatusBar.Width(width)
}
