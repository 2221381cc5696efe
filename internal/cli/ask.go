// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command handler for the redcell CLI.
//
// USABILITY: Markdown rendering for better CLI experience
//
// Command: ask
// Short:   Ask a single question and print the reply
//
// Examples:
//   redcell ask "Summarize RFC 9110"
//   redcell ask --endpoint o4-mini "What changed in HTTP/3?"
//   redcell ask --system "Answer in French" "hello" | less
//
// Flags:
//   -e, --endpoint NAME   Deployment to ask (overrides config default)
//   --system TEXT         System prompt override
//   --plain               Disable markdown rendering

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/redcell-tui/internal/diagnose"
	"github.com/jeranaias/redcell-tui/internal/dispatch"
	"github.com/jeranaias/redcell-tui/internal/history"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the shared glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fall back to plain output.
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a reply, markdown-rendered when stdout is a TTY and
// --plain was not given.
func displayResponse(content string, plain bool) {
	if !plain && IsStdoutTTY() {
		fmt.Print(renderMarkdown(content))
		return
	}
	fmt.Println(content)
}

// displayDiagnostic prints a classified failure in place of a reply.
func displayDiagnostic(d diagnose.Diagnostic, plain bool) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("[Error]"))
	if !plain && IsStdoutTTY() {
		fmt.Print(renderMarkdown(d.Markdown()))
		return
	}
	fmt.Println(d.Markdown())
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAsk handles the "ask" command.
func HandleAsk(args Args) error {
	if args.Query == "" {
		return NewUsageError("ask", "no question given")
	}

	app, err := NewApp(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := app.EnsureSignedIn(ctx); err != nil {
		return err
	}

	endpoint, err := app.DefaultEndpoint(args)
	if err != nil {
		return err
	}

	resp, err := app.Dispatcher.SendChat(ctx, dispatch.Request{
		ConversationID: "cli/ask",
		Endpoint:       endpoint,
		UserMessage:    args.Query,
		SystemPrompt:   args.System,
		History:        history.New(),
	})
	if err != nil {
		displayDiagnostic(diagnose.Classify(err), args.Plain)
		return err
	}

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			InfoStyle.Render("[Endpoint]"),
			resp.Endpoint.Name)
	}
	displayResponse(resp.Content, args.Plain)
	return nil
}
