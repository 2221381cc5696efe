// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the redcell CLI.
//
// CLI: Comprehensive help and examples for all commands
// USABILITY: Markdown rendering and history for better CLI experience
//
// Handles the "redcell chat" command which provides an interactive REPL for
// conversing with a model deployment.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   redcell chat                        Start chat (config default endpoint)
//   redcell chat --endpoint o4-mini     Use a specific deployment
//   redcell chat --plain                Disable markdown rendering
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /endpoint [name]    Show or switch endpoint
//   /endpoints          List catalog endpoints
//   /history            Show conversation history
//   /export <file>      Write the transcript as Markdown
//   /status, /s         Show session status
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the in-flight request
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/redcell-tui/internal/config"
	"github.com/jeranaias/redcell-tui/internal/diagnose"
	"github.com/jeranaias/redcell-tui/internal/dispatch"
	"github.com/jeranaias/redcell-tui/internal/export"
	"github.com/jeranaias/redcell-tui/internal/history"
)

// chatConversationID keys the dispatcher's in-flight guard for the CLI REPL.
// One REPL is one conversation.
const chatConversationID = "cli/chat"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	// SECURITY: 0600 - prompts may contain sensitive material.
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	App      *App
	Endpoint string
	History  *history.History
	Plain    bool
	Quiet    bool

	// Tracking
	StartTime time.Time
	Exchanges int

	// Input history handler
	InputCLI *ChatCLI
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat handles the "chat" command with full interactive support.
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
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

	// Live-reload static endpoints while the REPL runs.
	watcher, err := app.WatchConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s config watch disabled: %v\n",
			WarningStyle.Render("[WARN]"), err)
	}
	if watcher != nil {
		defer watcher.Close()
	}

	session := &ChatSession{
		App:       app,
		Endpoint:  endpoint,
		History:   history.New(),
		Plain:     args.Plain,
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		InputCLI:  NewChatCLI(),
	}
	defer session.InputCLI.Close()

	if !session.Quiet {
		printWelcome(session)
	}

	// Ctrl+C during a dispatch cancels the request context; the REPL keeps
	// running. Liner handles Ctrl+C at the prompt itself.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if session.App.Dispatcher.Stop(chatConversationID) {
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	// Main REPL loop using liner for input history.
	for {
		input, err := session.InputCLI.ReadInput(SuccessStyle.Render("redcell> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF (Ctrl+D): exit gracefully.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, liner.ErrNotTerminalOutput) {
				fmt.Println()
			}
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			// Diagnostics were already rendered; a cancel is not an error
			// worth repeating.
			if !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage dispatches one user turn and renders the reply.
func processMessage(session *ChatSession, input string) error {
	start := time.Now()

	fmt.Println() // Space before response

	resp, err := session.App.Dispatcher.SendChat(context.Background(), dispatch.Request{
		ConversationID: chatConversationID,
		Endpoint:       session.Endpoint,
		UserMessage:    input,
		SystemPrompt:   session.App.Config.Chat.SystemPrompt,
		History:        session.History,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		displayDiagnostic(diagnose.Classify(err), session.Plain)
		return err
	}

	displayResponse(resp.Content, session.Plain)
	fmt.Println()

	session.Exchanges++
	if !session.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s | %s\n",
			InfoStyle.Render("[Stats]"),
			resp.Endpoint.Name,
			time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printChatHelp()
		return true, nil

	case "/clear", "/c":
		session.History.Clear()
		fmt.Println(SuccessStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/endpoint", "/e", "/model", "/m":
		return handleEndpointCommand(session, args)

	case "/endpoints":
		printCatalog(session)
		return true, nil

	case "/status", "/s":
		printChatStatus(session)
		return true, nil

	case "/history":
		printChatHistory(session)
		return true, nil

	case "/export":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /export <file.md>")
		}
		data := export.Transcript(session.History.Messages(), session.Endpoint)
		if err := export.WriteFile(args[0], data); err != nil {
			return true, fmt.Errorf("export transcript: %w", err)
		}
		fmt.Printf("%s Transcript written to %s\n", SuccessStyle.Render("[OK]"), args[0])
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleEndpointCommand handles the /endpoint command.
func handleEndpointCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current endpoint: %s\n",
			InfoStyle.Render("[Endpoint]"),
			ValueStyle.Render(session.Endpoint))
		return true, nil
	}

	name := args[0]
	if _, err := session.App.Catalog.FindByName(name); err != nil {
		return true, err
	}

	session.Endpoint = name
	fmt.Printf("%s Switched to endpoint: %s\n", SuccessStyle.Render("[OK]"), name)
	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("redcell interactive chat"))
	fmt.Println(DimStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		DimStyle.Render("Endpoint:"),
		ValueStyle.Render(session.Endpoint))
	fmt.Printf("%s %s\n",
		DimStyle.Render("Account:"),
		ValueStyle.Render(session.App.Auth.Account()))
	fmt.Println()
	fmt.Println(DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printChatHelp prints available commands.
func printChatHelp() {
	fmt.Println()
	fmt.Println(SectionStyle.Render("Available Commands"))
	fmt.Println(DimStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/endpoint [name]", "Show or switch endpoint"},
		{"/endpoints", "List catalog endpoints"},
		{"/history", "Show conversation history"},
		{"/export <file>", "Write the transcript as Markdown"},
		{"/status, /s", "Show session status"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			ValueStyle.Render(fmt.Sprintf("%-18s", c.cmd)),
			DimStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(DimStyle.Render("Tip: Ctrl+C cancels the in-flight request, Ctrl+D exits"))
	fmt.Println()
}

// printCatalog lists the catalog endpoints inside the REPL.
func printCatalog(session *ChatSession) {
	list := session.App.Catalog.List()
	if len(list) == 0 {
		fmt.Println(DimStyle.Render("[No endpoints configured]"))
		return
	}
	fmt.Println()
	for _, d := range list {
		marker := "  "
		if d.Name == session.Endpoint {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Printf("%s%s  %s\n",
			marker,
			ValueStyle.Render(fmt.Sprintf("%-24s", d.Name)),
			DimStyle.Render(d.Provider))
	}
	fmt.Println()
}

// printChatStatus prints session status.
func printChatStatus(session *ChatSession) {
	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(SectionStyle.Render("Session Status"))
	fmt.Println(DimStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()
	fmt.Printf("  %s %s\n", DimStyle.Render("Endpoint:"), ValueStyle.Render(session.Endpoint))
	fmt.Printf("  %s %s\n", DimStyle.Render("Account:"), ValueStyle.Render(session.App.Auth.Account()))
	fmt.Printf("  %s %s\n", DimStyle.Render("State:"), ValueStyle.Render(session.App.Auth.State().String()))
	fmt.Printf("  %s %s\n", DimStyle.Render("Duration:"), elapsed.String())
	fmt.Printf("  %s %d exchanges, %d messages\n",
		DimStyle.Render("History:"),
		session.Exchanges,
		session.History.Len())
	fmt.Println()
}

// printChatHistory prints conversation history.
func printChatHistory(session *ChatSession) {
	msgs := session.History.Messages()
	if len(msgs) == 0 {
		fmt.Println(DimStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(SectionStyle.Render("Conversation History"))
	fmt.Println(DimStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range msgs {
		var role string
		switch msg.Role {
		case history.RoleUser:
			role = InfoStyle.Render("You")
		case history.RoleAssistant:
			role = SuccessStyle.Render("AI")
		default:
			role = WarningStyle.Render("System")
		}

		// Rune-based truncation for Unicode safety.
		content := msg.Content
		runes := []rune(content)
		if len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		content = strings.ReplaceAll(content, "\n", " ")

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.Exchanges == 0 {
		fmt.Println(DimStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(SectionStyle.Render("Session Summary"))
	fmt.Println(DimStyle.Render(strings.Repeat("─", 15)))
	fmt.Printf("  %s %d\n", DimStyle.Render("Exchanges:"), session.Exchanges)
	fmt.Printf("  %s %s\n", DimStyle.Render("Endpoint:"), session.Endpoint)
	fmt.Printf("  %s %s\n", DimStyle.Render("Duration:"), elapsed.String())
	fmt.Println()
	fmt.Println(DimStyle.Render("Goodbye!"))
}
