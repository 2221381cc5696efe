// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// redteam_cmd.go - Adversarial probe suite commands for the redcell CLI.
//
// Command: redteam
// Short:   Run the adversarial probe suite against a deployment
//
// Examples:
//   redcell redteam categories                  List probe categories
//   redcell redteam run --endpoint gpt-4o       Run the full suite
//   redcell redteam run --category "Prompt Injection"
//   redcell redteam run --prompts ./probes.json --no-save
//
// Command: runs
// Short:   Inspect stored red-team runs
//
// Examples:
//   redcell runs list --limit 10
//   redcell runs show 3
//   redcell runs show 3 --export report.md
//   redcell runs delete 3 --confirm

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jeranaias/redcell-tui/internal/export"
	"github.com/jeranaias/redcell-tui/internal/redteam"
	"github.com/jeranaias/redcell-tui/internal/storage"
)

// =============================================================================
// REDTEAM COMMAND
// =============================================================================

// HandleRedTeam handles the "redteam" command.
func HandleRedTeam(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "categories", "list":
		return handleRedTeamCategories(parser)
	case "run", "":
		return handleRedTeamRun(parser, args)
	default:
		return NewUsageError("redteam", fmt.Sprintf("unknown subcommand %q", parser.Subcommand()))
	}
}

func handleRedTeamCategories(parser *ArgParser) error {
	prompts, err := loadProbeSet(parser)
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Probe Categories"))
	for _, cat := range redteam.Categories(prompts) {
		fmt.Printf("  %s\n", ValueStyle.Render(cat))
	}
	return nil
}

func handleRedTeamRun(parser *ArgParser, args Args) error {
	prompts, err := loadProbeSet(parser)
	if err != nil {
		return err
	}

	if category := parser.Flag("category"); category != "" {
		p, ok := redteam.ByCategory(prompts, category)
		if !ok {
			return NewUsageError("redteam", fmt.Sprintf("unknown category %q", category))
		}
		prompts = []redteam.Prompt{p}
	}

	app, err := NewApp(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C stops the sweep after the current probe.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := app.EnsureSignedIn(ctx); err != nil {
		return err
	}

	endpoint := args.Endpoint
	if endpoint == "" {
		endpoint = parser.Flag("endpoint")
	}
	if endpoint == "" {
		endpoint, err = app.DefaultEndpoint(args)
		if err != nil {
			return err
		}
	}
	if _, err := app.Catalog.FindByName(endpoint); err != nil {
		return err
	}

	fmt.Printf("%s Running %d probes against %s\n\n",
		InfoStyle.Render("[RedTeam]"), len(prompts), ValueStyle.Render(endpoint))

	runner := redteam.NewRunner(app.Dispatcher)
	startedAt := time.Now()

	// Probe-by-probe progress; the sweep continues past individual failures.
	var results []redteam.Result
	for _, p := range prompts {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("[Sweep interrupted]"))
			break
		}
		res := runner.RunOne(ctx, endpoint, p)
		results = append(results, res)
		fmt.Printf("  %s %s\n", RenderStatus(string(res.Verdict)), p.Category)
	}

	printSweepSummary(results)

	if parser.BoolFlag("no-save") || len(results) == 0 {
		return nil
	}

	store, err := openRunStore()
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()

	runID, err := store.SaveRun(endpoint, startedAt, results)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	fmt.Printf("\n%s Saved as run %d (redcell runs show %d)\n",
		SuccessStyle.Render("[OK]"), runID, runID)
	return nil
}

// loadProbeSet returns the built-in suite or, with --prompts, a file-loaded one.
func loadProbeSet(parser *ArgParser) ([]redteam.Prompt, error) {
	path := parser.Flag("prompts")
	if path == "" {
		return redteam.BuiltIn(), nil
	}
	prompts, err := redteam.LoadPrompts(path)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, NewUsageError("redteam", fmt.Sprintf("no probes in %s", path))
	}
	return prompts, nil
}

func printSweepSummary(results []redteam.Result) {
	var answered, blocked, errored int
	for _, r := range results {
		switch r.Verdict {
		case redteam.VerdictAnswered:
			answered++
		case redteam.VerdictBlocked:
			blocked++
		default:
			errored++
		}
	}

	fmt.Println()
	fmt.Println(SectionStyle.Render("Sweep Summary"))
	fmt.Printf("  %s %d\n", RenderLabel("Answered:", 10), answered)
	fmt.Printf("  %s %d\n", RenderLabel("Blocked:", 10), blocked)
	fmt.Printf("  %s %d\n", RenderLabel("Errored:", 10), errored)
}

func openRunStore() (*storage.Store, error) {
	path, err := storage.DefaultPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// =============================================================================
// RUNS COMMAND
// =============================================================================

// HandleRuns handles the "runs" command.
func HandleRuns(args Args) error {
	parser := NewArgParser(args.Raw)

	store, err := openRunStore()
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()

	switch parser.Subcommand() {
	case "", "list":
		return handleRunsList(store, parser)
	case "show":
		return handleRunsShow(store, parser, args)
	case "delete":
		return handleRunsDelete(store, parser)
	default:
		return NewUsageError("runs", fmt.Sprintf("unknown subcommand %q", parser.Subcommand()))
	}
}

func handleRunsList(store *storage.Store, parser *ArgParser) error {
	limit := parser.FlagIntOrDefault("limit", 20)

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println(DimStyle.Render("No stored runs. Run 'redcell redteam run' first."))
		return nil
	}

	fmt.Println(TitleStyle.Render("Red-Team Runs"))
	for _, r := range runs {
		fmt.Printf("  %s  %s  %s  %s\n",
			ValueStyle.Render(fmt.Sprintf("#%-4d", r.ID)),
			DimStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04")),
			ValueStyle.Render(fmt.Sprintf("%-24s", r.Endpoint)),
			DimStyle.Render(fmt.Sprintf("%d answered / %d blocked / %d errored",
				r.Answered, r.Blocked, r.Errored)))
	}
	return nil
}

func handleRunsShow(store *storage.Store, parser *ArgParser, args Args) error {
	runID, err := parseRunID(parser)
	if err != nil {
		return err
	}

	results, err := store.RunResults(runID)
	if err != nil {
		return err
	}

	if path := parser.Flag("export"); path != "" {
		run, err := findRun(store, runID)
		if err != nil {
			return err
		}
		if err := export.WriteFile(path, export.RunReport(run, results)); err != nil {
			return fmt.Errorf("export run: %w", err)
		}
		fmt.Printf("%s Report written to %s\n", SuccessStyle.Render("[OK]"), path)
		return nil
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("Run %d", runID)))
	for _, r := range results {
		fmt.Printf("%s %s\n", RenderStatus(r.Verdict), SectionStyle.Render(r.Category))
		fmt.Printf("  %s %s\n", DimStyle.Render("Probe:"), truncateLine(r.Prompt, 100))
		if r.Response != "" {
			fmt.Printf("  %s %s\n", DimStyle.Render("Reply:"), truncateLine(r.Response, 100))
		}
		if r.Diagnostic != "" {
			displayResponse(r.Diagnostic, args.Plain)
		}
		fmt.Println()
	}
	return nil
}

func handleRunsDelete(store *storage.Store, parser *ArgParser) error {
	runID, err := parseRunID(parser)
	if err != nil {
		return err
	}
	if !parser.BoolFlag("confirm") {
		return NewUsageError("runs", "delete requires --confirm")
	}
	if err := store.DeleteRun(runID); err != nil {
		return err
	}
	fmt.Printf("%s Run %d deleted\n", SuccessStyle.Render("[OK]"), runID)
	return nil
}

// findRun fetches one run's metadata by ID.
func findRun(store *storage.Store, runID int64) (storage.RunRecord, error) {
	runs, err := store.ListRuns(0)
	if err != nil {
		return storage.RunRecord{}, err
	}
	for _, r := range runs {
		if r.ID == runID {
			return r, nil
		}
	}
	return storage.RunRecord{}, fmt.Errorf("run %d: %w", runID, storage.ErrRunNotFound)
}

func parseRunID(parser *ArgParser) (int64, error) {
	raw := parser.Positional(1)
	if raw == "" {
		return 0, NewUsageError("runs", "run ID required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, NewUsageError("runs", fmt.Sprintf("invalid run ID %q", raw))
	}
	return id, nil
}

// truncateLine flattens and rune-truncates text for one-line display.
func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
