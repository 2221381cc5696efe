// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the full-screen console: a Bubble Tea model wiring
// the transcript viewport, the input line, and the spinner to the request
// dispatcher.
//
// The model owns the conversation history and only touches it from the update
// loop. A dispatch runs in a tea.Cmd goroutine against a snapshot of the
// transcript and reports back as a single message once it has completed; the
// completed exchange is appended to the live history when that message is
// handled, so clearing or rebuilding the transcript mid-flight can never run
// concurrently with the dispatcher. Esc cancels the in-flight request through
// the dispatcher, which tears down the HTTP call via its context.
package chat
