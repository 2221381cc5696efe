// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable render helpers for the redcell TUI.
//
// Components here are stateless render functions: the chat model owns all
// state and hands each component what it needs per frame. Width handling uses
// go-runewidth so wide characters in endpoint names and diagnostics do not
// break the layout.
package components
