// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the redcell TUI.
//
// The palette lives in colors.go as Lip Gloss adaptive colors; theme.go
// assembles them into a Theme of ready-to-use styles. The console surfaces
// never construct ad-hoc styles - everything visual comes through a Theme so
// terminals without color degrade in one place.
package styles
