// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the red-team result store for redcell.
//
// Chat conversations are deliberately never persisted; the store holds only
// red-team sweep results, which exist to be compared across runs.
//
// # Key Types
//
//   - Store: SQLite-backed result store
//   - RunRecord: One sweep (endpoint, time, probe counts)
//   - ResultRecord: One probe's outcome within a run
//
// # Usage
//
// Open a store and record a sweep:
//
//	store, err := storage.Open(path)
//	runID, err := store.SaveRun(run, results)
//
// List past sweeps and reload one:
//
//	runs, err := store.ListRuns(20)
//	results, err := store.RunResults(runs[0].ID)
//
// # Storage Location
//
// Results are stored in ~/.redcell/redteam.db.
package storage
