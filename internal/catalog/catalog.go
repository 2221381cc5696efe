// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog provides the registry of model deployment endpoints.
//
// The catalog holds two segments: static descriptors loaded from the config
// file at startup, and a dynamic suffix discovered at runtime through the
// admin deployment lister. Static entries are never touched by discovery;
// the dynamic suffix is replaced wholesale on every refresh.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound indicates no descriptor matches the requested name.
	ErrNotFound = errors.New("endpoint not found")

	// ErrInvalidDescriptor indicates a descriptor is missing required fields.
	ErrInvalidDescriptor = errors.New("invalid endpoint descriptor")
)

// ResolutionError wraps a failed endpoint lookup with the name that was asked
// for, so the caller can render a useful diagnostic without a partial call
// ever being attempted.
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve endpoint %q: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DESCRIPTOR
// =============================================================================

// ProviderOpenAI is the provider tag for OpenAI-published deployments, which
// use the deployment-scoped wire shape. Every other tag gets the generic
// chat/completions REST shape.
const ProviderOpenAI = "OpenAI"

// Descriptor describes one named model deployment.
//
// Name is the deployment name and the catalog lookup key; several descriptors
// may share a Model under different deployments. Provider selects the wire
// shape the dispatcher uses. Descriptors are value types: they are replaced,
// never mutated in place.
type Descriptor struct {
	Name       string `toml:"name" json:"name"`
	Provider   string `toml:"provider" json:"provider"`
	BaseURL    string `toml:"base_url" json:"base_url"`
	Model      string `toml:"model" json:"model"`
	APIVersion string `toml:"api_version" json:"api_version"`
}

// Validate checks the descriptor invariants: base URL and deployment name
// must be non-empty.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: deployment name is empty", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.BaseURL) == "" {
		return fmt.Errorf("%w: base URL is empty for %q", ErrInvalidDescriptor, d.Name)
	}
	return nil
}

// IsOpenAI reports whether the descriptor uses the OpenAI-compatible shape.
func (d Descriptor) IsOpenAI() bool {
	return d.Provider == ProviderOpenAI
}

// ModelName returns the model identifier sent on the wire: the Model field
// when present, otherwise the deployment name (Azure OpenAI deployments are
// commonly named after their model).
func (d Descriptor) ModelName() string {
	if d.Model != "" {
		return d.Model
	}
	return d.Name
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the thread-safe endpoint registry.
type Catalog struct {
	mu      sync.RWMutex
	static  []Descriptor
	dynamic []Descriptor
}

// New creates a catalog seeded with static descriptors. Invalid descriptors
// are rejected so a broken config entry is caught at startup, not at the
// first dispatch.
func New(static []Descriptor) (*Catalog, error) {
	for _, d := range static {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	c := &Catalog{static: make([]Descriptor, len(static))}
	copy(c.static, static)
	return c, nil
}

// List returns the current catalog in registration order: static entries
// first, then discovered entries.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, 0, len(c.static)+len(c.dynamic))
	out = append(out, c.static...)
	out = append(out, c.dynamic...)
	return out
}

// Len returns the total number of descriptors.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.static) + len(c.dynamic)
}

// FindByName returns the descriptor whose deployment name matches name.
// Static entries shadow discovered entries with the same name. A missing
// name returns a ResolutionError wrapping ErrNotFound; it never panics.
func (c *Catalog) FindByName(name string) (Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.static {
		if d.Name == name {
			return d, nil
		}
	}
	for _, d := range c.dynamic {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, &ResolutionError{Name: name, Err: ErrNotFound}
}

// RegisterDiscovered replaces the dynamic suffix with freshly fetched
// descriptors. Static entries are left untouched. Invalid descriptors are
// skipped rather than failing the whole refresh: one malformed deployment in
// a project must not wipe the rest of the discovery result.
func (c *Catalog) RegisterDiscovered(list []Descriptor) int {
	kept := make([]Descriptor, 0, len(list))
	for _, d := range list {
		if d.Validate() == nil {
			kept = append(kept, d)
		}
	}
	c.mu.Lock()
	c.dynamic = kept
	c.mu.Unlock()
	return len(kept)
}

// ReplaceStatic swaps the static segment, used by the config watcher when the
// config file changes on disk. Invalid descriptors fail the swap so a broken
// edit never clears a working catalog.
func (c *Catalog) ReplaceStatic(static []Descriptor) error {
	for _, d := range static {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	next := make([]Descriptor, len(static))
	copy(next, static)
	c.mu.Lock()
	c.static = next
	c.mu.Unlock()
	return nil
}

// Names returns the deployment names in catalog order. Convenience for
// pickers and completion.
func (c *Catalog) Names() []string {
	list := c.List()
	names := make([]string, 0, len(list))
	for _, d := range list {
		names = append(names, d.Name)
	}
	return names
}
