// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// redcell.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.redcell/config.toml
//   - ~/.redcell/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete redcell configuration.
type Config struct {
	// Version of the config schema.
	Version string `toml:"version" json:"version"`

	// Identity holds the Entra ID tenant/client/subscription identifiers.
	Identity IdentityConfig `toml:"identity" json:"identity"`

	// Chat holds dispatch defaults.
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Admin holds management-plane settings.
	Admin AdminConfig `toml:"admin" json:"admin"`

	// UI holds presentation settings.
	UI UIConfig `toml:"ui" json:"ui"`

	// Endpoints is the static endpoint catalog. Deployments discovered
	// through the admin lister are appended at runtime and never written
	// back here.
	Endpoints []catalog.Descriptor `toml:"endpoints" json:"endpoints"`
}

// IdentityConfig identifies the Entra ID app registration redcell signs in
// through. All three values come from the Azure portal; none is a secret
// (redcell is a public client).
type IdentityConfig struct {
	// TenantID is the Entra ID (Azure AD) tenant.
	TenantID string `toml:"tenant_id" json:"tenant_id"`
	// ClientID is the app registration's client ID.
	ClientID string `toml:"client_id" json:"client_id"`
	// SubscriptionID scopes the admin project listing.
	SubscriptionID string `toml:"subscription_id" json:"subscription_id"`
}

// ChatConfig contains chat dispatch configuration.
type ChatConfig struct {
	// DefaultEndpoint is the deployment name used when none is selected.
	DefaultEndpoint string `toml:"default_endpoint" json:"default_endpoint"`
	// SystemPrompt overrides the built-in default system prompt.
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RequestsPerMinute rate-limits outbound chat calls (0 = unlimited).
	// LLM calls bill per token; the limiter is a guard against runaway
	// scripted use of the red-team runner.
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// AdminConfig contains management-plane configuration.
type AdminConfig struct {
	// DefaultProject is the AI Foundry project used for the admin
	// capability probe and as the fallback for deployment listing.
	DefaultProject string `toml:"default_project" json:"default_project"`
	// Projects is the list of known AI Foundry project names.
	Projects []string `toml:"projects" json:"projects"`
}

// UIConfig contains presentation configuration.
type UIConfig struct {
	// Markdown enables glamour rendering of assistant replies in the CLI.
	Markdown bool `toml:"markdown" json:"markdown"`
	// WordWrap is the render width for markdown output.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Chat: ChatConfig{
			TimeoutSecs:       120,
			RequestsPerMinute: 30,
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 80,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the redcell configuration directory (~/.redcell).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".redcell"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file. The format is
// selected by extension: .json is JSON, anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = loadJSON(cfg, path)
	} else {
		err = loadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

func loadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// StaticEndpoints loads only the static endpoint list from path. This is the
// catalog watcher's reload hook: a config edit swaps the static segment
// without touching anything else.
func StaticEndpoints(path string) ([]catalog.Descriptor, error) {
	cfg, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return cfg.Endpoints, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Config files are written 0600; they identify the tenant even
// though they hold no secrets.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# redcell configuration file")
	fmt.Fprintln(&buf, "# Generated by redcell - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies REDCELL_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REDCELL_TENANT_ID"); v != "" {
		c.Identity.TenantID = v
	}
	if v := os.Getenv("REDCELL_CLIENT_ID"); v != "" {
		c.Identity.ClientID = v
	}
	if v := os.Getenv("REDCELL_SUBSCRIPTION_ID"); v != "" {
		c.Identity.SubscriptionID = v
	}
	if v := os.Getenv("REDCELL_DEFAULT_ENDPOINT"); v != "" {
		c.Chat.DefaultEndpoint = v
	}
	if v := os.Getenv("REDCELL_DEFAULT_PROJECT"); v != "" {
		c.Admin.DefaultProject = v
	}
	if v := os.Getenv("REDCELL_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Chat.TimeoutSecs = secs
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Chat.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.timeout_secs",
			Message: "must be positive",
		})
	}
	if c.Chat.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.requests_per_minute",
			Message: "must not be negative",
		})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: "must not be negative",
		})
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i, d := range c.Endpoints {
		if err := d.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("endpoints[%d]", i),
				Message: err.Error(),
			})
			continue
		}
		if seen[d.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("endpoints[%d]", i),
				Message: fmt.Sprintf("duplicate deployment name %q", d.Name),
			})
		}
		seen[d.Name] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// HasIdentity reports whether sign-in is configured.
func (c *Config) HasIdentity() bool {
	return c.Identity.TenantID != "" && c.Identity.ClientID != ""
}
