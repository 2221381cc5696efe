// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - scopes, session states, and the auth error taxonomy.
package auth

import (
	"errors"
	"fmt"
)

// =============================================================================
// SCOPES
// =============================================================================

// Scope is an OAuth2 permission identifier for one Azure API surface. Tokens
// are acquired and cached per scope; a token for one scope is never usable
// against another surface.
type Scope string

const (
	// ScopeCognitiveServices grants access to Azure OpenAI deployments.
	ScopeCognitiveServices Scope = "https://cognitiveservices.azure.com/.default"

	// ScopeAIServices grants access to AI Foundry project APIs, including
	// the deployment listing.
	ScopeAIServices Scope = "https://ai.azure.com/.default"

	// ScopeManagementClassic is the classic Azure service management scope.
	ScopeManagementClassic Scope = "https://management.core.windows.net/"

	// ScopeManagementARM grants access to the ARM REST API (project
	// listing).
	ScopeManagementARM Scope = "https://management.azure.com/.default"
)

// PrimaryScope is the scope acquired at sign-in. Holding it proves the
// account works; other scopes are acquired lazily on first use.
const PrimaryScope = ScopeCognitiveServices

// =============================================================================
// SESSION STATE
// =============================================================================

// State is the session lifecycle state.
type State int

const (
	// StateSignedOut means no account is active.
	StateSignedOut State = iota

	// StateAuthenticating means a token acquisition (silent or
	// interactive) is in progress.
	StateAuthenticating

	// StateSignedIn means an account is active and at least one token has
	// been issued.
	StateSignedIn
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed out"
	case StateAuthenticating:
		return "authenticating"
	case StateSignedIn:
		return "signed in"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotSignedIn indicates a token was requested with no active account.
var ErrNotSignedIn = errors.New("must sign in first")

// ErrInteractionRequired indicates silent acquisition cannot proceed and an
// interactive flow is needed. Internal to the silent/interactive fallback;
// callers of the Manager never see it.
var ErrInteractionRequired = errors.New("interaction required")

// AuthError wraps a sign-in or token acquisition failure. It is fatal to the
// operation that triggered it, never to the process.
type AuthError struct {
	// Op names the failed operation ("sign in", "get token", ...).
	Op string
	// Scope is the scope involved, when one applies.
	Scope Scope
	// Err is the underlying cause.
	Err error
}

func (e *AuthError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("auth: %s (scope %s): %v", e.Op, e.Scope, e.Err)
	}
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
