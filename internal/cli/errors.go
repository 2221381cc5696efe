// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands in redcell.
//
// STANDARDIZED PATTERN:
//   - Handlers ALWAYS return errors (never just print and return nil)
//   - main.go displays the error and exits with GetExitCode(err)
//   - Structured error types from the domain packages map to exit codes
//
// ERROR HANDLING: Errors must not be silently ignored

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/redcell-tui/internal/admin"
	"github.com/jeranaias/redcell-tui/internal/auth"
	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/dispatch"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates an authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates a provider or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out or was canceled
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError represents invalid command usage. The message is shown together
// with a pointer to the help text.
type UsageError struct {
	Command string // Command that was misused (e.g., "redteam")
	Reason  string // Human-readable reason
}

func (e *UsageError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s: %s (see 'redcell help')", e.Command, e.Reason)
	}
	return fmt.Sprintf("%s (see 'redcell help')", e.Reason)
}

// NewUsageError creates a usage error for a command.
func NewUsageError(command, reason string) error {
	return &UsageError{Command: command, Reason: reason}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code using the domain error
// taxonomy. Unknown errors map to ExitGeneralError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var ttyErr *TTYRequiredError
	var authErr *auth.AuthError
	var dispatchErr *dispatch.DispatchError
	var fetchErr *admin.FetchError

	switch {
	case errors.As(err, &usageErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &authErr):
		return ExitAuthError
	case errors.Is(err, catalog.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ExitTimeoutError
	case errors.As(err, &fetchErr), errors.As(err, &dispatchErr):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
