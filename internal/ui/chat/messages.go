// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Bubble Tea message types for the console. A dispatch produces exactly one
// of ResponseMsg or DispatchFailedMsg.
package chat

import (
	"time"

	"github.com/jeranaias/redcell-tui/internal/dispatch"
)

// ResponseMsg delivers a completed dispatch.
type ResponseMsg struct {
	Response *dispatch.Response
	Elapsed  time.Duration
}

// DispatchFailedMsg delivers a failed or canceled dispatch. The error is
// classified by the update loop, not the sender.
type DispatchFailedMsg struct {
	Err error
}

// NoticeExpiredMsg clears a transient status-bar notice.
type NoticeExpiredMsg struct {
	// ID matches the notice that scheduled this expiry; a newer notice
	// ignores expiries from its predecessors.
	ID int
}
