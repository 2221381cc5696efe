// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides the canonical conversation model for redcell.
//
// Every surface (CLI chat, TUI, red-team runner) speaks a slightly different
// vocabulary for conversation turns. This package defines the single Message
// type the dispatcher accepts and the adapters that convert the other shapes
// into it, so normalization happens once at the boundary instead of in every
// call site.
package history

import "strings"

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem marks the system prompt. A well-formed request carries
	// exactly one system message, and it is always first.
	RoleSystem Role = "system"

	// RoleUser marks a message typed (or selected) by the user.
	RoleUser Role = "user"

	// RoleAssistant marks a model reply.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single role-tagged conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// =============================================================================
// HISTORY
// =============================================================================

// History is an ordered conversation, oldest message first.
//
// History is owned by a single UI session and is not safe for concurrent use;
// the event-driven surfaces only touch it from their update loop.
type History struct {
	msgs []Message
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// FromMessages creates a history seeded with msgs. The slice is copied.
func FromMessages(msgs []Message) *History {
	h := &History{msgs: make([]Message, len(msgs))}
	copy(h.msgs, msgs)
	return h
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.msgs)
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Last returns the most recent message and true, or a zero Message and false
// when the history is empty.
func (h *History) Last() (Message, bool) {
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}

// Append adds msg to the history and returns true.
//
// A user message identical to the trailing user message is dropped and Append
// returns false. The guard protects against double-submit races from the UI:
// two quick Enter presses must not bill two identical turns.
func (h *History) Append(msg Message) bool {
	if msg.Role == RoleUser {
		if last, ok := h.Last(); ok && last.Role == RoleUser && last.Content == msg.Content {
			return false
		}
	}
	h.msgs = append(h.msgs, msg)
	return true
}

// Clear removes all messages.
func (h *History) Clear() {
	h.msgs = nil
}

// =============================================================================
// ALTERNATE SHAPE: SENDER/MESSAGE TURNS
// =============================================================================

// Turn is the sender/message shape used by the red-team surface. Sender "ai"
// maps to the assistant role; anything else maps to the user role, matching
// the vocabulary that surface has always used.
type Turn struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// FromTurns converts sender/message turns to canonical messages, preserving
// order and content. Turns with an empty message are kept; turns whose sender
// is "system" become system messages so a model-switch banner survives the
// conversion.
func FromTurns(turns []Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, Message{Role: roleForSender(t.Sender), Content: t.Message})
	}
	return msgs
}

// ToTurns converts canonical messages back to the sender/message shape.
// ToTurns(FromTurns(x)) preserves order and content exactly.
func ToTurns(msgs []Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Sender: senderForRole(m.Role), Message: m.Content})
	}
	return turns
}

func roleForSender(sender string) Role {
	switch strings.ToLower(strings.TrimSpace(sender)) {
	case "ai", "assistant":
		return RoleAssistant
	case "system":
		return RoleSystem
	default:
		return RoleUser
	}
}

func senderForRole(role Role) string {
	switch role {
	case RoleAssistant:
		return "ai"
	case RoleSystem:
		return "system"
	default:
		return "user"
	}
}

// Normalize accepts a conversation in either canonical or loose form and
// returns canonical messages. Entries with an unknown role are coerced to the
// user role rather than dropped, so no content silently disappears.
func Normalize(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Role.Valid() {
			m.Role = roleForSender(string(m.Role))
		}
		out = append(out, m)
	}
	return out
}
