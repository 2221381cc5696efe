// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"reflect"
	"testing"
)

func TestAppendDuplicateUserGuard(t *testing.T) {
	h := New()

	if !h.Append(NewUserMessage("hello")) {
		t.Fatal("first user message should be appended")
	}
	if h.Append(NewUserMessage("hello")) {
		t.Error("identical consecutive user message should be dropped")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 message, got %d", h.Len())
	}

	// An assistant turn in between breaks the run, so the same text is a
	// legitimate new submission.
	h.Append(NewAssistantMessage("hi there"))
	if !h.Append(NewUserMessage("hello")) {
		t.Error("same text after an assistant turn should be appended")
	}
	if h.Len() != 3 {
		t.Errorf("expected 3 messages, got %d", h.Len())
	}
}

func TestAppendDuplicateAssistantAllowed(t *testing.T) {
	h := New()
	h.Append(NewAssistantMessage("ok"))
	if !h.Append(NewAssistantMessage("ok")) {
		t.Error("duplicate guard must only apply to user turns")
	}
}

func TestTurnsRoundTrip(t *testing.T) {
	turns := []Turn{
		{Sender: "system", Message: "Model selected: gpt-4o"},
		{Sender: "user", Message: "first question"},
		{Sender: "ai", Message: "first answer"},
		{Sender: "user", Message: "second question"},
	}

	msgs := FromTurns(turns)
	back := ToTurns(msgs)

	if !reflect.DeepEqual(turns, back) {
		t.Errorf("round trip changed the conversation:\n in: %+v\nout: %+v", turns, back)
	}
}

func TestFromTurnsRoleMapping(t *testing.T) {
	tests := []struct {
		sender string
		want   Role
	}{
		{"ai", RoleAssistant},
		{"AI", RoleAssistant},
		{"assistant", RoleAssistant},
		{"user", RoleUser},
		{"system", RoleSystem},
		{"", RoleUser},
		{"someone-else", RoleUser},
	}
	for _, tt := range tests {
		msgs := FromTurns([]Turn{{Sender: tt.sender, Message: "x"}})
		if msgs[0].Role != tt.want {
			t.Errorf("sender %q: got role %q, want %q", tt.sender, msgs[0].Role, tt.want)
		}
	}
}

func TestNormalizeCoercesUnknownRoles(t *testing.T) {
	in := []Message{
		{Role: "system", Content: "s"},
		{Role: "ai", Content: "a"},
		{Role: "customer", Content: "c"},
	}
	out := Normalize(in)

	want := []Role{RoleSystem, RoleAssistant, RoleUser}
	for i, m := range out {
		if m.Role != want[i] {
			t.Errorf("message %d: got role %q, want %q", i, m.Role, want[i])
		}
	}
	if out[2].Content != "c" {
		t.Error("content must survive role coercion")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	h := New()
	h.Append(NewUserMessage("a"))

	msgs := h.Messages()
	msgs[0].Content = "mutated"

	got, _ := h.Last()
	if got.Content != "a" {
		t.Error("Messages must return a copy, not the backing slice")
	}
}
