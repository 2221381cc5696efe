// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/redcell-tui/internal/auth"
	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/history"
)

// staticTokens satisfies TokenSource with a fixed token.
type staticTokens struct{ token string }

func (s staticTokens) GetToken(ctx context.Context, scope auth.Scope) (string, error) {
	return s.token, nil
}

// capturedRequest records what a fake deployment server received.
type capturedRequest struct {
	Path  string
	Query string
	Auth  string
	Body  completionRequest
}

// newDeploymentServer answers every completion request with reply and records
// what it was asked.
func newDeploymentServer(t *testing.T, reply string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body completionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		mu.Lock()
		captured = append(captured, capturedRequest{
			Path:  r.URL.Path,
			Query: r.URL.RawQuery,
			Auth:  r.Header.Get("Authorization"),
			Body:  body,
		})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func newDispatcher(t *testing.T, descriptors ...catalog.Descriptor) *Dispatcher {
	t.Helper()
	cat, err := catalog.New(descriptors)
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{
		Catalog: cat,
		Tokens:  staticTokens{token: "test-token"},
		Timeout: 10 * time.Second,
	})
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

func TestSendChatOpenAIShape(t *testing.T) {
	srv, captured := newDeploymentServer(t, "hello from the model")
	d := newDispatcher(t, catalog.Descriptor{
		Name:       "travel-o4-mini",
		Provider:   catalog.ProviderOpenAI,
		BaseURL:    srv.URL,
		Model:      "o4-mini",
		APIVersion: "2025-01-01-preview",
	})

	resp, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1",
		Endpoint:       "travel-o4-mini",
		UserMessage:    "hi",
	})
	if err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if resp.Content != "hello from the model" {
		t.Errorf("content: got %q", resp.Content)
	}
	if resp.RequestID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("request ID must be assigned")
	}

	if len(*captured) != 1 {
		t.Fatalf("got %d requests", len(*captured))
	}
	got := (*captured)[0]
	if got.Path != "/openai/deployments/travel-o4-mini/chat/completions" {
		t.Errorf("path: got %q", got.Path)
	}
	if !strings.Contains(got.Query, "api-version=2025-01-01-preview") {
		t.Errorf("query: got %q", got.Query)
	}
	if got.Auth != "Bearer test-token" {
		t.Errorf("auth header: got %q", got.Auth)
	}
	if got.Body.MaxCompletionTokens != MaxCompletionTokensOpenAI || got.Body.MaxTokens != 0 {
		t.Errorf("token budget: got %+v", got.Body)
	}
	if got.Body.Model != "o4-mini" {
		t.Errorf("model: got %q", got.Body.Model)
	}
}

func TestSendChatGenericShape(t *testing.T) {
	srv, captured := newDeploymentServer(t, "deepseek says hi")
	d := newDispatcher(t, catalog.Descriptor{
		Name:       "basic-deepseek",
		Provider:   "DeepSeek",
		BaseURL:    srv.URL + "/models",
		Model:      "DeepSeek-R1-0528",
		APIVersion: "2025-01-01-preview",
	})

	resp, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1",
		Endpoint:       "basic-deepseek",
		UserMessage:    "hi",
	})
	if err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if resp.Content != "deepseek says hi" {
		t.Errorf("content: got %q", resp.Content)
	}

	got := (*captured)[0]
	if got.Path != "/models/chat/completions" {
		t.Errorf("path: got %q", got.Path)
	}
	if got.Body.MaxTokens != MaxTokensGeneric || got.Body.MaxCompletionTokens != 0 {
		t.Errorf("token budget: got %+v", got.Body)
	}
}

// =============================================================================
// MESSAGE CONSTRUCTION
// =============================================================================

func TestSendChatDefaultsSystemPrompt(t *testing.T) {
	srv, captured := newDeploymentServer(t, "ok")
	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})

	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "ep", UserMessage: "hi",
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs := (*captured)[0].Body.Messages
	if len(msgs) < 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Role != history.RoleSystem || msgs[0].Content == "" {
		t.Errorf("first message must be a non-empty system prompt, got %+v", msgs[0])
	}
	if msgs[0].Content != DefaultSystemPrompt {
		t.Errorf("system prompt: got %q", msgs[0].Content)
	}
}

func TestSendChatDuplicateUserTurnNotRepeated(t *testing.T) {
	srv, captured := newDeploymentServer(t, "ok")
	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})

	h := history.FromMessages([]history.Message{
		history.NewUserMessage("tell me a joke"),
	})
	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1",
		Endpoint:       "ep",
		UserMessage:    "tell me a joke",
		History:        h,
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs := (*captured)[0].Body.Messages
	var userTurns int
	for _, m := range msgs {
		if m.Role == history.RoleUser && m.Content == "tell me a joke" {
			userTurns++
		}
	}
	if userTurns != 1 {
		t.Errorf("duplicate user turn sent %d times, want 1", userTurns)
	}
	// And the history did not grow a second identical user turn either.
	var recorded int
	for _, m := range h.Messages() {
		if m.Role == history.RoleUser && m.Content == "tell me a joke" {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("history holds %d identical user turns, want 1", recorded)
	}
}

func TestSendChatRecordsExchange(t *testing.T) {
	srv, _ := newDeploymentServer(t, "the reply")
	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})

	h := history.New()
	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "ep", UserMessage: "hi", History: h,
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("history: got %d messages, want user+assistant", len(msgs))
	}
	if msgs[0].Role != history.RoleUser || msgs[1].Role != history.RoleAssistant {
		t.Errorf("history roles: %+v", msgs)
	}
	if msgs[1].Content != "the reply" {
		t.Errorf("assistant content: got %q", msgs[1].Content)
	}
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestSendChatUnknownEndpoint(t *testing.T) {
	d := newDispatcher(t, catalog.Descriptor{Name: "ep", BaseURL: "https://x"})
	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "missing", UserMessage: "hi",
	})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestSendChatProviderErrorCarriesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"content_filter","message":"filtered"}}`))
	}))
	defer srv.Close()

	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})
	h := history.New()
	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "ep", UserMessage: "hi", History: h,
	})

	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("want *DispatchError, got %v", err)
	}
	if dispatchErr.Status != http.StatusBadRequest {
		t.Errorf("status: got %d", dispatchErr.Status)
	}
	if !strings.Contains(string(dispatchErr.RawPayload()), "content_filter") {
		t.Errorf("payload lost: %q", dispatchErr.RawPayload())
	}
	// A failed dispatch records nothing.
	if h.Len() != 0 {
		t.Errorf("failed dispatch must not touch history, got %d messages", h.Len())
	}
}

func TestSendChatEmbeddedErrorIn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"code":"content_filter","message":"blocked"},"choices":[]}`))
	}))
	defer srv.Close()

	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})
	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "ep", UserMessage: "hi",
	})

	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("want *DispatchError for embedded error, got %v", err)
	}
	if dispatchErr.Status != http.StatusOK {
		t.Errorf("status: got %d, want 200 with embedded error", dispatchErr.Status)
	}
}

// =============================================================================
// RE-ENTRANCY AND STOP
// =============================================================================

func TestSendChatReentrancyGuard(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := d.SendChat(context.Background(), Request{
			ConversationID: "c1", Endpoint: "ep", UserMessage: "first",
		})
		done <- err
	}()
	<-started
	waitUntilBusy(t, d, "c1")

	// Same conversation: rejected while the first is outstanding.
	_, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "ep", UserMessage: "second",
	})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("want ErrBusy, got %v", err)
	}

	// A different conversation is not blocked.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	if _, err := d.SendChat(context.Background(), Request{
		ConversationID: "c2", Endpoint: "ep", UserMessage: "other",
	}); err != nil {
		t.Errorf("other conversation must dispatch: %v", err)
	}

	if err := <-done; err != nil {
		t.Errorf("first dispatch: %v", err)
	}
	// Slot released: the same conversation can dispatch again.
	if _, err := d.SendChat(context.Background(), Request{
		ConversationID: "c1", Endpoint: "ep", UserMessage: "third",
	}); err != nil {
		t.Errorf("after release: %v", err)
	}
}

func TestStopCancelsInflightDispatch(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel r.Context().
		io.Copy(io.Discard, r.Body)
		close(blocked)
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := newDispatcher(t, catalog.Descriptor{
		Name: "ep", Provider: catalog.ProviderOpenAI, BaseURL: srv.URL,
	})

	done := make(chan error, 1)
	go func() {
		_, err := d.SendChat(context.Background(), Request{
			ConversationID: "c1", Endpoint: "ep", UserMessage: "hi",
		})
		done <- err
	}()
	<-blocked

	if !d.Stop("c1") {
		t.Fatal("Stop must find the in-flight dispatch")
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("want context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("canceled dispatch did not return")
	}

	if d.Stop("c1") {
		t.Error("Stop after completion must report no in-flight dispatch")
	}
	if d.Busy("c1") {
		t.Error("conversation must not be busy after cancellation")
	}
}

func waitUntilBusy(t *testing.T, d *Dispatcher, conversationID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !d.Busy(conversationID) {
		if time.Now().After(deadline) {
			t.Fatal("dispatch never became busy")
		}
		time.Sleep(time.Millisecond)
	}
}
