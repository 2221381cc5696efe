// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch routes chat requests to model deployments.
//
// The Dispatcher owns everything between "the user pressed Enter" and "the
// assistant's text came back": endpoint resolution, token acquisition,
// request construction, the in-flight guard, and cancellation. It never
// retries - completions bill per token, and a silent retry risks double
// billing and duplicate content, so that decision stays with the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/redcell-tui/internal/auth"
	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/history"
)

// DefaultSystemPrompt is used when a request carries no system prompt. A
// well-formed request always opens with exactly one system message.
const DefaultSystemPrompt = "You are a helpful assistant."

// =============================================================================
// ERRORS
// =============================================================================

// ErrBusy indicates a dispatch is already in flight for the conversation. The
// caller stops or waits for the outstanding request instead of stacking a
// second one.
var ErrBusy = errors.New("a request is already in flight for this conversation")

// DispatchError is a provider-side failure carrying the raw response body for
// the classifier.
type DispatchError struct {
	// Status is the HTTP status code. A 200 is possible: some gateways
	// embed the error object in a successful response.
	Status int
	// Payload is the verbatim response body.
	Payload []byte
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed (HTTP %d)", e.Status)
}

// RawPayload returns the provider's response body verbatim.
func (e *DispatchError) RawPayload() []byte {
	return e.Payload
}

// =============================================================================
// DISPATCHER
// =============================================================================

// TokenSource supplies bearer tokens per scope. *auth.Manager satisfies it.
type TokenSource interface {
	GetToken(ctx context.Context, scope auth.Scope) (string, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Catalog resolves endpoint names to descriptors. Required.
	Catalog *catalog.Catalog
	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource
	// SystemPrompt overrides DefaultSystemPrompt for requests that carry
	// none of their own.
	SystemPrompt string
	// Timeout bounds one dispatch end to end. Zero means no deadline
	// beyond the transport's own.
	Timeout time.Duration
	// RequestsPerMinute rate-limits dispatches (0 = unlimited).
	RequestsPerMinute int
	// ProviderFor overrides wire protocol selection. Tests point this at
	// a fake; the zero value selects by descriptor.
	ProviderFor func(catalog.Descriptor) ChatProvider
}

// Request is one chat dispatch.
type Request struct {
	// ConversationID keys the in-flight guard. Each UI session uses one
	// stable ID; concurrent sessions never block each other.
	ConversationID string
	// Endpoint is the deployment name to resolve in the catalog.
	Endpoint string
	// UserMessage is the new user turn.
	UserMessage string
	// SystemPrompt overrides the dispatcher's default for this request.
	SystemPrompt string
	// History is the conversation so far. May be nil for one-shot calls.
	// On success the user turn and the assistant reply are recorded here.
	History *history.History
}

// Response is a completed dispatch.
type Response struct {
	// RequestID uniquely identifies the dispatch, for logs and stores.
	RequestID uuid.UUID
	// Endpoint is the resolved descriptor the request went to.
	Endpoint catalog.Descriptor
	// Content is the assistant's text exactly as the provider returned
	// it; markdown is preserved for the caller to render.
	Content string
}

// inflightCall tracks one outstanding dispatch.
type inflightCall struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// Dispatcher routes chat requests. Safe for concurrent use.
type Dispatcher struct {
	catalog      *catalog.Catalog
	tokens       TokenSource
	systemPrompt string
	timeout      time.Duration
	limiter      *rate.Limiter
	providerFor  func(catalog.Descriptor) ChatProvider

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	providerFor := opts.ProviderFor
	if providerFor == nil {
		providerFor = ProviderFor
	}
	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Dispatcher{
		catalog:      opts.Catalog,
		tokens:       opts.Tokens,
		systemPrompt: systemPrompt,
		timeout:      opts.Timeout,
		limiter:      rate.NewLimiter(limit, 1),
		providerFor:  providerFor,
		inflight:     make(map[string]*inflightCall),
	}
}

// SendChat runs one dispatch: resolve the endpoint, acquire a token, build
// the message list, send, and record the exchange in the request's history.
//
// While a dispatch is outstanding for req.ConversationID, a second SendChat
// for the same conversation fails fast with ErrBusy.
func (d *Dispatcher) SendChat(ctx context.Context, req Request) (*Response, error) {
	desc, err := d.catalog.FindByName(req.Endpoint)
	if err != nil {
		return nil, err
	}

	ctx, call, err := d.begin(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer d.end(req.ConversationID, call.id)

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := d.tokens.GetToken(ctx, auth.ScopeCognitiveServices)
	if err != nil {
		return nil, err
	}

	messages := d.buildMessages(req)

	content, err := d.providerFor(desc).Send(ctx, token, desc, messages)
	if err != nil {
		return nil, err
	}

	if req.History != nil {
		req.History.Append(history.NewUserMessage(req.UserMessage))
		req.History.Append(history.NewAssistantMessage(content))
	}

	return &Response{RequestID: call.id, Endpoint: desc, Content: content}, nil
}

// Stop cancels the outstanding dispatch for a conversation, if any, and
// reports whether there was one. The canceled SendChat returns the context
// error; nothing is recorded in its history.
func (d *Dispatcher) Stop(conversationID string) bool {
	d.mu.Lock()
	call, ok := d.inflight[conversationID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	call.cancel()
	return true
}

// Busy reports whether a dispatch is outstanding for the conversation.
func (d *Dispatcher) Busy(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[conversationID]
	return ok
}

// begin registers the dispatch in the in-flight table and derives its
// cancellable context.
func (d *Dispatcher) begin(ctx context.Context, conversationID string) (context.Context, *inflightCall, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inflight[conversationID]; ok {
		return nil, nil, ErrBusy
	}

	var cancel context.CancelFunc
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	call := &inflightCall{id: uuid.New(), cancel: cancel}
	d.inflight[conversationID] = call
	return ctx, call, nil
}

// end releases the in-flight slot. The ID check keeps a slow Stop from
// releasing a successor's slot.
func (d *Dispatcher) end(conversationID string, id uuid.UUID) {
	d.mu.Lock()
	if call, ok := d.inflight[conversationID]; ok && call.id == id {
		call.cancel()
		delete(d.inflight, conversationID)
	}
	d.mu.Unlock()
}

// buildMessages assembles the wire message list: exactly one system message
// first, the prior conversation, then the new user turn. A user turn
// identical to the trailing user turn in history is not added twice.
func (d *Dispatcher) buildMessages(req Request) []history.Message {
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = d.systemPrompt
	}

	var prior []history.Message
	if req.History != nil {
		prior = req.History.Messages()
	}

	messages := make([]history.Message, 0, len(prior)+2)
	messages = append(messages, history.NewSystemMessage(systemPrompt))
	duplicate := false
	for _, m := range prior {
		if m.Role == history.RoleSystem {
			// History may carry stale system turns from older sessions;
			// the request's own system prompt wins.
			continue
		}
		messages = append(messages, m)
		if m.Role == history.RoleUser && m.Content == req.UserMessage {
			duplicate = true
		}
	}
	if !duplicate {
		messages = append(messages, history.NewUserMessage(req.UserMessage))
	}
	return messages
}
