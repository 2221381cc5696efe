// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides the Entra ID session and token manager for redcell.
//
// One Manager owns one signed-in session: the active account, and a cache of
// bearer tokens keyed by scope. Acquisition is always silent-first (refresh
// token grant), falling back to the OAuth2 device code flow when Entra ID
// signals that interaction is required. Concurrent refreshes for the same
// scope are coalesced so two simultaneous callers can never trigger two
// device-code prompts.
//
// The Manager is passed explicitly to every component that needs a token;
// there is no package-level session.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// OPTIONS
// =============================================================================

// DeviceAuthPrompt presents a device-code challenge to the user. It runs on
// the caller's goroutine while the flow polls for completion.
type DeviceAuthPrompt func(verificationURI, userCode string)

// defaultPrompt writes the challenge to stderr, keeping stdout clean for
// piped output.
func defaultPrompt(verificationURI, userCode string) {
	fmt.Fprintf(os.Stderr, "\nTo sign in, open %s and enter the code %s\n\n", verificationURI, userCode)
}

// Options configures a Manager.
type Options struct {
	// TenantID is the Entra ID tenant.
	TenantID string
	// ClientID is the public client app registration.
	ClientID string
	// Prompt presents device-code challenges. Defaults to stderr output.
	Prompt DeviceAuthPrompt
	// Endpoint overrides the Entra ID OAuth2 endpoint. Zero value means
	// the real tenant endpoint; tests point this at a local server.
	Endpoint oauth2.Endpoint
	// LogoutURL overrides the remote sign-out URL. Zero value means the
	// tenant's logout endpoint.
	LogoutURL string
	// HTTPClient overrides the HTTP client used for all identity traffic.
	HTTPClient *http.Client
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the single session and the per-scope token cache.
type Manager struct {
	tenantID  string
	clientID  string
	prompt    DeviceAuthPrompt
	endpoint  oauth2.Endpoint
	logoutURL string
	client    *http.Client

	// group serializes acquisition per scope so concurrent GetToken calls
	// for one scope share a single flight (and at most one prompt).
	group singleflight.Group

	mu           sync.Mutex
	state        State
	account      string
	refreshToken string
	tokens       map[Scope]*oauth2.Token
}

// NewManager creates a signed-out Manager.
func NewManager(opts Options) *Manager {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = microsoft.AzureADEndpoint(opts.TenantID)
	}
	logoutURL := opts.LogoutURL
	if logoutURL == "" {
		logoutURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/logout", opts.TenantID)
	}
	prompt := opts.Prompt
	if prompt == nil {
		prompt = defaultPrompt
	}
	return &Manager{
		tenantID:  opts.TenantID,
		clientID:  opts.ClientID,
		prompt:    prompt,
		endpoint:  endpoint,
		logoutURL: logoutURL,
		client:    opts.HTTPClient,
		state:     StateSignedOut,
		tokens:    make(map[Scope]*oauth2.Token),
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SignedIn reports whether an account is active.
func (m *Manager) SignedIn() bool {
	return m.State() == StateSignedIn
}

// Account returns the display identity of the signed-in account, or "" when
// signed out. The value is parsed from token claims and is display-only; it
// is never used for authorization.
func (m *Manager) Account() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

// =============================================================================
// SIGN IN / SIGN OUT
// =============================================================================

// SignIn establishes the session: silent acquisition for the primary scope,
// falling back to the device code flow. On success the account and the
// primary token are stored. On failure the session is left fully cleared -
// no partial state survives a failed sign-in.
func (m *Manager) SignIn(ctx context.Context) error {
	m.mu.Lock()
	refresh := m.refreshToken
	m.state = StateAuthenticating
	m.mu.Unlock()

	tok, err := m.acquire(ctx, PrimaryScope, refresh)
	if err != nil {
		m.clearSession()
		return &AuthError{Op: "sign in", Scope: PrimaryScope, Err: err}
	}

	m.mu.Lock()
	m.state = StateSignedIn
	m.account = accountFromToken(tok)
	m.tokens[PrimaryScope] = tok
	if tok.RefreshToken != "" {
		m.refreshToken = tok.RefreshToken
	}
	m.mu.Unlock()
	return nil
}

// SignOut invalidates the remote session and clears all local session state.
// Local clearing is unconditional: it happens even when the remote call
// fails, so a dead network can never leave tokens behind.
func (m *Manager) SignOut(ctx context.Context) error {
	defer m.clearSession()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.logoutURL, nil)
	if err != nil {
		return &AuthError{Op: "sign out", Err: err}
	}
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return &AuthError{Op: "sign out", Err: err}
	}
	resp.Body.Close()
	return nil
}

// clearSession wipes every session field. Exception-safe by construction:
// it takes the lock, assigns, and cannot fail.
func (m *Manager) clearSession() {
	m.mu.Lock()
	m.state = StateSignedOut
	m.account = ""
	m.refreshToken = ""
	m.tokens = make(map[Scope]*oauth2.Token)
	m.mu.Unlock()
}

// =============================================================================
// TOKEN ACQUISITION
// =============================================================================

// GetToken returns a bearer token for scope. Cached tokens are served while
// valid; otherwise a silent acquisition runs against the active account,
// falling back to the device code flow on an interaction-required signal.
//
// A failure for one scope never invalidates tokens already held for another
// scope, and never tears down the session.
func (m *Manager) GetToken(ctx context.Context, scope Scope) (string, error) {
	m.mu.Lock()
	if m.state == StateSignedOut {
		m.mu.Unlock()
		return "", &AuthError{Op: "get token", Scope: scope, Err: ErrNotSignedIn}
	}
	if tok, ok := m.tokens[scope]; ok && tok.Valid() {
		m.mu.Unlock()
		return tok.AccessToken, nil
	}
	refresh := m.refreshToken
	m.mu.Unlock()

	// Coalesce concurrent refreshes for the same scope: the losers of the
	// race wait for the winner's token instead of opening a second
	// device-code prompt.
	v, err, _ := m.group.Do(string(scope), func() (interface{}, error) {
		m.setState(StateAuthenticating)
		defer m.setState(StateSignedIn)

		tok, err := m.acquire(ctx, scope, refresh)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.tokens[scope] = tok
		if tok.RefreshToken != "" {
			m.refreshToken = tok.RefreshToken
		}
		m.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", &AuthError{Op: "get token", Scope: scope, Err: err}
	}
	return v.(*oauth2.Token).AccessToken, nil
}

// acquire runs silent-then-interactive acquisition for one scope.
func (m *Manager) acquire(ctx context.Context, scope Scope, refresh string) (*oauth2.Token, error) {
	tok, err := m.acquireSilent(ctx, scope, refresh)
	if err == nil {
		return tok, nil
	}
	if !interactionRequired(err) {
		return nil, err
	}
	return m.acquireInteractive(ctx, scope)
}

// acquireSilent redeems the cached refresh token for an access token bound
// to scope. With no refresh token at all, silent acquisition cannot even be
// attempted and the interactive fallback is signalled immediately.
//
// The refresh grant is posted directly instead of through oauth2.TokenSource:
// the library's refresher omits the scope parameter, and Entra ID needs it to
// select which API surface the new access token is minted for.
func (m *Manager) acquireSilent(ctx context.Context, scope Scope, refresh string) (*oauth2.Token, error) {
	if refresh == "" {
		return nil, ErrInteractionRequired
	}

	form := url.Values{
		"client_id":     {m.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"scope":         {strings.Join(m.oauthConfig(scope).Scopes, " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("silent acquisition: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("silent acquisition: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("silent acquisition: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retrieve := &oauth2.RetrieveError{Response: resp, Body: body}
		var payload struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &payload) == nil {
			retrieve.ErrorCode = payload.Error
			retrieve.ErrorDescription = payload.ErrorDescription
		}
		return nil, fmt.Errorf("silent acquisition: %w", retrieve)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		IDToken      string `json:"id_token"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("silent acquisition: parse response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("silent acquisition: empty access token in response")
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.IDToken != "" {
		tok = tok.WithExtra(map[string]interface{}{"id_token": tr.IDToken})
	}
	return tok, nil
}

// maxTokenResponseSize caps identity responses; a token response is a few KB.
const maxTokenResponseSize = 1 << 20

// acquireInteractive runs the OAuth2 device code flow and blocks until the
// user completes it or ctx expires.
func (m *Manager) acquireInteractive(ctx context.Context, scope Scope) (*oauth2.Token, error) {
	cfg := m.oauthConfig(scope)
	octx := m.oauthContext(ctx)

	da, err := cfg.DeviceAuth(octx)
	if err != nil {
		return nil, fmt.Errorf("device auth request: %w", err)
	}
	m.prompt(da.VerificationURI, da.UserCode)

	tok, err := cfg.DeviceAccessToken(octx, da)
	if err != nil {
		return nil, fmt.Errorf("device auth: %w", err)
	}
	return tok, nil
}

// oauthConfig builds the per-scope OAuth2 config. offline_access asks Entra
// ID for a refresh token so later acquisitions can stay silent.
func (m *Manager) oauthConfig(scope Scope) *oauth2.Config {
	return &oauth2.Config{
		ClientID: m.clientID,
		Endpoint: m.endpoint,
		Scopes:   []string{string(scope), "offline_access", "openid", "profile"},
	}
}

// oauthContext threads the override HTTP client into the oauth2 package.
func (m *Manager) oauthContext(ctx context.Context) context.Context {
	if m.client != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, m.client)
	}
	return ctx
}

func (m *Manager) httpClient() *http.Client {
	if m.client != nil {
		return m.client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	// A failed refresh drops back to signed-in, not signed-out: the
	// account is still active and other scopes' tokens remain usable.
	if m.state != StateSignedOut {
		m.state = s
	}
	m.mu.Unlock()
}

// =============================================================================
// INTERACTION-REQUIRED DETECTION
// =============================================================================

// interactionRequired reports whether err is Entra ID's way of saying the
// refresh token cannot be redeemed without user interaction.
func interactionRequired(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInteractionRequired) {
		return true
	}
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		switch retrieve.ErrorCode {
		case "interaction_required", "invalid_grant", "consent_required", "login_required":
			return true
		}
	}
	return false
}

// =============================================================================
// TOKEN CLAIMS
// =============================================================================

// accountFromToken extracts a display identity from the token's claims.
// Claims are read without signature verification - the value is only ever
// shown to the user who typed the code, never trusted for authorization.
func accountFromToken(tok *oauth2.Token) string {
	raw := tok.AccessToken
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		raw = id
	}
	claims := parseClaims(raw)
	for _, key := range []string{"preferred_username", "upn", "email", "name"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return "signed-in user"
}

// parseClaims decodes the payload segment of a JWT. Returns an empty map for
// anything that is not a three-segment token.
func parseClaims(raw string) map[string]interface{} {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return map[string]interface{}{}
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return map[string]interface{}{}
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return map[string]interface{}{}
	}
	return claims
}
