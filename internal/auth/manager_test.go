// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeIDP is a minimal Entra ID stand-in serving the device code and token
// endpoints.
type fakeIDP struct {
	srv *httptest.Server

	deviceCodeRequests atomic.Int32
	refreshRequests    atomic.Int32

	mu          sync.Mutex
	failRefresh map[string]string // scope fragment -> oauth error code
	failDevice  map[string]bool   // scope fragment -> reject device flow
	slowDevice  time.Duration     // delay before approving a device poll
}

func newFakeIDP() *fakeIDP {
	idp := &fakeIDP{
		failRefresh: make(map[string]string),
		failDevice:  make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", idp.handleDeviceCode)
	mux.HandleFunc("/token", idp.handleToken)
	idp.srv = httptest.NewServer(mux)
	return idp
}

func (f *fakeIDP) Close() { f.srv.Close() }

func (f *fakeIDP) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:       f.srv.URL + "/authorize",
		TokenURL:      f.srv.URL + "/token",
		DeviceAuthURL: f.srv.URL + "/devicecode",
	}
}

func (f *fakeIDP) scopeMatches(scope string, set map[string]string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fragment, code := range set {
		if fragment != "" && containsScope(scope, fragment) {
			return code, true
		}
	}
	return "", false
}

func containsScope(scope, fragment string) bool {
	return fragment != "" && strings.Contains(scope, fragment)
}

func (f *fakeIDP) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	scope := r.Form.Get("scope")

	f.mu.Lock()
	rejected := false
	for fragment := range f.failDevice {
		if containsScope(scope, fragment) {
			rejected = true
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if rejected {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"access_denied"}`)
		return
	}

	f.deviceCodeRequests.Add(1)
	fmt.Fprintf(w, `{
		"device_code": "dev-code-1",
		"user_code": "ABCD-1234",
		"verification_uri": "https://contoso.example/devicelogin",
		"expires_in": 900,
		"interval": 1
	}`)
}

func (f *fakeIDP) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	grant := r.Form.Get("grant_type")
	scope := r.Form.Get("scope")

	w.Header().Set("Content-Type", "application/json")

	switch grant {
	case "refresh_token":
		f.refreshRequests.Add(1)
		if code, ok := f.scopeMatches(scope, f.failRefresh); ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":%q,"error_description":"refresh rejected"}`, code)
			return
		}
		f.writeToken(w, "refresh", scope)
	case "urn:ietf:params:oauth:grant-type:device_code":
		f.mu.Lock()
		delay := f.slowDevice
		f.mu.Unlock()
		time.Sleep(delay)
		f.writeToken(w, "device", scope)
	default:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unsupported_grant_type"}`)
	}
}

func (f *fakeIDP) writeToken(w http.ResponseWriter, via, scope string) {
	resp := map[string]interface{}{
		"access_token":  "at-" + via + "-" + firstScope(scope),
		"token_type":    "Bearer",
		"refresh_token": "rt-" + via,
		"expires_in":    3600,
		"id_token":      fakeJWT(map[string]interface{}{"preferred_username": "dev@contoso.example"}),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func firstScope(scope string) string {
	for i := 0; i < len(scope); i++ {
		if scope[i] == ' ' {
			return scope[:i]
		}
	}
	return scope
}

// fakeJWT builds an unsigned three-segment token carrying claims.
func fakeJWT(claims map[string]interface{}) string {
	enc := func(v interface{}) string {
		b, _ := json.Marshal(v)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	return enc(map[string]string{"alg": "none"}) + "." + enc(claims) + ".sig"
}

func newTestManager(idp *fakeIDP) (*Manager, *atomic.Int32) {
	var prompts atomic.Int32
	m := NewManager(Options{
		TenantID: "test-tenant",
		ClientID: "test-client",
		Endpoint: idp.endpoint(),
		Prompt: func(uri, code string) {
			prompts.Add(1)
		},
		LogoutURL:  idp.srv.URL + "/logout",
		HTTPClient: idp.srv.Client(),
	})
	return m, &prompts
}

// =============================================================================
// SIGN IN
// =============================================================================

func TestSignInFallsBackToDeviceFlow(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	m, prompts := newTestManager(idp)

	require.Equal(t, StateSignedOut, m.State())

	err := m.SignIn(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSignedIn, m.State())
	assert.Equal(t, "dev@contoso.example", m.Account())
	// No refresh token existed, so the interactive flow ran exactly once.
	assert.EqualValues(t, 1, prompts.Load())
	assert.EqualValues(t, 1, idp.deviceCodeRequests.Load())
}

func TestSignInFailureClearsSession(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	idp.failDevice["cognitiveservices"] = true
	m, _ := newTestManager(idp)

	err := m.SignIn(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "sign in", authErr.Op)

	assert.Equal(t, StateSignedOut, m.State())
	assert.Empty(t, m.Account())

	// No partial state: a token request after the failed sign-in reports
	// the signed-out condition, it does not find a leftover token.
	_, err = m.GetToken(context.Background(), PrimaryScope)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

// =============================================================================
// GET TOKEN
// =============================================================================

func TestGetTokenRequiresSignIn(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	m, _ := newTestManager(idp)

	_, err := m.GetToken(context.Background(), ScopeManagementARM)
	require.ErrorIs(t, err, ErrNotSignedIn)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ScopeManagementARM, authErr.Scope)
}

func TestGetTokenSecondScopeIsSilent(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	m, prompts := newTestManager(idp)

	require.NoError(t, m.SignIn(context.Background()))
	require.EqualValues(t, 1, prompts.Load())

	// The second scope rides the refresh token: no new prompt.
	tok, err := m.GetToken(context.Background(), ScopeManagementARM)
	require.NoError(t, err)
	assert.Contains(t, tok, "at-refresh-")
	assert.EqualValues(t, 1, prompts.Load())

	// And it is cached: a second call does not hit the wire again.
	before := idp.refreshRequests.Load()
	tok2, err := m.GetToken(context.Background(), ScopeManagementARM)
	require.NoError(t, err)
	assert.Equal(t, tok, tok2)
	assert.Equal(t, before, idp.refreshRequests.Load())
}

func TestScopeFailureLeavesOtherTokensIntact(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	m, _ := newTestManager(idp)
	require.NoError(t, m.SignIn(context.Background()))

	primary, err := m.GetToken(context.Background(), PrimaryScope)
	require.NoError(t, err)

	// Both the silent and interactive paths fail for the management scope.
	idp.mu.Lock()
	idp.failRefresh["management.azure.com"] = "invalid_grant"
	idp.failDevice["management.azure.com"] = true
	idp.mu.Unlock()

	_, err = m.GetToken(context.Background(), ScopeManagementARM)
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)

	// The session survives, and the primary scope's token is still served
	// from cache.
	assert.Equal(t, StateSignedIn, m.State())
	got, err := m.GetToken(context.Background(), PrimaryScope)
	require.NoError(t, err)
	assert.Equal(t, primary, got)
}

func TestNonInteractionRefreshErrorDoesNotPrompt(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	m, prompts := newTestManager(idp)
	require.NoError(t, m.SignIn(context.Background()))
	base := prompts.Load()

	// A server-side failure is not an interaction-required signal; the
	// manager must surface it rather than opening a prompt.
	idp.mu.Lock()
	idp.failRefresh["ai.azure.com"] = "temporarily_unavailable"
	idp.mu.Unlock()

	_, err := m.GetToken(context.Background(), ScopeAIServices)
	require.Error(t, err)
	assert.Equal(t, base, prompts.Load())
}

func TestConcurrentGetTokenSingleFlight(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	idp.mu.Lock()
	idp.slowDevice = 100 * time.Millisecond
	idp.mu.Unlock()
	m, prompts := newTestManager(idp)

	require.NoError(t, m.SignIn(context.Background()))
	require.EqualValues(t, 1, prompts.Load())

	// Force the next acquisition onto the interactive path: no refresh
	// token, no cached token for the scope.
	m.mu.Lock()
	m.refreshToken = ""
	delete(m.tokens, ScopeAIServices)
	m.mu.Unlock()

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.GetToken(context.Background(), ScopeAIServices)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i], "all callers share one flight's token")
	}
	// The burst coalesced to a single device-code flow: callers in flight
	// joined it, and latecomers hit the cache. One new prompt, total.
	assert.EqualValues(t, 2, prompts.Load())
	assert.EqualValues(t, 2, idp.deviceCodeRequests.Load())
}

// =============================================================================
// SIGN OUT
// =============================================================================

func TestSignOutClearsLocallyEvenOnRemoteFailure(t *testing.T) {
	idp := newFakeIDP()
	defer idp.Close()
	m, _ := newTestManager(idp)
	require.NoError(t, m.SignIn(context.Background()))

	// Point remote sign-out at a dead address; local clearing must still
	// run.
	m.logoutURL = "http://127.0.0.1:1/logout"
	err := m.SignOut(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateSignedOut, m.State())
	assert.Empty(t, m.Account())
	_, err = m.GetToken(context.Background(), PrimaryScope)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

// =============================================================================
// HELPERS
// =============================================================================

func TestInteractionRequired(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrInteractionRequired, true},
		{"wrapped sentinel", fmt.Errorf("silent acquisition: %w", ErrInteractionRequired), true},
		{"invalid_grant", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, true},
		{"interaction_required", &oauth2.RetrieveError{ErrorCode: "interaction_required"}, true},
		{"server error", &oauth2.RetrieveError{ErrorCode: "temporarily_unavailable"}, false},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interactionRequired(tt.err))
		})
	}
}

func TestParseClaims(t *testing.T) {
	jwt := fakeJWT(map[string]interface{}{"upn": "user@contoso.example"})
	claims := parseClaims(jwt)
	assert.Equal(t, "user@contoso.example", claims["upn"])

	assert.Empty(t, parseClaims("not-a-jwt"))
	assert.Empty(t, parseClaims("a.%%%.c"))
}
