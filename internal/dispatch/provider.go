// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// provider.go - the wire protocols for the two deployment families.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/history"
)

// Token budgets per deployment family. Azure OpenAI deployments take the
// newer max_completion_tokens field; serverless model deployments still
// take max_tokens.
const (
	// MaxCompletionTokensOpenAI is the completion budget for Azure OpenAI
	// deployments.
	MaxCompletionTokensOpenAI = 10000

	// MaxTokensGeneric is the completion budget for serverless model
	// deployments (DeepSeek, Llama, Phi, ...).
	MaxTokensGeneric = 2048

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// defaultHTTPTimeout bounds a single completion round trip when the
	// caller's context carries no deadline.
	defaultHTTPTimeout = 120 * time.Second
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client for all completion requests.
// SECURITY: TLS verification required for production.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: defaultHTTPTimeout,
}

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// ChatProvider sends one chat completion to a deployment and returns the
// assistant's text exactly as the provider returned it. Implementations are
// stateless; all per-request state arrives through the arguments.
type ChatProvider interface {
	Send(ctx context.Context, token string, d catalog.Descriptor, messages []history.Message) (string, error)
}

// ProviderFor selects the wire protocol for a descriptor: Azure OpenAI
// deployments speak the deployment-scoped API, everything else speaks the
// serverless chat completions API.
func ProviderFor(d catalog.Descriptor) ChatProvider {
	if d.IsOpenAI() {
		return openAICompatible{}
	}
	return genericREST{}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// completionRequest is the outbound body. Exactly one of the two token
// budget fields is set, selected by the provider.
type completionRequest struct {
	Messages            []history.Message `json:"messages"`
	Model               string            `json:"model"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
	MaxTokens           int               `json:"max_tokens,omitempty"`
}

// completionResponse is the inbound body. Error is kept raw: some gateways
// embed a structured error in a 200 response, and the classifier wants the
// original bytes.
type completionResponse struct {
	Error   json.RawMessage `json:"error,omitempty"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// =============================================================================
// AZURE OPENAI DEPLOYMENTS
// =============================================================================

// openAICompatible speaks the deployment-scoped Azure OpenAI API:
//
//	POST {base}/openai/deployments/{name}/chat/completions?api-version={v}
type openAICompatible struct{}

func (openAICompatible) Send(ctx context.Context, token string, d catalog.Descriptor, messages []history.Message) (string, error) {
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(d.BaseURL, "/"),
		url.PathEscape(d.Name),
		url.QueryEscape(d.APIVersion))

	body := completionRequest{
		Messages:            messages,
		Model:               d.ModelName(),
		MaxCompletionTokens: MaxCompletionTokensOpenAI,
	}
	return post(ctx, endpoint, token, body)
}

// =============================================================================
// SERVERLESS MODEL DEPLOYMENTS
// =============================================================================

// genericREST speaks the serverless chat completions API used by non-OpenAI
// model deployments:
//
//	POST {base}/chat/completions
type genericREST struct{}

func (genericREST) Send(ctx context.Context, token string, d catalog.Descriptor, messages []history.Message) (string, error) {
	endpoint := strings.TrimSuffix(d.BaseURL, "/") + "/chat/completions"

	body := completionRequest{
		Messages:  messages,
		Model:     d.ModelName(),
		MaxTokens: MaxTokensGeneric,
	}
	return post(ctx, endpoint, token, body)
}

// =============================================================================
// SHARED TRANSPORT
// =============================================================================

// post runs one completion round trip. Any failure that carries a provider
// body returns a *DispatchError so the classifier can dig into it.
func post(ctx context.Context, endpoint, token string, body completionRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "redcell/0.1.0")

	resp, err := sharedHTTPClient.Do(req)

	// SECURITY: Clear Authorization header immediately after request to
	// prevent logging.
	req.Header.Del("Authorization")

	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", &DispatchError{Status: resp.StatusCode, Payload: respBody}
	}

	var cr completionResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	// Some gateways answer 200 with an embedded error object instead of a
	// completion. Surface it the same way as an HTTP-level failure.
	if len(cr.Error) > 0 && string(cr.Error) != "null" {
		return "", &DispatchError{Status: resp.StatusCode, Payload: respBody}
	}
	if len(cr.Choices) == 0 {
		return "", &DispatchError{Status: resp.StatusCode, Payload: respBody}
	}

	return cr.Choices[0].Message.Content, nil
}

// readResponse reads the response body with a size limit.
//
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
