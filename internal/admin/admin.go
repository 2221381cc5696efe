// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin lists AI Foundry projects and their model deployments.
//
// Two control planes are involved: the ARM REST API enumerates the projects a
// subscription holds, and each project's data-plane API enumerates its
// deployments. Listing requires elevated permissions, so every call doubles
// as a capability probe: a 401/403 means the signed-in account is not an
// admin for that surface.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/redcell-tui/internal/auth"
	"github.com/jeranaias/redcell-tui/internal/catalog"
)

const (
	// deploymentsAPIVersion is the data-plane API version for deployment
	// listing.
	deploymentsAPIVersion = "v1"

	// armAPIVersion is the ARM resources API version for project listing.
	armAPIVersion = "2024-04-01"

	// projectFilter selects AI Foundry projects out of the subscription's
	// resources.
	projectFilter = "resourceType eq 'Microsoft.MachineLearningServices/workspaces' and properties.kind eq 'project'"

	// discoveredAPIVersion is assigned to descriptors built from
	// discovery; the listing itself does not carry one.
	discoveredAPIVersion = "2025-01-01-preview"

	// maxResponseSize caps control-plane responses.
	maxResponseSize = 10 * 1024 * 1024
)

// =============================================================================
// ERRORS
// =============================================================================

// FetchError is a control-plane request that never produced a listing:
// transport failure, unreadable body, or an unparseable response. A non-2xx
// status is not a fetch error; it comes back inside the result so the status
// can gate the admin capability check.
type FetchError struct {
	// Op names the failed listing ("list deployments", "list projects").
	Op string
	// Err is the underlying transport or parse failure.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// =============================================================================
// TYPES
// =============================================================================

// Deployment is one model deployment as the data-plane API reports it.
type Deployment struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	ModelName      string `json:"modelName"`
	ModelVersion   string `json:"modelVersion"`
	ModelPublisher string `json:"modelPublisher"`
}

// DeploymentList is a completed deployment listing. An empty project is a
// well-formed result, not an error: Status 200 and an empty slice. A non-2xx
// listing carries the status and an empty slice, so 401/403 can gate the
// admin flag without an error in the way.
type DeploymentList struct {
	Status      int
	Deployments []Deployment
}

// Project is one AI Foundry project in the subscription.
type Project struct {
	Name          string
	ID            string
	Location      string
	ResourceGroup string
}

// ProjectList is a completed project listing, status-carrying like
// DeploymentList.
type ProjectList struct {
	Status   int
	Projects []Project
}

// TokenSource supplies bearer tokens per scope. *auth.Manager satisfies it.
type TokenSource interface {
	GetToken(ctx context.Context, scope auth.Scope) (string, error)
}

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a Client.
type Options struct {
	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource
	// SubscriptionID scopes the project listing.
	SubscriptionID string
	// ServiceHost overrides the per-project data-plane host. Zero value
	// means the real Azure host; tests point this at a local server.
	ServiceHost func(project string) string
	// ManagementBase overrides the ARM base URL.
	ManagementBase string
	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client
}

// Client lists projects and deployments.
type Client struct {
	tokens         TokenSource
	subscriptionID string
	serviceHost    func(project string) string
	managementBase string
	client         *http.Client
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	serviceHost := opts.ServiceHost
	if serviceHost == nil {
		serviceHost = func(project string) string {
			return fmt.Sprintf("https://%s-resource.services.ai.azure.com", project)
		}
	}
	managementBase := opts.ManagementBase
	if managementBase == "" {
		managementBase = "https://management.azure.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		tokens:         opts.Tokens,
		subscriptionID: opts.SubscriptionID,
		serviceHost:    serviceHost,
		managementBase: managementBase,
		client:         client,
	}
}

// ListDeployments enumerates the model deployments of one project.
func (c *Client) ListDeployments(ctx context.Context, project string) (*DeploymentList, error) {
	endpoint := fmt.Sprintf("%s/api/projects/%s/deployments?api-version=%s",
		c.serviceHost(project), url.PathEscape(project), deploymentsAPIVersion)

	body, status, err := c.get(ctx, endpoint, auth.ScopeAIServices)
	if err != nil {
		return nil, &FetchError{Op: "list deployments", Err: err}
	}
	if status != http.StatusOK {
		// The status is the answer: 401/403 means the account cannot list
		// this project. A listing shape, not an error.
		return &DeploymentList{Status: status, Deployments: []Deployment{}}, nil
	}

	var payload struct {
		Value []Deployment `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Op: "list deployments", Err: fmt.Errorf("parse response: %w", err)}
	}
	if payload.Value == nil {
		payload.Value = []Deployment{}
	}
	return &DeploymentList{Status: status, Deployments: payload.Value}, nil
}

// ListProjects enumerates the AI Foundry projects in the subscription
// through the ARM resources API.
func (c *Client) ListProjects(ctx context.Context) (*ProjectList, error) {
	endpoint := fmt.Sprintf("%s/subscriptions/%s/resources?api-version=%s&$filter=%s",
		c.managementBase, url.PathEscape(c.subscriptionID), armAPIVersion,
		url.QueryEscape(projectFilter))

	body, status, err := c.get(ctx, endpoint, auth.ScopeManagementClassic)
	if err != nil {
		return nil, &FetchError{Op: "list projects", Err: err}
	}
	if status != http.StatusOK {
		return &ProjectList{Status: status, Projects: []Project{}}, nil
	}

	var payload struct {
		Value []struct {
			Name     string `json:"name"`
			ID       string `json:"id"`
			Location string `json:"location"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Op: "list projects", Err: fmt.Errorf("parse response: %w", err)}
	}

	projects := make([]Project, 0, len(payload.Value))
	for _, r := range payload.Value {
		projects = append(projects, Project{
			Name:          r.Name,
			ID:            r.ID,
			Location:      r.Location,
			ResourceGroup: resourceGroupFromID(r.ID),
		})
	}
	return &ProjectList{Status: status, Projects: projects}, nil
}

// IsAdmin probes whether the signed-in account can list deployments for the
// project: true iff the listing comes back 200. Transport failures are
// inconclusive and surface as errors.
func (c *Client) IsAdmin(ctx context.Context, project string) (bool, error) {
	list, err := c.ListDeployments(ctx, project)
	if err != nil {
		return false, err
	}
	return list.Status == http.StatusOK, nil
}

// get runs one authenticated GET and returns the body and status.
func (c *Client) get(ctx context.Context, endpoint string, scope auth.Scope) ([]byte, int, error) {
	token, err := c.tokens.GetToken(ctx, scope)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// resourceGroupFromID extracts the resource group segment of an ARM ID:
//
//	/subscriptions/{sub}/resourceGroups/{rg}/providers/...
func resourceGroupFromID(id string) string {
	parts := strings.Split(id, "/")
	if len(parts) > 4 {
		return parts[4]
	}
	return ""
}

// =============================================================================
// CATALOG BRIDGE
// =============================================================================

// ToDescriptors converts discovered deployments into catalog descriptors.
// OpenAI-published deployments point at the project's cognitive services
// host; everything else points at the serverless models host.
func ToDescriptors(project string, deployments []Deployment) []catalog.Descriptor {
	out := make([]catalog.Descriptor, 0, len(deployments))
	for _, d := range deployments {
		desc := catalog.Descriptor{
			Name:       d.Name,
			Provider:   d.ModelPublisher,
			Model:      d.ModelName,
			APIVersion: discoveredAPIVersion,
		}
		if d.ModelPublisher == catalog.ProviderOpenAI {
			desc.BaseURL = fmt.Sprintf("https://%s-resource.cognitiveservices.azure.com/", project)
		} else {
			desc.BaseURL = fmt.Sprintf("https://%s-resource.services.ai.azure.com/models", project)
		}
		out = append(out, desc)
	}
	return out
}
