// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnose turns raw provider failures into renderable diagnostics.
//
// The classifier runs inside an already-failing path, so it is total: any
// input - structured Azure OpenAI error JSON, a bare Go error, a string, nil -
// produces a Diagnostic with a non-empty summary, and nothing here ever
// panics. Unrecognized shapes are carried verbatim so no diagnostic
// information is silently dropped.
package diagnose

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// genericSummary is shown when the failure carries no provider message.
const genericSummary = "There was an error connecting to the AI service."

// =============================================================================
// TYPES
// =============================================================================

// CategoryResult is one content-filter category that fired.
type CategoryResult struct {
	// Category is the filter category name ("hate", "violence", ...).
	Category string
	// Filtered is always true for entries in a Diagnostic; categories the
	// provider reported but did not filter are dropped.
	Filtered bool
	// Detected is the provider's detection sub-flag, when present.
	Detected *bool
}

// Diagnostic is the classified form of a provider failure.
type Diagnostic struct {
	// Summary is a human-readable description. Never empty.
	Summary string
	// Code is the provider error code ("content_filter", "429", ...), or
	// "" when the failure carried none.
	Code string
	// Filtered lists the content-filter categories that fired, sorted by
	// category name.
	Filtered []CategoryResult
	// Raw is the verbatim JSON of an unrecognized structured error, kept
	// so unanticipated shapes still reach the user. Empty when the error
	// was understood or was not structured at all.
	Raw string
}

// payloadCarrier is satisfied by errors that carry the provider's raw
// response body (dispatch errors do).
type payloadCarrier interface {
	RawPayload() []byte
}

// =============================================================================
// CLASSIFY
// =============================================================================

// Classify builds a Diagnostic from any failure value.
func Classify(raw interface{}) Diagnostic {
	switch v := raw.(type) {
	case nil:
		return Diagnostic{Summary: genericSummary}
	case payloadCarrier:
		return classifyWith(v.RawPayload(), fallbackSummary(raw))
	case []byte:
		return classifyWith(v, genericSummary)
	case json.RawMessage:
		return classifyWith(v, genericSummary)
	case map[string]interface{}:
		return classifyObject(v, genericSummary)
	case error:
		return Diagnostic{Summary: genericSummary + "\n\n" + v.Error()}
	case string:
		if v == "" {
			return Diagnostic{Summary: genericSummary}
		}
		return Diagnostic{Summary: genericSummary + "\n\n" + v}
	default:
		return Diagnostic{Summary: fmt.Sprintf("%s\n\n%v", genericSummary, v)}
	}
}

// fallbackSummary is the summary used when a payload-carrying error's body
// turns out to be unparseable.
func fallbackSummary(raw interface{}) string {
	if err, ok := raw.(error); ok {
		return genericSummary + "\n\n" + err.Error()
	}
	return genericSummary
}

func classifyWith(payload []byte, fallback string) Diagnostic {
	if len(payload) == 0 {
		return Diagnostic{Summary: fallback}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		// Not JSON: carry the body text so it is not lost.
		return Diagnostic{Summary: fallback, Raw: string(payload)}
	}
	return classifyObject(obj, fallback)
}

// classifyObject extracts the provider error shape:
//
//	{ "error": { "code", "message", "innererror": { "content_filter_result": {...} } } }
//
// with the code also accepted at the top level.
func classifyObject(obj map[string]interface{}, fallback string) Diagnostic {
	d := Diagnostic{Summary: fallback}

	code, _ := obj["code"].(string)
	var message string
	var filterResult map[string]interface{}

	if inner, ok := obj["error"].(map[string]interface{}); ok {
		if code == "" {
			code, _ = inner["code"].(string)
		}
		message, _ = inner["message"].(string)
		if ie, ok := inner["innererror"].(map[string]interface{}); ok {
			filterResult, _ = ie["content_filter_result"].(map[string]interface{})
		}
	}

	if code == "" && message == "" && filterResult == nil {
		// Unrecognized structure: generic summary plus a verbatim dump.
		if dump, err := json.MarshalIndent(obj, "", "  "); err == nil {
			d.Raw = string(dump)
		}
		return d
	}

	if message != "" {
		d.Summary = fallback + "\n\n" + message
	}
	d.Code = code
	d.Filtered = extractFiltered(filterResult)
	return d
}

// extractFiltered keeps only the categories whose filtered flag is true,
// sorted by name so output is stable.
func extractFiltered(filterResult map[string]interface{}) []CategoryResult {
	if len(filterResult) == 0 {
		return nil
	}
	var out []CategoryResult
	for cat, v := range filterResult {
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		filtered, _ := entry["filtered"].(bool)
		if !filtered {
			continue
		}
		cr := CategoryResult{Category: cat, Filtered: true}
		if dv, ok := entry["detected"].(bool); ok {
			detected := dv
			cr.Detected = &detected
		}
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// =============================================================================
// RENDERING
// =============================================================================

// Markdown renders the diagnostic as markdown for display in place of an
// assistant reply.
func (d Diagnostic) Markdown() string {
	var b strings.Builder
	b.WriteString(d.Summary)
	if d.Code != "" {
		fmt.Fprintf(&b, "\n\n**Error code:** `%s`", d.Code)
	}
	if len(d.Filtered) > 0 {
		b.WriteString("\n\n**Filtered Details:**\n")
		for _, cr := range d.Filtered {
			fmt.Fprintf(&b, "\nDetection: **%s**\nFiltered: **%v**", cr.Category, cr.Filtered)
			if cr.Detected != nil {
				fmt.Fprintf(&b, "\nDetected: **%v**", *cr.Detected)
			}
		}
	}
	if d.Raw != "" {
		fmt.Fprintf(&b, "\n\n**Error object:**\n```json\n%s\n```", d.Raw)
	}
	return b.String()
}

// FilterHit reports whether the failure involved a content filter, either by
// code or by at least one fired category. The red-team runner uses this to
// mark a probe as blocked.
func (d Diagnostic) FilterHit() bool {
	return d.Code == "content_filter" || len(d.Filtered) > 0
}
