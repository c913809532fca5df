package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ActiveSessionPayload represents the MCP resource payload for the active
// session pointer.
type ActiveSessionPayload struct {
	Session struct {
		SessionID *string `json:"session_id"`
	} `json:"session"`
}

// ActiveSessionResource defines the MCP resource for the active session
// pointer.
func ActiveSessionResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "review_current",
		Title:       "Active Review Session",
		Description: "Readable active session pointer used when tool calls omit session_id",
		MIMEType:    "application/json",
		URI:         "review://current",
	}
}

// ActiveSessionResourceHandler returns a readable active session resource.
func ActiveSessionResourceHandler(getActive func() string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if getActive == nil {
			return nil, fmt.Errorf("active session getter is not configured")
		}

		uri := ActiveSessionResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		if uri != "review://current" {
			return nil, fmt.Errorf("invalid URI: expected review://current, got %q", uri)
		}

		payload := ActiveSessionPayload{}
		if active := getActive(); active != "" {
			payload.Session.SessionID = &active
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal active session: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// SessionContextResourceTemplate defines the MCP resource template for a
// session's context projection.
func SessionContextResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "session_context",
		Title:       "Session Context",
		Description: "Readable context projection for a review session. URI format: review://{session_id}/context",
		MIMEType:    "application/json",
		URITemplate: "review://{session_id}/context",
	}
}

// SessionContextResourceHandler returns a readable session context resource.
func SessionContextResourceHandler(orch Orchestrator) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if orch == nil {
			return nil, fmt.Errorf("orchestrator is not configured")
		}

		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("session ID is required; use URI format review://{session_id}/context")
		}
		uri := req.Params.URI

		sessionID, err := parseSessionIDFromContextURI(uri)
		if err != nil {
			return nil, fmt.Errorf("parse session ID from URI: %w", err)
		}

		view, err := orch.GetContext(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("session context read failed: %w", err)
		}

		data, err := json.MarshalIndent(contextResultFromView(view), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal session context: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// parseSessionIDFromContextURI extracts the session ID from a URI of the form
// review://{session_id}/context. It requires an actual session ID and rejects
// URIs with extra path segments, query parameters, or fragments.
func parseSessionIDFromContextURI(uri string) (string, error) {
	prefix := "review://"
	suffix := "/context"

	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("URI must start with %q", prefix)
	}
	rest := strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(rest, suffix) {
		return "", fmt.Errorf("URI must end with %q", suffix)
	}

	sessionID := strings.TrimSpace(strings.TrimSuffix(rest, suffix))
	if sessionID == "" {
		return "", fmt.Errorf("session ID is required in URI")
	}
	if sessionID == "_" {
		return "", fmt.Errorf("session ID placeholder '_' is not a valid session ID")
	}
	if strings.ContainsAny(sessionID, "/?#") {
		return "", fmt.Errorf("URI must not contain path segments, query parameters, or fragments in the session ID")
	}
	return sessionID, nil
}
