package domain

import (
	"context"

	reviewdomain "github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// IssueEntry is one finding in a tool result.
type IssueEntry struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Severity        string `json:"severity"`
	Status          string `json:"status"`
	Summary         string `json:"summary,omitempty"`
	Description     string `json:"description,omitempty"`
	Evidence        string `json:"evidence,omitempty"`
	Location        string `json:"location,omitempty"`
	RaisedBy        string `json:"raised_by"`
	RaisedRound     int    `json:"raised_round"`
	ResolvedRound   int    `json:"resolved_round,omitempty"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// GetIssuesInput represents the MCP tool input for reading the issue ledger.
type GetIssuesInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
	Filter    string `json:"filter,omitempty" jsonschema:"ledger view (all, unresolved, critical); defaults to all"`
}

// GetIssuesResult represents the MCP tool output for reading the issue
// ledger.
type GetIssuesResult struct {
	SessionID string       `json:"session_id" jsonschema:"session identifier"`
	Filter    string       `json:"filter" jsonschema:"applied ledger view"`
	Issues    []IssueEntry `json:"issues,omitempty" jsonschema:"findings in ledger order"`
}

// GetIssuesTool defines the MCP tool schema for reading the issue ledger.
func GetIssuesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_issues",
		Description: "Returns the session's findings through a fixed view: all, unresolved, or critical.",
	}
}

// GetIssuesHandler executes an issue ledger read.
func GetIssuesHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[GetIssuesInput, GetIssuesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetIssuesInput) (*mcp.CallToolResult, GetIssuesResult, error) {
		sessionID := selectSession(input.SessionID)
		view := reviewdomain.IssueFilter(input.Filter)
		if view == "" {
			view = reviewdomain.FilterAll
		}

		issues, err := orch.GetIssues(ctx, sessionID, view)
		if err != nil {
			return errorCallResult(err), GetIssuesResult{}, nil
		}

		result := GetIssuesResult{SessionID: sessionID, Filter: string(view)}
		for _, issue := range issues {
			result.Issues = append(result.Issues, IssueEntry{
				ID:              issue.ID,
				Category:        string(issue.Category),
				Severity:        string(issue.Severity),
				Status:          string(issue.Status),
				Summary:         issue.Summary,
				Description:     issue.Description,
				Evidence:        issue.Evidence,
				Location:        issue.Location,
				RaisedBy:        string(issue.RaisedBy),
				RaisedRound:     issue.RaisedRound,
				ResolvedRound:   issue.ResolvedRound,
				ResolutionNotes: issue.ResolutionNotes,
			})
		}
		return nil, result, nil
	}
}

// ListIssuesInput represents the MCP tool input for expression-based issue
// queries.
type ListIssuesInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over category, severity, status, raised_by, raised_round, resolved_round"`
}

// ProjectedIssueEntry is one issue projection row in a query result.
type ProjectedIssueEntry struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Severity      string `json:"severity"`
	Status        string `json:"status"`
	RaisedBy      string `json:"raised_by"`
	RaisedRound   int    `json:"raised_round"`
	ResolvedRound int    `json:"resolved_round,omitempty"`
	Summary       string `json:"summary,omitempty"`
}

// ListIssuesResult represents the MCP tool output for expression-based issue
// queries.
type ListIssuesResult struct {
	SessionID string                `json:"session_id" jsonschema:"session identifier"`
	Filter    string                `json:"filter,omitempty" jsonschema:"applied filter expression"`
	Issues    []ProjectedIssueEntry `json:"issues,omitempty" jsonschema:"matching findings in ledger order"`
}

// ListIssuesTool defines the MCP tool schema for expression-based issue
// queries.
func ListIssuesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_issues",
		Description: `Queries findings with an AIP-160 filter expression, e.g. severity = "CRITICAL" AND status != "RESOLVED".`,
	}
}

// ListIssuesHandler executes an expression-based issue query.
func ListIssuesHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[ListIssuesInput, ListIssuesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListIssuesInput) (*mcp.CallToolResult, ListIssuesResult, error) {
		sessionID := selectSession(input.SessionID)

		records, err := orch.ListIssuesFiltered(ctx, sessionID, input.Filter)
		if err != nil {
			return errorCallResult(err), ListIssuesResult{}, nil
		}

		result := ListIssuesResult{SessionID: sessionID, Filter: input.Filter}
		for _, record := range records {
			result.Issues = append(result.Issues, ProjectedIssueEntry{
				ID:            record.IssueID,
				Category:      record.Category,
				Severity:      record.Severity,
				Status:        record.Status,
				RaisedBy:      record.RaisedBy,
				RaisedRound:   record.RaisedRound,
				ResolvedRound: record.ResolvedRound,
				Summary:       record.Summary,
			})
		}
		return nil, result, nil
	}
}
