package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RippleEffectInput represents the MCP tool input for a blast radius query.
type RippleEffectInput struct {
	SessionID       string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
	ChangedFile     string `json:"changed_file" jsonschema:"context-relative path of the file under discussion"`
	ChangedFunction string `json:"changed_function,omitempty" jsonschema:"optional symbol name, echoed back for reporting"`
}

// AffectedFileEntry is one node reached by the ripple traversal.
type AffectedFileEntry struct {
	Path   string `json:"path"`
	Depth  int    `json:"depth"`
	Impact string `json:"impact"`
	Reason string `json:"reason"`
}

// RippleEffectResult represents the MCP tool output for a blast radius
// query.
type RippleEffectResult struct {
	SessionID       string              `json:"session_id" jsonschema:"session identifier"`
	ChangedFile     string              `json:"changed_file" jsonschema:"queried file"`
	ChangedFunction string              `json:"changed_function,omitempty" jsonschema:"queried symbol"`
	AffectedFiles   []AffectedFileEntry `json:"affected_files,omitempty" jsonschema:"files reached by reverse dependency edges"`
	TotalAffected   int                 `json:"total_affected" jsonschema:"number of affected files"`
	MaxDepth        int                 `json:"max_depth" jsonschema:"deepest traversal level reached"`
}

// RippleEffectTool defines the MCP tool schema for a blast radius query.
func RippleEffectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "ripple_effect",
		Description: "Reports which context files a change to one file would affect, walking reverse dependency edges.",
	}
}

// RippleEffectHandler executes a blast radius query.
func RippleEffectHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[RippleEffectInput, RippleEffectResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RippleEffectInput) (*mcp.CallToolResult, RippleEffectResult, error) {
		sessionID := selectSession(input.SessionID)

		ripple, err := orch.RippleEffect(ctx, sessionID, input.ChangedFile, input.ChangedFunction)
		if err != nil {
			return errorCallResult(err), RippleEffectResult{}, nil
		}

		result := RippleEffectResult{
			SessionID:       sessionID,
			ChangedFile:     ripple.ChangedFile,
			ChangedFunction: ripple.ChangedFunction,
			TotalAffected:   ripple.TotalAffected,
			MaxDepth:        ripple.MaxDepth,
		}
		for _, affected := range ripple.AffectedFiles {
			result.AffectedFiles = append(result.AffectedFiles, AffectedFileEntry{
				Path:   affected.Path,
				Depth:  affected.Depth,
				Impact: string(affected.Impact),
				Reason: affected.Reason,
			})
		}
		return nil, result, nil
	}
}

// MediatorSummaryInput represents the MCP tool input for a graph summary.
type MediatorSummaryInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
}

// MediatorSummaryResult represents the MCP tool output for a graph summary.
type MediatorSummaryResult struct {
	SessionID         string     `json:"session_id" jsonschema:"session identifier"`
	NodeCount         int        `json:"node_count" jsonschema:"files in the dependency graph"`
	EdgeCount         int        `json:"edge_count" jsonschema:"dependency edges"`
	UnverifiedFiles   []string   `json:"unverified_files,omitempty" jsonschema:"important files no verifier round has examined"`
	Cycles            [][]string `json:"cycles,omitempty" jsonschema:"detected dependency cycles"`
	InterventionCount int        `json:"intervention_count" jsonschema:"lifetime mediator interventions for the session"`
}

// MediatorSummaryTool defines the MCP tool schema for a graph summary.
func MediatorSummaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "mediator_summary",
		Description: "Summarizes the session's dependency graph: counts, cycles, and important unverified files.",
	}
}

// MediatorSummaryHandler executes a graph summary request.
func MediatorSummaryHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[MediatorSummaryInput, MediatorSummaryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MediatorSummaryInput) (*mcp.CallToolResult, MediatorSummaryResult, error) {
		sessionID := selectSession(input.SessionID)

		summary, err := orch.MediatorSummary(ctx, sessionID)
		if err != nil {
			return errorCallResult(err), MediatorSummaryResult{}, nil
		}
		return nil, MediatorSummaryResult{
			SessionID:         sessionID,
			NodeCount:         summary.NodeCount,
			EdgeCount:         summary.EdgeCount,
			UnverifiedFiles:   summary.UnverifiedFiles,
			Cycles:            summary.Cycles,
			InterventionCount: summary.InterventionCount,
		}, nil
	}
}
