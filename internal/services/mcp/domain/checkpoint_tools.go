package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CreateCheckpointInput represents the MCP tool input for taking a
// checkpoint.
type CreateCheckpointInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
}

// CreateCheckpointResult represents the MCP tool output for taking a
// checkpoint.
type CreateCheckpointResult struct {
	SessionID    string `json:"session_id" jsonschema:"session identifier"`
	Round        int    `json:"round" jsonschema:"round boundary the checkpoint captures"`
	ContextFiles int    `json:"context_files" jsonschema:"context paths captured"`
	Issues       int    `json:"issues" jsonschema:"findings captured"`
}

// CreateCheckpointTool defines the MCP tool schema for taking a checkpoint.
func CreateCheckpointTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_checkpoint",
		Description: "Takes an on-demand rollback checkpoint at the current round boundary.",
	}
}

// CreateCheckpointHandler executes a checkpoint request.
func CreateCheckpointHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[CreateCheckpointInput, CreateCheckpointResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateCheckpointInput) (*mcp.CallToolResult, CreateCheckpointResult, error) {
		sessionID := selectSession(input.SessionID)

		result, err := orch.Checkpoint(ctx, sessionID)
		if err != nil {
			return errorCallResult(err), CreateCheckpointResult{}, nil
		}
		return nil, CreateCheckpointResult{
			SessionID:    result.SessionID,
			Round:        result.Round,
			ContextFiles: result.ContextFiles,
			Issues:       result.Issues,
		}, nil
	}
}

// RollbackSessionInput represents the MCP tool input for rolling back a
// session.
type RollbackSessionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
	ToRound   int    `json:"to_round" jsonschema:"round boundary to restore"`
}

// RollbackSessionResult represents the MCP tool output for rolling back a
// session.
type RollbackSessionResult struct {
	SessionID    string `json:"session_id" jsonschema:"session identifier"`
	CurrentRound int    `json:"current_round" jsonschema:"round after the rollback"`
	Status       string `json:"status" jsonschema:"session status after the rollback"`
	Issues       int    `json:"issues" jsonschema:"findings restored from the checkpoint"`
	ContextFiles int    `json:"context_files" jsonschema:"context size; discovered files survive rollback"`
}

// RollbackSessionTool defines the MCP tool schema for rolling back a
// session.
func RollbackSessionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "rollback_session",
		Description: "Restores a session to a prior checkpoint; the round log truncates, the ledger restores, context is kept.",
	}
}

// RollbackSessionHandler executes a rollback request.
func RollbackSessionHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[RollbackSessionInput, RollbackSessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollbackSessionInput) (*mcp.CallToolResult, RollbackSessionResult, error) {
		sessionID := selectSession(input.SessionID)

		result, err := orch.Rollback(ctx, sessionID, input.ToRound)
		if err != nil {
			return errorCallResult(err), RollbackSessionResult{}, nil
		}
		return nil, RollbackSessionResult{
			SessionID:    result.SessionID,
			CurrentRound: result.CurrentRound,
			Status:       string(result.Status),
			Issues:       result.Issues,
			ContextFiles: result.ContextFiles,
		}, nil
	}
}
