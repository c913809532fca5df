package domain

import (
	"context"

	"github.com/louisbranch/crosscheck/internal/services/review/app"
	reviewdomain "github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RaisedIssueInput is one finding raised in a round submission.
type RaisedIssueInput struct {
	ID          string `json:"id" jsonschema:"caller-assigned issue identifier, unique per session"`
	Category    string `json:"category" jsonschema:"issue category (functionality, security, performance, error_handling, maintainability, testing)"`
	Severity    string `json:"severity" jsonschema:"issue severity (CRITICAL, HIGH, MEDIUM, LOW)"`
	Summary     string `json:"summary,omitempty" jsonschema:"one-line summary"`
	Description string `json:"description,omitempty" jsonschema:"detailed description"`
	Evidence    string `json:"evidence,omitempty" jsonschema:"supporting evidence"`
	Location    string `json:"location,omitempty" jsonschema:"file or symbol the issue refers to"`
}

// ResolvedIssueInput marks one finding resolved in a round submission.
type ResolvedIssueInput struct {
	ID    string `json:"id" jsonschema:"issue identifier"`
	Notes string `json:"notes,omitempty" jsonschema:"resolution notes"`
}

// SubmitRoundInput represents the MCP tool input for submitting a round.
type SubmitRoundInput struct {
	SessionID        string               `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
	Role             string               `json:"role" jsonschema:"acting role (verifier, critic)"`
	Output           string               `json:"output" jsonschema:"the role's full round output"`
	IssuesRaised     []RaisedIssueInput   `json:"issues_raised,omitempty" jsonschema:"findings raised this round"`
	IssuesResolved   []ResolvedIssueInput `json:"issues_resolved,omitempty" jsonschema:"findings resolved this round"`
	IssuesChallenged []string             `json:"issues_challenged,omitempty" jsonschema:"finding identifiers disputed this round"`
}

// InterventionEntry is one advisory intervention in a round result.
type InterventionEntry struct {
	Type            string   `json:"type"`
	Reason          string   `json:"reason"`
	SuggestedAction string   `json:"suggested_action"`
	Rounds          []int    `json:"rounds,omitempty"`
	Files           []string `json:"files,omitempty"`
}

// ConvergenceEntry is the convergence snapshot in a round result.
type ConvergenceEntry struct {
	Converged              bool `json:"converged"`
	UnresolvedIssues       int  `json:"unresolved_issues"`
	CriticalUnresolved     int  `json:"critical_unresolved"`
	RoundsWithoutNewIssues int  `json:"rounds_without_new_issues"`
	CurrentRound           int  `json:"current_round"`
}

// SubmitRoundResult represents the MCP tool output for submitting a round.
type SubmitRoundResult struct {
	SessionID       string              `json:"session_id" jsonschema:"session identifier"`
	Round           int                 `json:"round" jsonschema:"the recorded round number"`
	NextRole        string              `json:"next_role" jsonschema:"role expected to act next, or complete"`
	Convergence     ConvergenceEntry    `json:"convergence" jsonschema:"convergence state after this round"`
	Arbiter         *InterventionEntry  `json:"arbiter,omitempty" jsonschema:"advisory arbiter intervention, at most one"`
	Mediator        []InterventionEntry `json:"mediator,omitempty" jsonschema:"graph-derived mediator interventions"`
	NewFiles        []string            `json:"new_files,omitempty" jsonschema:"files pulled into context this round"`
	CheckpointTaken bool                `json:"checkpoint_taken" jsonschema:"whether an automatic checkpoint was taken"`
	BudgetExhausted bool                `json:"budget_exhausted" jsonschema:"whether the round budget is spent"`
}

// SubmitRoundTool defines the MCP tool schema for submitting a round.
func SubmitRoundTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "submit_round",
		Description: "Submits one role's round: output is scanned for file references, the issue ledger is updated, and convergence is recomputed.",
	}
}

// SubmitRoundHandler executes a round submission.
func SubmitRoundHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[SubmitRoundInput, SubmitRoundResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SubmitRoundInput) (*mcp.CallToolResult, SubmitRoundResult, error) {
		sessionID := selectSession(input.SessionID)

		roundInput := app.RoundInput{
			Role:             reviewdomain.Role(input.Role),
			Output:           input.Output,
			IssuesChallenged: input.IssuesChallenged,
		}
		for _, raised := range input.IssuesRaised {
			roundInput.IssuesRaised = append(roundInput.IssuesRaised, reviewdomain.Issue{
				ID:          raised.ID,
				Category:    reviewdomain.Category(raised.Category),
				Severity:    reviewdomain.Severity(raised.Severity),
				Summary:     raised.Summary,
				Description: raised.Description,
				Evidence:    raised.Evidence,
				Location:    raised.Location,
			})
		}
		for _, resolved := range input.IssuesResolved {
			roundInput.IssuesResolved = append(roundInput.IssuesResolved, app.Resolution{
				ID:    resolved.ID,
				Notes: resolved.Notes,
			})
		}

		result, err := orch.SubmitRound(ctx, sessionID, roundInput)
		if err != nil {
			return errorCallResult(err), SubmitRoundResult{}, nil
		}

		out := SubmitRoundResult{
			SessionID: result.SessionID,
			Round:     result.Round,
			NextRole:  result.NextRole,
			Convergence: ConvergenceEntry{
				Converged:              result.Convergence.Converged,
				UnresolvedIssues:       result.Convergence.UnresolvedIssues,
				CriticalUnresolved:     result.Convergence.CriticalUnresolved,
				RoundsWithoutNewIssues: result.Convergence.RoundsWithoutNewIssues,
				CurrentRound:           result.Convergence.CurrentRound,
			},
			NewFiles:        result.NewFiles,
			CheckpointTaken: result.CheckpointTaken,
			BudgetExhausted: result.BudgetExhausted,
		}
		if result.Arbiter != nil {
			out.Arbiter = &InterventionEntry{
				Type:            string(result.Arbiter.Type),
				Reason:          result.Arbiter.Reason,
				SuggestedAction: result.Arbiter.SuggestedAction,
				Rounds:          result.Arbiter.Rounds,
				Files:           result.Arbiter.Files,
			}
		}
		for _, intervention := range result.Mediator {
			out.Mediator = append(out.Mediator, InterventionEntry{
				Type:            string(intervention.Type),
				Reason:          intervention.Reason,
				SuggestedAction: intervention.SuggestedAction,
				Files:           intervention.Files,
			})
		}
		return nil, out, nil
	}
}

// GetContextInput represents the MCP tool input for reading session context.
type GetContextInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
}

// ContextFileEntry is one context file in the projection.
type ContextFileEntry struct {
	Path            string   `json:"path"`
	Layer           string   `json:"layer"`
	DiscoveredRound int      `json:"discovered_round,omitempty"`
	VerifiedRound   int      `json:"verified_round,omitempty"`
	References      []string `json:"references,omitempty"`
	Bytes           int      `json:"bytes"`
}

// GetContextResult represents the MCP tool output for reading session
// context.
type GetContextResult struct {
	SessionID    string             `json:"session_id" jsonschema:"session identifier"`
	Target       string             `json:"target" jsonschema:"review target"`
	Status       string             `json:"status" jsonschema:"session status"`
	CurrentRound int                `json:"current_round" jsonschema:"rounds completed"`
	RoundBudget  int                `json:"round_budget" jsonschema:"maximum number of rounds"`
	Files        []ContextFileEntry `json:"files,omitempty" jsonschema:"context files with provenance layers"`
	IssueCounts  map[string]int     `json:"issue_counts,omitempty" jsonschema:"finding counts per status"`
}

// GetContextTool defines the MCP tool schema for reading session context.
func GetContextTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_context",
		Description: "Returns the session's layered file context, round progress, and issue summary.",
	}
}

// GetContextHandler executes a context read.
func GetContextHandler(orch Orchestrator, selectSession SessionSelector) mcp.ToolHandlerFor[GetContextInput, GetContextResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetContextInput) (*mcp.CallToolResult, GetContextResult, error) {
		sessionID := selectSession(input.SessionID)

		view, err := orch.GetContext(ctx, sessionID)
		if err != nil {
			return errorCallResult(err), GetContextResult{}, nil
		}
		return nil, contextResultFromView(view), nil
	}
}

func contextResultFromView(view *app.ContextView) GetContextResult {
	result := GetContextResult{
		SessionID:    view.SessionID,
		Target:       view.Target,
		Status:       string(view.Status),
		CurrentRound: view.CurrentRound,
		RoundBudget:  view.RoundBudget,
	}
	for _, file := range view.Files {
		result.Files = append(result.Files, ContextFileEntry{
			Path:            file.Path,
			Layer:           string(file.Layer),
			DiscoveredRound: file.DiscoveredRound,
			VerifiedRound:   file.VerifiedRound,
			References:      file.References,
			Bytes:           file.Bytes,
		})
	}
	if len(view.IssueCounts) > 0 {
		result.IssueCounts = map[string]int{}
		for status, count := range view.IssueCounts {
			result.IssueCounts[string(status)] = count
		}
	}
	return result
}
