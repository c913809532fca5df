package domain

import (
	"context"
	"time"

	reviewdomain "github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultRoundBudget applies when start_session omits max_rounds.
const defaultRoundBudget = 10

// StartSessionInput represents the MCP tool input for starting a review.
type StartSessionInput struct {
	Target       string `json:"target" jsonschema:"what is being reviewed (module, feature, change)"`
	Requirements string `json:"requirements" jsonschema:"the requirements the target is verified against"`
	WorkingDir   string `json:"working_dir,omitempty" jsonschema:"directory to collect base context from"`
	MaxRounds    int    `json:"max_rounds,omitempty" jsonschema:"round budget, defaults to 10"`
}

// StartSessionResult represents the MCP tool output for starting a review.
type StartSessionResult struct {
	SessionID    string   `json:"session_id" jsonschema:"session identifier"`
	Status       string   `json:"status" jsonschema:"session status"`
	RoundBudget  int      `json:"round_budget" jsonschema:"maximum number of rounds"`
	ContextFiles int      `json:"context_files" jsonschema:"number of files collected into context"`
	SkippedPaths []string `json:"skipped_paths,omitempty" jsonschema:"paths that could not be read during collection"`
	NextRole     string   `json:"next_role" jsonschema:"role expected to act first"`
}

// StartSessionTool defines the MCP tool schema for starting a review.
func StartSessionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "start_session",
		Description: "Starts an adversarial review session and collects base file context from the working directory.",
	}
}

// StartSessionHandler executes a session start request. The new session
// becomes the server's active session.
func StartSessionHandler(orch Orchestrator, setActive func(string)) mcp.ToolHandlerFor[StartSessionInput, StartSessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StartSessionInput) (*mcp.CallToolResult, StartSessionResult, error) {
		budget := input.MaxRounds
		if budget == 0 {
			budget = defaultRoundBudget
		}

		result, err := orch.Start(ctx, input.Target, input.Requirements, input.WorkingDir, budget)
		if err != nil {
			return errorCallResult(err), StartSessionResult{}, nil
		}
		if setActive != nil {
			setActive(result.SessionID)
		}

		return nil, StartSessionResult{
			SessionID:    result.SessionID,
			Status:       string(result.Status),
			RoundBudget:  result.RoundBudget,
			ContextFiles: result.ContextFiles,
			SkippedPaths: result.SkippedPaths,
			NextRole:     result.NextRole,
		}, nil
	}
}

// EndSessionInput represents the MCP tool input for ending a review.
type EndSessionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier (defaults to the active session)"`
	Verdict   string `json:"verdict" jsonschema:"final verdict (PASS, FAIL, CONDITIONAL)"`
}

// SeveritySummary is one severity bucket in the end-of-session summary.
type SeveritySummary struct {
	Severity   string `json:"severity"`
	Total      int    `json:"total"`
	Unresolved int    `json:"unresolved"`
}

// EndSessionResult represents the MCP tool output for ending a review.
type EndSessionResult struct {
	SessionID  string            `json:"session_id" jsonschema:"session identifier"`
	Verdict    string            `json:"verdict" jsonschema:"recorded verdict"`
	Rounds     int               `json:"rounds" jsonschema:"rounds completed"`
	Unresolved int               `json:"unresolved" jsonschema:"findings marked terminally unresolved"`
	Summary    []SeveritySummary `json:"summary" jsonschema:"finding counts per severity"`
}

// EndSessionTool defines the MCP tool schema for ending a review.
func EndSessionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "end_session",
		Description: "Ends a review session with a verdict; non-resolved findings become terminally unresolved.",
	}
}

// EndSessionHandler executes a session end request and clears the active
// session pointer when it pointed at the ended session.
func EndSessionHandler(orch Orchestrator, selectSession SessionSelector, clearActive func(string)) mcp.ToolHandlerFor[EndSessionInput, EndSessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EndSessionInput) (*mcp.CallToolResult, EndSessionResult, error) {
		sessionID := selectSession(input.SessionID)

		result, err := orch.EndSession(ctx, sessionID, reviewdomain.Verdict(input.Verdict))
		if err != nil {
			return errorCallResult(err), EndSessionResult{}, nil
		}
		if clearActive != nil {
			clearActive(sessionID)
		}

		out := EndSessionResult{
			SessionID:  result.SessionID,
			Verdict:    string(result.Verdict),
			Rounds:     result.Rounds,
			Unresolved: result.Unresolved,
		}
		for _, severity := range []reviewdomain.Severity{
			reviewdomain.SeverityCritical, reviewdomain.SeverityHigh,
			reviewdomain.SeverityMedium, reviewdomain.SeverityLow,
		} {
			counts, ok := result.Summary[severity]
			if !ok {
				continue
			}
			out.Summary = append(out.Summary, SeveritySummary{
				Severity:   string(severity),
				Total:      counts.Total,
				Unresolved: counts.Unresolved,
			})
		}
		return nil, out, nil
	}
}

// ListSessionsInput represents the MCP tool input for listing sessions.
type ListSessionsInput struct{}

// SessionSummaryEntry is one stored session in a listing.
type SessionSummaryEntry struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	Target       string `json:"target"`
	CurrentRound int    `json:"current_round"`
	Version      int64  `json:"version"`
	UpdatedAt    string `json:"updated_at"`
}

// ListSessionsResult represents the MCP tool output for listing sessions.
type ListSessionsResult struct {
	Sessions []SessionSummaryEntry `json:"sessions" jsonschema:"stored sessions, most recently updated first"`
}

// ListSessionsTool defines the MCP tool schema for listing sessions.
func ListSessionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_sessions",
		Description: "Lists persisted review sessions, most recently updated first.",
	}
}

// ListSessionsHandler executes a session listing request.
func ListSessionsHandler(orch Orchestrator) mcp.ToolHandlerFor[ListSessionsInput, ListSessionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListSessionsInput) (*mcp.CallToolResult, ListSessionsResult, error) {
		summaries, err := orch.ListSessions(ctx)
		if err != nil {
			return errorCallResult(err), ListSessionsResult{}, nil
		}

		result := ListSessionsResult{}
		for _, summary := range summaries {
			result.Sessions = append(result.Sessions, SessionSummaryEntry{
				SessionID:    summary.ID,
				Status:       summary.Status,
				Target:       summary.Target,
				CurrentRound: summary.CurrentRound,
				Version:      summary.Version,
				UpdatedAt:    summary.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

// SetActiveSessionInput represents the MCP tool input for setting the active
// session.
type SetActiveSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier to make active"`
}

// SetActiveSessionResult represents the MCP tool output for setting the
// active session.
type SetActiveSessionResult struct {
	SessionID string `json:"session_id" jsonschema:"active session identifier"`
	Status    string `json:"status" jsonschema:"session status"`
}

// SetActiveSessionTool defines the MCP tool schema for setting the active
// session.
func SetActiveSessionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_active_session",
		Description: "Sets the active session used by tools when session_id is omitted.",
	}
}

// SetActiveSessionHandler validates the session exists before pointing the
// server at it.
func SetActiveSessionHandler(orch Orchestrator, setActive func(string)) mcp.ToolHandlerFor[SetActiveSessionInput, SetActiveSessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetActiveSessionInput) (*mcp.CallToolResult, SetActiveSessionResult, error) {
		view, err := orch.GetContext(ctx, input.SessionID)
		if err != nil {
			return errorCallResult(err), SetActiveSessionResult{}, nil
		}
		if setActive != nil {
			setActive(view.SessionID)
		}
		return nil, SetActiveSessionResult{
			SessionID: view.SessionID,
			Status:    string(view.Status),
		}, nil
	}
}
