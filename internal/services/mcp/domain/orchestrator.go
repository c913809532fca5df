package domain

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/platform/errors/i18n"
	"github.com/louisbranch/crosscheck/internal/services/review/app"
	reviewdomain "github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/graph"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Orchestrator is the review operation surface the MCP handlers bind to.
// The app service satisfies it; tests substitute fakes.
type Orchestrator interface {
	Start(ctx context.Context, target, requirements, workingDir string, roundBudget int) (*app.StartResult, error)
	GetContext(ctx context.Context, sessionID string) (*app.ContextView, error)
	SubmitRound(ctx context.Context, sessionID string, input app.RoundInput) (*app.RoundResult, error)
	GetIssues(ctx context.Context, sessionID string, view reviewdomain.IssueFilter) ([]reviewdomain.Issue, error)
	ListIssuesFiltered(ctx context.Context, sessionID, expression string) ([]storage.IssueRecord, error)
	Checkpoint(ctx context.Context, sessionID string) (*app.CheckpointResult, error)
	Rollback(ctx context.Context, sessionID string, toRound int) (*app.RollbackResult, error)
	EndSession(ctx context.Context, sessionID string, verdict reviewdomain.Verdict) (*app.EndResult, error)
	ListSessions(ctx context.Context) ([]storage.SessionSummary, error)
	RippleEffect(ctx context.Context, sessionID, changedFile, changedFunction string) (*graph.RippleResult, error)
	MediatorSummary(ctx context.Context, sessionID string) (*graph.Summary, error)
}

// SessionSelector resolves the effective session for a tool call: the
// explicit input wins, otherwise the server-held active session.
type SessionSelector func(explicit string) string

// errorCallResult renders a domain failure as a tool error result. Coded
// errors are localized through the message catalog; anything else falls back
// to the raw error text. Domain failures never become transport errors.
func errorCallResult(err error) *mcp.CallToolResult {
	text := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		text = i18n.GetCatalog(i18n.BaseLocale).Format(string(appErr.Code), appErr.Metadata)
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
