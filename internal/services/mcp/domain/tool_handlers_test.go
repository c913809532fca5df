package domain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/services/review/app"
	reviewdomain "github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/graph"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeOrchestrator struct {
	startResult    *app.StartResult
	startErr       error
	contextView    *app.ContextView
	contextErr     error
	roundResult    *app.RoundResult
	roundErr       error
	roundInput     app.RoundInput
	issues         []reviewdomain.Issue
	issuesErr      error
	issuesView     reviewdomain.IssueFilter
	records        []storage.IssueRecord
	recordsErr     error
	filterExpr     string
	checkpoint     *app.CheckpointResult
	checkpointErr  error
	rollback       *app.RollbackResult
	rollbackErr    error
	rollbackRound  int
	endResult      *app.EndResult
	endErr         error
	summaries      []storage.SessionSummary
	summariesErr   error
	ripple         *graph.RippleResult
	rippleErr      error
	mediator       *graph.Summary
	mediatorErr    error
	lastSessionID  string
}

func (f *fakeOrchestrator) Start(_ context.Context, target, requirements, workingDir string, roundBudget int) (*app.StartResult, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	result := *f.startResult
	result.RoundBudget = roundBudget
	return &result, nil
}

func (f *fakeOrchestrator) GetContext(_ context.Context, sessionID string) (*app.ContextView, error) {
	f.lastSessionID = sessionID
	if f.contextErr != nil {
		return nil, f.contextErr
	}
	return f.contextView, nil
}

func (f *fakeOrchestrator) SubmitRound(_ context.Context, sessionID string, input app.RoundInput) (*app.RoundResult, error) {
	f.lastSessionID = sessionID
	f.roundInput = input
	if f.roundErr != nil {
		return nil, f.roundErr
	}
	return f.roundResult, nil
}

func (f *fakeOrchestrator) GetIssues(_ context.Context, sessionID string, view reviewdomain.IssueFilter) ([]reviewdomain.Issue, error) {
	f.lastSessionID = sessionID
	f.issuesView = view
	return f.issues, f.issuesErr
}

func (f *fakeOrchestrator) ListIssuesFiltered(_ context.Context, sessionID, expression string) ([]storage.IssueRecord, error) {
	f.lastSessionID = sessionID
	f.filterExpr = expression
	return f.records, f.recordsErr
}

func (f *fakeOrchestrator) Checkpoint(_ context.Context, sessionID string) (*app.CheckpointResult, error) {
	f.lastSessionID = sessionID
	if f.checkpointErr != nil {
		return nil, f.checkpointErr
	}
	return f.checkpoint, nil
}

func (f *fakeOrchestrator) Rollback(_ context.Context, sessionID string, toRound int) (*app.RollbackResult, error) {
	f.lastSessionID = sessionID
	f.rollbackRound = toRound
	if f.rollbackErr != nil {
		return nil, f.rollbackErr
	}
	return f.rollback, nil
}

func (f *fakeOrchestrator) EndSession(_ context.Context, sessionID string, _ reviewdomain.Verdict) (*app.EndResult, error) {
	f.lastSessionID = sessionID
	if f.endErr != nil {
		return nil, f.endErr
	}
	return f.endResult, nil
}

func (f *fakeOrchestrator) ListSessions(context.Context) ([]storage.SessionSummary, error) {
	return f.summaries, f.summariesErr
}

func (f *fakeOrchestrator) RippleEffect(_ context.Context, sessionID, _, _ string) (*graph.RippleResult, error) {
	f.lastSessionID = sessionID
	if f.rippleErr != nil {
		return nil, f.rippleErr
	}
	return f.ripple, nil
}

func (f *fakeOrchestrator) MediatorSummary(_ context.Context, sessionID string) (*graph.Summary, error) {
	f.lastSessionID = sessionID
	if f.mediatorErr != nil {
		return nil, f.mediatorErr
	}
	return f.mediator, nil
}

// passthroughSelector returns the explicit session unchanged; tests that care
// about active-session fallback substitute their own.
func passthroughSelector(explicit string) string { return explicit }

func activeSelector(active string) SessionSelector {
	return func(explicit string) string {
		if explicit != "" {
			return explicit
		}
		return active
	}
}

func TestStartSessionHandler(t *testing.T) {
	t.Run("success sets active session", func(t *testing.T) {
		orch := &fakeOrchestrator{
			startResult: &app.StartResult{
				SessionID:    "review-auth-abc12345",
				Status:       reviewdomain.StatusInitialized,
				ContextFiles: 3,
				NextRole:     "verifier",
			},
		}
		var active string
		handler := StartSessionHandler(orch, func(id string) { active = id })

		toolResult, result, err := handler(context.Background(), nil, StartSessionInput{
			Target:       "auth",
			Requirements: "tokens must expire",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if toolResult != nil {
			t.Fatalf("unexpected tool error result: %+v", toolResult)
		}
		if result.SessionID != "review-auth-abc12345" {
			t.Errorf("expected session id, got %q", result.SessionID)
		}
		if result.RoundBudget != defaultRoundBudget {
			t.Errorf("expected default budget %d, got %d", defaultRoundBudget, result.RoundBudget)
		}
		if active != "review-auth-abc12345" {
			t.Errorf("expected active session set, got %q", active)
		}
	})

	t.Run("explicit budget wins", func(t *testing.T) {
		orch := &fakeOrchestrator{
			startResult: &app.StartResult{SessionID: "s", Status: reviewdomain.StatusInitialized},
		}
		handler := StartSessionHandler(orch, nil)
		_, result, err := handler(context.Background(), nil, StartSessionInput{
			Target: "auth", Requirements: "r", MaxRounds: 4,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RoundBudget != 4 {
			t.Errorf("expected budget 4, got %d", result.RoundBudget)
		}
	})

	t.Run("domain error becomes tool error result", func(t *testing.T) {
		orch := &fakeOrchestrator{
			startErr: apperrors.New(apperrors.CodeValidation, "target is required"),
		}
		handler := StartSessionHandler(orch, nil)
		toolResult, _, err := handler(context.Background(), nil, StartSessionInput{})
		if err != nil {
			t.Fatalf("domain failures must not surface as transport errors: %v", err)
		}
		if toolResult == nil || !toolResult.IsError {
			t.Fatal("expected tool error result")
		}
	})
}

func TestSubmitRoundHandler(t *testing.T) {
	orch := &fakeOrchestrator{
		roundResult: &app.RoundResult{
			SessionID: "s1",
			Round:     3,
			NextRole:  "critic",
			Convergence: reviewdomain.ConvergenceStatus{
				UnresolvedIssues:   1,
				CriticalUnresolved: 1,
				CurrentRound:       3,
			},
			Arbiter: &reviewdomain.Intervention{
				Type:   reviewdomain.InterventionLoopBreak,
				Reason: "SEC-001 keeps coming back",
				Rounds: []int{1, 2, 3},
			},
			Mediator: []graph.MediatorIntervention{
				{Type: graph.InterventionUnverifiedImpact, Files: []string{"auth/token.go"}},
			},
			NewFiles:        []string{"auth/token.go"},
			CheckpointTaken: true,
		},
	}
	handler := SubmitRoundHandler(orch, activeSelector("s1"))

	toolResult, result, err := handler(context.Background(), nil, SubmitRoundInput{
		Role:   "verifier",
		Output: "checked auth/token.go",
		IssuesRaised: []RaisedIssueInput{
			{ID: "SEC-001", Category: "security", Severity: "CRITICAL", Summary: "token reuse"},
		},
		IssuesResolved:   []ResolvedIssueInput{{ID: "FUNC-001", Notes: "verified"}},
		IssuesChallenged: []string{"PERF-001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolResult != nil {
		t.Fatalf("unexpected tool error result: %+v", toolResult)
	}
	if orch.lastSessionID != "s1" {
		t.Errorf("expected active session fallback, got %q", orch.lastSessionID)
	}
	if len(orch.roundInput.IssuesRaised) != 1 || orch.roundInput.IssuesRaised[0].ID != "SEC-001" {
		t.Errorf("raised issues not mapped: %+v", orch.roundInput.IssuesRaised)
	}
	if orch.roundInput.IssuesRaised[0].Severity != reviewdomain.SeverityCritical {
		t.Errorf("severity not mapped: %q", orch.roundInput.IssuesRaised[0].Severity)
	}
	if len(orch.roundInput.IssuesResolved) != 1 || orch.roundInput.IssuesResolved[0].Notes != "verified" {
		t.Errorf("resolutions not mapped: %+v", orch.roundInput.IssuesResolved)
	}
	if result.Round != 3 || result.NextRole != "critic" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Arbiter == nil || result.Arbiter.Type != string(reviewdomain.InterventionLoopBreak) {
		t.Errorf("arbiter not mapped: %+v", result.Arbiter)
	}
	if len(result.Mediator) != 1 || result.Mediator[0].Type != string(graph.InterventionUnverifiedImpact) {
		t.Errorf("mediator not mapped: %+v", result.Mediator)
	}
	if !result.CheckpointTaken {
		t.Error("expected checkpoint flag")
	}
}

func TestGetIssuesHandlerDefaultsToAll(t *testing.T) {
	orch := &fakeOrchestrator{
		issues: []reviewdomain.Issue{
			{
				ID:          "SEC-001",
				Category:    reviewdomain.CategorySecurity,
				Severity:    reviewdomain.SeverityCritical,
				Status:      reviewdomain.IssueRaised,
				RaisedBy:    reviewdomain.RoleCritic,
				RaisedRound: 2,
			},
		},
	}
	handler := GetIssuesHandler(orch, passthroughSelector)

	_, result, err := handler(context.Background(), nil, GetIssuesInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.issuesView != reviewdomain.FilterAll {
		t.Errorf("expected filter all, got %q", orch.issuesView)
	}
	if len(result.Issues) != 1 || result.Issues[0].ID != "SEC-001" {
		t.Fatalf("unexpected issues: %+v", result.Issues)
	}
	if result.Issues[0].Severity != "CRITICAL" || result.Issues[0].RaisedBy != "critic" {
		t.Errorf("issue fields not mapped: %+v", result.Issues[0])
	}
}

func TestListIssuesHandlerPassesExpression(t *testing.T) {
	orch := &fakeOrchestrator{
		records: []storage.IssueRecord{
			{IssueID: "SEC-001", Severity: "CRITICAL", Status: "RAISED", RaisedRound: 1},
		},
	}
	handler := ListIssuesHandler(orch, passthroughSelector)

	expr := `severity = "CRITICAL" AND status != "RESOLVED"`
	_, result, err := handler(context.Background(), nil, ListIssuesInput{SessionID: "s1", Filter: expr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.filterExpr != expr {
		t.Errorf("expression not passed through: %q", orch.filterExpr)
	}
	if len(result.Issues) != 1 || result.Issues[0].ID != "SEC-001" {
		t.Fatalf("unexpected rows: %+v", result.Issues)
	}
}

func TestCheckpointAndRollbackHandlers(t *testing.T) {
	orch := &fakeOrchestrator{
		checkpoint: &app.CheckpointResult{SessionID: "s1", Round: 4, ContextFiles: 6, Issues: 2},
		rollback: &app.RollbackResult{
			SessionID: "s1", CurrentRound: 2, Status: reviewdomain.StatusVerifying, Issues: 1, ContextFiles: 6,
		},
	}

	cpHandler := CreateCheckpointHandler(orch, passthroughSelector)
	_, cp, err := cpHandler(context.Background(), nil, CreateCheckpointInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp.Round != 4 || cp.Issues != 2 {
		t.Errorf("unexpected checkpoint result: %+v", cp)
	}

	rbHandler := RollbackSessionHandler(orch, passthroughSelector)
	_, rb, err := rbHandler(context.Background(), nil, RollbackSessionInput{SessionID: "s1", ToRound: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.rollbackRound != 2 {
		t.Errorf("expected rollback round 2, got %d", orch.rollbackRound)
	}
	if rb.CurrentRound != 2 || rb.Status != string(reviewdomain.StatusVerifying) {
		t.Errorf("unexpected rollback result: %+v", rb)
	}

	orch.rollbackErr = apperrors.New(apperrors.CodeCheckpointNotFound, "no checkpoint at round")
	toolResult, _, err := rbHandler(context.Background(), nil, RollbackSessionInput{SessionID: "s1", ToRound: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolResult == nil || !toolResult.IsError {
		t.Fatal("expected tool error result for missing checkpoint")
	}
}

func TestEndSessionHandlerClearsActiveAndOrdersSummary(t *testing.T) {
	orch := &fakeOrchestrator{
		endResult: &app.EndResult{
			SessionID: "s1",
			Verdict:   reviewdomain.VerdictConditional,
			Rounds:    5,
			Summary: map[reviewdomain.Severity]reviewdomain.SeverityCounts{
				reviewdomain.SeverityLow:      {Total: 2, Unresolved: 1},
				reviewdomain.SeverityCritical: {Total: 1, Unresolved: 0},
			},
			Unresolved: 1,
		},
	}
	var cleared string
	handler := EndSessionHandler(orch, activeSelector("s1"), func(id string) { cleared = id })

	_, result, err := handler(context.Background(), nil, EndSessionInput{Verdict: "CONDITIONAL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared != "s1" {
		t.Errorf("expected active session cleared, got %q", cleared)
	}
	if len(result.Summary) != 2 {
		t.Fatalf("expected 2 severity buckets, got %+v", result.Summary)
	}
	if result.Summary[0].Severity != "CRITICAL" || result.Summary[1].Severity != "LOW" {
		t.Errorf("summary not ordered by severity: %+v", result.Summary)
	}
}

func TestListSessionsHandler(t *testing.T) {
	updated := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	orch := &fakeOrchestrator{
		summaries: []storage.SessionSummary{
			{ID: "s2", Status: "verifying", Target: "auth", CurrentRound: 2, Version: 3, UpdatedAt: updated},
		},
	}
	handler := ListSessionsHandler(orch)

	_, result, err := handler(context.Background(), nil, ListSessionsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(result.Sessions))
	}
	if result.Sessions[0].UpdatedAt != "2026-04-10T09:00:00Z" {
		t.Errorf("timestamp not formatted: %q", result.Sessions[0].UpdatedAt)
	}
}

func TestSetActiveSessionHandlerValidatesExistence(t *testing.T) {
	t.Run("known session", func(t *testing.T) {
		orch := &fakeOrchestrator{
			contextView: &app.ContextView{SessionID: "s1", Status: reviewdomain.StatusVerifying},
		}
		var active string
		handler := SetActiveSessionHandler(orch, func(id string) { active = id })

		_, result, err := handler(context.Background(), nil, SetActiveSessionInput{SessionID: "s1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if active != "s1" || result.SessionID != "s1" {
			t.Errorf("active session not set: %q %+v", active, result)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		orch := &fakeOrchestrator{
			contextErr: apperrors.New(apperrors.CodeSessionNotFound, "session not found"),
		}
		var active string
		handler := SetActiveSessionHandler(orch, func(id string) { active = id })

		toolResult, _, err := handler(context.Background(), nil, SetActiveSessionInput{SessionID: "nope"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if toolResult == nil || !toolResult.IsError {
			t.Fatal("expected tool error result")
		}
		if active != "" {
			t.Errorf("active session must not change on failure, got %q", active)
		}
	})
}

func TestRippleEffectHandler(t *testing.T) {
	orch := &fakeOrchestrator{
		ripple: &graph.RippleResult{
			ChangedFile: "auth/token.go",
			AffectedFiles: []graph.AffectedFile{
				{Path: "auth/login.go", Depth: 1, Impact: graph.ImpactDirect, Reason: "imports auth/token.go"},
			},
			TotalAffected: 1,
			MaxDepth:      1,
		},
	}
	handler := RippleEffectHandler(orch, passthroughSelector)

	_, result, err := handler(context.Background(), nil, RippleEffectInput{
		SessionID: "s1", ChangedFile: "auth/token.go",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalAffected != 1 || result.AffectedFiles[0].Impact != "direct" {
		t.Errorf("ripple not mapped: %+v", result)
	}
}

func TestMediatorSummaryHandler(t *testing.T) {
	orch := &fakeOrchestrator{
		mediator: &graph.Summary{
			NodeCount:         4,
			EdgeCount:         3,
			UnverifiedFiles:   []string{"auth/token.go"},
			InterventionCount: 2,
		},
	}
	handler := MediatorSummaryHandler(orch, passthroughSelector)

	_, result, err := handler(context.Background(), nil, MediatorSummaryInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NodeCount != 4 || result.InterventionCount != 2 {
		t.Errorf("summary not mapped: %+v", result)
	}
}

func TestActiveSessionResourceHandler(t *testing.T) {
	t.Run("active session set", func(t *testing.T) {
		handler := ActiveSessionResourceHandler(func() string { return "s1" })
		result, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: "review://current"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Contents) != 1 || result.Contents[0].MIMEType != "application/json" {
			t.Fatalf("unexpected contents: %+v", result.Contents)
		}
		var payload ActiveSessionPayload
		if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if payload.Session.SessionID == nil || *payload.Session.SessionID != "s1" {
			t.Errorf("unexpected payload: %s", result.Contents[0].Text)
		}
	})

	t.Run("no active session yields null", func(t *testing.T) {
		handler := ActiveSessionResourceHandler(func() string { return "" })
		result, err := handler(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(result.Contents[0].Text, `"session_id": null`) {
			t.Errorf("expected null session_id: %s", result.Contents[0].Text)
		}
	})

	t.Run("wrong URI rejected", func(t *testing.T) {
		handler := ActiveSessionResourceHandler(func() string { return "s1" })
		_, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: "review://other"},
		})
		if err == nil {
			t.Fatal("expected error for wrong URI")
		}
	})
}

func TestSessionContextResourceHandler(t *testing.T) {
	orch := &fakeOrchestrator{
		contextView: &app.ContextView{
			SessionID:    "s1",
			Target:       "auth",
			Status:       reviewdomain.StatusVerifying,
			CurrentRound: 2,
			RoundBudget:  10,
			Files: []app.FileView{
				{Path: "auth/token.go", Layer: reviewdomain.LayerBase, Bytes: 120},
			},
		},
	}
	handler := SessionContextResourceHandler(orch)

	result, err := handler(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "review://s1/context"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.lastSessionID != "s1" {
		t.Errorf("session id not parsed from URI: %q", orch.lastSessionID)
	}
	var payload GetContextResult
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.SessionID != "s1" || len(payload.Files) != 1 {
		t.Errorf("unexpected payload: %s", result.Contents[0].Text)
	}
}

func TestParseSessionIDFromContextURI(t *testing.T) {
	cases := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "review://s1/context", want: "s1"},
		{uri: "review://review-auth-abc12345/context", want: "review-auth-abc12345"},
		{uri: "review:///context", wantErr: true},
		{uri: "review://_/context", wantErr: true},
		{uri: "review://s1/context/extra", wantErr: true},
		{uri: "review://s1", wantErr: true},
		{uri: "session://s1/context", wantErr: true},
		{uri: "review://a/b/context", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseSessionIDFromContextURI(tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got %q", tc.uri, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.uri, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.uri, tc.want, got)
		}
	}
}
