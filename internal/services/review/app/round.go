package app

import (
	"context"
	"strconv"

	apperrors "github.com/louisbranch/crosscheck/internal/platform/errors"
	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/graph"
)

// Resolution marks one issue resolved in a round.
type Resolution struct {
	ID    string
	Notes string
}

// RoundInput is one role's contribution to a round.
type RoundInput struct {
	Role             domain.Role
	Output           string
	IssuesRaised     []domain.Issue
	IssuesResolved   []Resolution
	IssuesChallenged []string
}

// RoundResult is the orchestrator's response to a submitted round.
type RoundResult struct {
	SessionID       string
	Round           int
	NextRole        string
	Convergence     domain.ConvergenceStatus
	Arbiter         *domain.Intervention
	Mediator        []graph.MediatorIntervention
	NewFiles        []string
	CheckpointTaken bool
	BudgetExhausted bool
}

// SubmitRound records one role's contribution: the output is scanned for
// file references, referenced files join the discovered context layer, the
// issue ledger is updated, the round is appended, and the convergence,
// arbiter, and mediator verdicts are computed. Interventions are advisory;
// the round is always recorded once input validation passes.
func (s *Service) SubmitRound(ctx context.Context, sessionID string, input RoundInput) (*RoundResult, error) {
	ctx, span := s.startSpan(ctx, "review.submit_round", sessionID)
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateRoundInput(session, input); err != nil {
		return nil, err
	}

	roundNumber := session.CurrentRound + 1

	// 1. Scan the output for referenced files and grow the context.
	referenced := s.extractor.Extract(input.Output)
	newFiles := s.addDiscoveredFiles(session, referenced, roundNumber)

	// 2. Apply ledger mutations: upserts, resolutions, challenges.
	raisedIDs := make([]string, 0, len(input.IssuesRaised))
	for _, issue := range input.IssuesRaised {
		issue.RaisedBy = input.Role
		issue.RaisedRound = roundNumber
		issue.Status = domain.IssueRaised
		if existing := session.FindIssue(issue.ID); existing != nil {
			// Re-raising keeps the original provenance.
			issue.RaisedBy = existing.RaisedBy
			issue.RaisedRound = existing.RaisedRound
		}
		session.UpsertIssue(issue)
		raisedIDs = append(raisedIDs, issue.ID)
	}

	resolvedIDs := make([]string, 0, len(input.IssuesResolved))
	for _, resolution := range input.IssuesResolved {
		if session.ResolveIssue(resolution.ID, roundNumber, resolution.Notes) {
			resolvedIDs = append(resolvedIDs, resolution.ID)
		}
	}
	for _, id := range input.IssuesChallenged {
		session.ChallengeIssue(id)
	}

	// 3. Append the immutable round record.
	session.AppendRound(domain.Round{
		Role:            input.Role,
		Output:          input.Output,
		IssuesRaised:    raisedIDs,
		IssuesResolved:  resolvedIDs,
		ContextExpanded: len(newFiles) > 0,
		NewFiles:        newFiles,
		Timestamp:       s.now().UTC(),
	})

	// 4. Verifier rounds mark the files they examined.
	touched := contextPaths(session, append(referenced, newFiles...))
	if input.Role == domain.RoleVerifier {
		session.Context.MarkVerified(touched, roundNumber)
	}

	// 5. Auto-checkpoint at even round boundaries.
	checkpointTaken := false
	if roundNumber%2 == 0 {
		session.TakeCheckpoint(s.now())
		checkpointTaken = true
	}

	// 6. Convergence, arbiter, mediator.
	convergence := domain.Evaluate(session, s.policy)
	arbiter := domain.Arbitrate(session)

	g := graph.Build(session.Context, session.WorkingDir)
	mediator := g.AnalyzeRound(session, touched)
	session.MediatorInterventions += len(mediator)

	budgetExhausted := session.CurrentRound >= session.RoundBudget
	nextRole := string(input.Role.Alternate())
	if convergence.Converged || budgetExhausted {
		nextRole = RoleComplete
	}

	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}

	return &RoundResult{
		SessionID:       session.ID,
		Round:           roundNumber,
		NextRole:        nextRole,
		Convergence:     convergence,
		Arbiter:         arbiter,
		Mediator:        mediator,
		NewFiles:        newFiles,
		CheckpointTaken: checkpointTaken,
		BudgetExhausted: budgetExhausted,
	}, nil
}

// validateRoundInput rejects the whole round before any mutation happens, so
// a failed submission leaves the session untouched.
func validateRoundInput(session *domain.Session, input RoundInput) error {
	if !input.Role.Valid() {
		return apperrors.WithMetadata(apperrors.CodeRoundInvalidRole,
			"role must be verifier or critic",
			map[string]string{"role": string(input.Role)})
	}
	if input.Output == "" {
		return apperrors.New(apperrors.CodeRoundEmptyOutput, "round output is required")
	}
	if n := len(session.Rounds); n > 0 && session.Rounds[n-1].Role == input.Role {
		return apperrors.WithMetadata(apperrors.CodeRoundInvalidRole,
			"roles must alternate between rounds",
			map[string]string{"role": string(input.Role)})
	}
	if session.Status == domain.StatusConverged {
		return apperrors.New(apperrors.CodeSessionEnded, "session already ended")
	}
	if session.CurrentRound >= session.RoundBudget {
		return apperrors.WithMetadata(apperrors.CodeRoundBudgetExceeded,
			"round budget exhausted",
			map[string]string{"budget": strconv.Itoa(session.RoundBudget)})
	}

	for _, issue := range input.IssuesRaised {
		if issue.ID == "" {
			return apperrors.New(apperrors.CodeIssueEmptyID, "raised issue is missing an id")
		}
		if !issue.Category.Valid() {
			return apperrors.WithMetadata(apperrors.CodeIssueInvalidCategory,
				"unknown issue category",
				map[string]string{"issue_id": issue.ID, "category": string(issue.Category)})
		}
		if !issue.Severity.Valid() {
			return apperrors.WithMetadata(apperrors.CodeIssueInvalidSeverity,
				"unknown issue severity",
				map[string]string{"issue_id": issue.ID, "severity": string(issue.Severity)})
		}
	}

	raised := map[string]struct{}{}
	for _, issue := range input.IssuesRaised {
		raised[issue.ID] = struct{}{}
	}
	for _, resolution := range input.IssuesResolved {
		if _, ok := raised[resolution.ID]; ok {
			continue
		}
		if session.FindIssue(resolution.ID) == nil {
			return apperrors.WithMetadata(apperrors.CodeIssueUnknownID,
				"cannot resolve unknown issue",
				map[string]string{"issue_id": resolution.ID})
		}
	}
	for _, id := range input.IssuesChallenged {
		if _, ok := raised[id]; ok {
			continue
		}
		if session.FindIssue(id) == nil {
			return apperrors.WithMetadata(apperrors.CodeIssueUnknownID,
				"cannot challenge unknown issue",
				map[string]string{"issue_id": id})
		}
	}
	return nil
}

// contextPaths filters candidates down to paths present in context,
// deduplicated, preserving order.
func contextPaths(session *domain.Session, candidates []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range candidates {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if session.Context.Get(p) != nil {
			out = append(out, p)
		}
	}
	return out
}
