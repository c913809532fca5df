package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/crosscheck/internal/services/review/app"
	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

// defaultRoundBudget applies when a session step omits max_rounds.
const defaultRoundBudget = 10

type scenarioState struct {
	sessionID string
	lastRound *app.RoundResult
}

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "session":
		return r.stepSession(ctx, state, step)
	case "round":
		return r.stepRound(ctx, state, step)
	case "checkpoint":
		return r.stepCheckpoint(ctx, state)
	case "rollback":
		return r.stepRollback(ctx, state, step)
	case "expect":
		return r.stepExpect(state, step)
	case "end_session":
		return r.stepEndSession(ctx, state, step)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) ensureSession(state *scenarioState) error {
	if state.sessionID == "" {
		return r.failf("session is required")
	}
	return nil
}

func (r *Runner) stepSession(ctx context.Context, state *scenarioState, step Step) error {
	target := stringArg(step.Args, "target")
	requirements := stringArg(step.Args, "requirements")
	workingDir := stringArg(step.Args, "working_dir")
	budget := intArg(step.Args, "max_rounds", defaultRoundBudget)

	result, err := r.orch.Start(ctx, target, requirements, workingDir, budget)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	state.sessionID = result.SessionID
	state.lastRound = nil
	r.logf("session %s started (%d context files, budget %d)",
		result.SessionID, result.ContextFiles, result.RoundBudget)
	return nil
}

func (r *Runner) stepRound(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}

	input := app.RoundInput{
		Role:   domain.Role(strings.ToLower(stringArg(step.Args, "role"))),
		Output: stringArg(step.Args, "output"),
	}

	raises, err := issueListArg(step.Args, "raises")
	if err != nil {
		return err
	}
	input.IssuesRaised = raises

	resolves, err := resolutionListArg(step.Args, "resolves")
	if err != nil {
		return err
	}
	input.IssuesResolved = resolves
	input.IssuesChallenged = stringListArg(step.Args, "challenges")

	result, err := r.orch.SubmitRound(ctx, state.sessionID, input)
	if err != nil {
		return fmt.Errorf("submit round: %w", err)
	}
	state.lastRound = result

	r.logf("round %d recorded: next=%s converged=%v unresolved=%d",
		result.Round, result.NextRole, result.Convergence.Converged,
		result.Convergence.UnresolvedIssues)
	if result.Arbiter != nil {
		r.logf("arbiter: %s (%s)", result.Arbiter.Type, result.Arbiter.Reason)
	}
	for _, intervention := range result.Mediator {
		r.logf("mediator: %s %s", intervention.Type, strings.Join(intervention.Files, ", "))
	}
	return nil
}

func (r *Runner) stepCheckpoint(ctx context.Context, state *scenarioState) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	result, err := r.orch.Checkpoint(ctx, state.sessionID)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	r.logf("checkpoint at round %d (%d issues, %d files)",
		result.Round, result.Issues, result.ContextFiles)
	return nil
}

func (r *Runner) stepRollback(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	toRound := intArg(step.Args, "to_round", -1)
	if toRound < 0 {
		return r.failf("rollback to_round is required")
	}
	result, err := r.orch.Rollback(ctx, state.sessionID, toRound)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	state.lastRound = nil
	r.logf("rolled back to round %d (%d issues, %d files)",
		result.CurrentRound, result.Issues, result.ContextFiles)
	return nil
}

// stepExpect checks the previous round's convergence verdict against the
// script's expectations. Absent keys are not checked.
func (r *Runner) stepExpect(state *scenarioState, step Step) error {
	if state.lastRound == nil {
		return r.failf("expect requires a preceding round")
	}
	result := state.lastRound

	if want, ok := boolArg(step.Args, "converged"); ok {
		if result.Convergence.Converged != want {
			if err := r.assertf("converged = %v, want %v", result.Convergence.Converged, want); err != nil {
				return err
			}
		}
	}
	if want := stringArg(step.Args, "next_role"); want != "" {
		if result.NextRole != want {
			if err := r.assertf("next_role = %q, want %q", result.NextRole, want); err != nil {
				return err
			}
		}
	}
	if want, ok := numberArg(step.Args, "unresolved"); ok {
		if result.Convergence.UnresolvedIssues != want {
			if err := r.assertf("unresolved = %d, want %d", result.Convergence.UnresolvedIssues, want); err != nil {
				return err
			}
		}
	}
	if want, ok := numberArg(step.Args, "critical_unresolved"); ok {
		if result.Convergence.CriticalUnresolved != want {
			if err := r.assertf("critical_unresolved = %d, want %d", result.Convergence.CriticalUnresolved, want); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) stepEndSession(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	verdict := strings.ToUpper(stringArg(step.Args, "verdict"))
	if verdict == "" {
		verdict = string(domain.VerdictPass)
	}
	result, err := r.orch.EndSession(ctx, state.sessionID, domain.Verdict(verdict))
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	r.logf("session %s ended: %s after %d rounds (%d unresolved)",
		result.SessionID, result.Verdict, result.Rounds, result.Unresolved)
	state.sessionID = ""
	state.lastRound = nil
	return nil
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func intArg(args map[string]any, key string, fallback int) int {
	if value, ok := numberArg(args, key); ok {
		return value
	}
	return fallback
}

func numberArg(args map[string]any, key string) (int, bool) {
	switch value := args[key].(type) {
	case int:
		return value, true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

func boolArg(args map[string]any, key string) (bool, bool) {
	value, ok := args[key].(bool)
	return value, ok
}

func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range raw {
		if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func issueListArg(args map[string]any, key string) ([]domain.Issue, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, nil
	}
	var out []domain.Issue
	for _, entry := range raw {
		table, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s entries must be tables", key)
		}
		out = append(out, domain.Issue{
			ID:          stringArg(table, "id"),
			Category:    domain.Category(strings.ToLower(stringArg(table, "category"))),
			Severity:    domain.Severity(strings.ToUpper(stringArg(table, "severity"))),
			Summary:     stringArg(table, "summary"),
			Description: stringArg(table, "description"),
			Evidence:    stringArg(table, "evidence"),
			Location:    stringArg(table, "location"),
		})
	}
	return out, nil
}

// resolutionListArg accepts either bare issue ids or tables with id and
// notes.
func resolutionListArg(args map[string]any, key string) ([]app.Resolution, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, nil
	}
	var out []app.Resolution
	for _, entry := range raw {
		switch value := entry.(type) {
		case string:
			out = append(out, app.Resolution{ID: strings.TrimSpace(value)})
		case map[string]any:
			out = append(out, app.Resolution{
				ID:    stringArg(value, "id"),
				Notes: stringArg(value, "notes"),
			})
		default:
			return nil, fmt.Errorf("%s entries must be ids or tables", key)
		}
	}
	return out, nil
}
