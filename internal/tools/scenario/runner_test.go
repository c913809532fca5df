package scenario

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRunner(t *testing.T, mode AssertionMode) *Runner {
	t.Helper()
	runner, err := NewRunner(Config{Assertions: mode})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() { _ = runner.Close() })
	return runner
}

func sessionStep() Step {
	return Step{Kind: "session", Args: map[string]any{
		"target":       "billing.go",
		"requirements": "idempotent invoice creation",
		"max_rounds":   6,
	}}
}

func roundStep(role, output string, extra map[string]any) Step {
	args := map[string]any{"role": role, "output": output}
	for key, value := range extra {
		args[key] = value
	}
	return Step{Kind: "round", Args: args}
}

func TestRunScenarioConvergesAndEnds(t *testing.T) {
	runner := newTestRunner(t, AssertionStrict)

	scenario := &Scenario{Name: "converge", Steps: []Step{
		sessionStep(),
		roundStep("verifier", "invoice creation retries safely", map[string]any{
			"raises": []any{map[string]any{
				"id": "BUG-1", "category": "functionality", "severity": "HIGH",
				"summary": "double charge on retry",
			}},
		}),
		{Kind: "expect", Args: map[string]any{
			"converged": false, "next_role": "critic", "unresolved": 1,
		}},
		roundStep("critic", "retry path now keyed by idempotency token", map[string]any{
			"resolves": []any{map[string]any{"id": "BUG-1", "notes": "token added"}},
		}),
		roundStep("verifier", "re-checked the retry path, no further findings", nil),
		{Kind: "expect", Args: map[string]any{
			"converged": true, "next_role": "complete",
			"unresolved": 0, "critical_unresolved": 0,
		}},
		{Kind: "end_session", Args: map[string]any{"verdict": "PASS"}},
	}}

	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunScenarioRollbackDiscardsLaterFindings(t *testing.T) {
	runner := newTestRunner(t, AssertionStrict)

	scenario := &Scenario{Name: "rollback", Steps: []Step{
		sessionStep(),
		roundStep("verifier", "found a race in invoice numbering", map[string]any{
			"raises": []any{map[string]any{
				"id": "CRIT-1", "category": "functionality", "severity": "CRITICAL",
				"summary": "unsynchronized counter",
			}},
		}),
		{Kind: "checkpoint", Args: map[string]any{}},
		roundStep("critic", "the numbering race also corrupts audit rows", map[string]any{
			"raises": []any{map[string]any{
				"id": "CRIT-2", "category": "functionality", "severity": "CRITICAL",
				"summary": "audit rows written out of order",
			}},
		}),
		{Kind: "rollback", Args: map[string]any{"to_round": 1}},
		roundStep("critic", "numbering race still stands, nothing new", nil),
		roundStep("verifier", "counter now guarded, race resolved", map[string]any{
			"resolves": []any{"CRIT-1"},
		}),
		{Kind: "expect", Args: map[string]any{
			"converged": true, "unresolved": 0, "critical_unresolved": 0,
		}},
	}}

	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunScenarioStrictModeAbortsOnMismatch(t *testing.T) {
	runner := newTestRunner(t, AssertionStrict)

	scenario := &Scenario{Name: "strict", Steps: []Step{
		sessionStep(),
		roundStep("verifier", "first look", nil),
		{Kind: "expect", Args: map[string]any{"converged": true}},
	}}

	err := runner.RunScenario(context.Background(), scenario)
	if err == nil {
		t.Fatal("expected assertion error")
	}
	if !strings.Contains(err.Error(), "converged") {
		t.Fatalf("error = %q, want converged mismatch", err.Error())
	}
}

func TestRunScenarioLogOnlyModeContinues(t *testing.T) {
	var buf bytes.Buffer
	runner, err := NewRunner(Config{
		Assertions: AssertionLogOnly,
		Logger:     log.New(&buf, "", 0),
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	defer runner.Close()

	scenario := &Scenario{Name: "log-only", Steps: []Step{
		sessionStep(),
		roundStep("verifier", "first look", nil),
		{Kind: "expect", Args: map[string]any{"converged": true}},
		{Kind: "end_session", Args: map[string]any{"verdict": "CONDITIONAL"}},
	}}

	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if !strings.Contains(buf.String(), "assertion failed") {
		t.Errorf("expected logged assertion, got %q", buf.String())
	}
}

func TestRunScenarioRequiresSessionBeforeRound(t *testing.T) {
	runner := newTestRunner(t, AssertionStrict)

	scenario := &Scenario{Name: "no-session", Steps: []Step{
		roundStep("verifier", "nothing to review yet", nil),
	}}

	err := runner.RunScenario(context.Background(), scenario)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "session is required") {
		t.Fatalf("error = %q, want session is required", err.Error())
	}
}

func TestRunScenarioRejectsUnknownStep(t *testing.T) {
	runner := newTestRunner(t, AssertionStrict)

	scenario := &Scenario{Name: "bogus", Steps: []Step{
		{Kind: "teleport", Args: map[string]any{}},
	}}

	err := runner.RunScenario(context.Background(), scenario)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unknown step kind") {
		t.Fatalf("error = %q, want unknown step kind", err.Error())
	}
}

func TestRunnerSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scenario.db")
	runner, err := NewRunner(Config{DBPath: dbPath, Assertions: AssertionStrict})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	defer runner.Close()

	scenario := &Scenario{Name: "sqlite", Steps: []Step{
		sessionStep(),
		roundStep("verifier", "looks fine", nil),
		{Kind: "end_session", Args: map[string]any{"verdict": "PASS"}},
	}}

	if err := runner.RunScenario(context.Background(), scenario); err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunFileExecutesLuaScenario(t *testing.T) {
	path := writeScenarioFixture(t, `-- Full review flow
local scene = Scenario.new("lua flow")
scene:session({target = "ledger.go", requirements = "balanced postings", max_rounds = 4})
scene:round({
	role = "verifier",
	output = "postings sum to zero per transaction",
	raises = {
		{id = "PERF-1", category = "performance", severity = "LOW", summary = "full table scan"},
	},
})
scene:round({role = "critic", output = "scan is bounded, acceptable", resolves = {"PERF-1"}})
scene:round({role = "verifier", output = "nothing further"})
scene:expect({converged = true, unresolved = 0})
scene:end_session({verdict = "PASS"})
return scene
`)

	err := RunFile(context.Background(), Config{Assertions: AssertionStrict}, path)
	if err != nil {
		t.Fatalf("run file: %v", err)
	}
}
