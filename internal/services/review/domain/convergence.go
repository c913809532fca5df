package domain

// CategoryCoverage pairs the number of findings raised in a category with
// the fixed total for that category. Coverage is a diagnostic signal; by
// default it never gates convergence.
type CategoryCoverage struct {
	Checked int
	Total   int
}

// ConvergenceStatus is the evaluator's verdict plus diagnostic counters.
type ConvergenceStatus struct {
	Converged              bool
	UnresolvedIssues       int
	CriticalUnresolved     int
	RoundsWithoutNewIssues int
	CurrentRound           int
	Coverage               map[Category]CategoryCoverage
}

// Policy configures the convergence predicate. The round budget is
// deliberately absent: budget exhaustion is a separate forced-stop condition
// owned by the orchestrator.
type Policy struct {
	// RequireCoverage additionally demands at least one finding per
	// category before converging.
	RequireCoverage bool
	// MinQuietRounds is the trailing run of no-new-issue rounds required.
	MinQuietRounds int
}

// DefaultPolicy returns the standard convergence policy.
func DefaultPolicy() Policy {
	return Policy{MinQuietRounds: 2}
}

// Evaluate is a pure function of session state. The predicate is: no
// unresolved CRITICAL findings, at least MinQuietRounds trailing rounds that
// raised nothing, and at least two rounds total.
func Evaluate(s *Session, policy Policy) ConvergenceStatus {
	if policy.MinQuietRounds <= 0 {
		policy.MinQuietRounds = 2
	}

	status := ConvergenceStatus{
		CurrentRound: s.CurrentRound,
		Coverage:     make(map[Category]CategoryCoverage, len(Categories)),
	}

	for _, category := range Categories {
		status.Coverage[category] = CategoryCoverage{Total: CategoryTotals[category]}
	}
	for _, issue := range s.Issues {
		coverage := status.Coverage[issue.Category]
		coverage.Checked++
		status.Coverage[issue.Category] = coverage

		if issue.Status != IssueResolved {
			status.UnresolvedIssues++
			if issue.Severity == SeverityCritical {
				status.CriticalUnresolved++
			}
		}
	}

	// Trailing run of rounds that raised nothing, scanning backwards and
	// stopping at the first round that raised a finding.
	for i := len(s.Rounds) - 1; i >= 0; i-- {
		if len(s.Rounds[i].IssuesRaised) > 0 {
			break
		}
		status.RoundsWithoutNewIssues++
	}

	status.Converged = status.CriticalUnresolved == 0 &&
		status.RoundsWithoutNewIssues >= policy.MinQuietRounds &&
		status.CurrentRound >= 2

	if status.Converged && policy.RequireCoverage {
		for _, coverage := range status.Coverage {
			if coverage.Checked == 0 {
				status.Converged = false
				break
			}
		}
	}

	return status
}
