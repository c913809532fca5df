package domain

// Category is the closed set of finding categories.
type Category string

const (
	CategoryFunctionality   Category = "functionality"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryErrorHandling   Category = "error_handling"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
)

// Categories lists every category in reporting order.
var Categories = []Category{
	CategoryFunctionality,
	CategorySecurity,
	CategoryPerformance,
	CategoryErrorHandling,
	CategoryMaintainability,
	CategoryTesting,
}

// CategoryTotals holds the fixed per-category check totals used as a
// coverage signal by the convergence evaluator. Totals are a signal, not a
// hard requirement.
var CategoryTotals = map[Category]int{
	CategoryFunctionality:   5,
	CategorySecurity:        5,
	CategoryPerformance:     3,
	CategoryErrorHandling:   4,
	CategoryMaintainability: 3,
	CategoryTesting:         4,
}

// Valid reports whether the category belongs to the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryFunctionality, CategorySecurity, CategoryPerformance,
		CategoryErrorHandling, CategoryMaintainability, CategoryTesting:
		return true
	}
	return false
}

// Severity orders findings from CRITICAL down to LOW.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Valid reports whether the severity belongs to the closed set.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank returns the ordering weight of the severity; CRITICAL ranks highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// IssueStatus is the finding lifecycle state.
type IssueStatus string

const (
	// IssueRaised is the initial state of every finding.
	IssueRaised IssueStatus = "RAISED"
	// IssueChallenged marks a finding disputed by the opposing role.
	IssueChallenged IssueStatus = "CHALLENGED"
	// IssueResolved marks a finding settled in a round.
	IssueResolved IssueStatus = "RESOLVED"
	// IssueUnresolved is the terminal non-resolution state applied when a
	// session ends with the finding still open.
	IssueUnresolved IssueStatus = "UNRESOLVED"
)

// Valid reports whether the status belongs to the closed set.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueRaised, IssueChallenged, IssueResolved, IssueUnresolved:
		return true
	}
	return false
}

// Issue is one tracked finding. The ID is caller-assigned and unique within
// the session.
type Issue struct {
	ID              string
	Category        Category
	Severity        Severity
	Summary         string
	Description     string
	Evidence        string
	Location        string
	RaisedBy        Role
	RaisedRound     int
	Status          IssueStatus
	ResolvedRound   int
	ResolutionNotes string
}

// CloneIssues deep-copies an issue ledger.
func CloneIssues(issues []Issue) []Issue {
	if issues == nil {
		return nil
	}
	out := make([]Issue, len(issues))
	copy(out, issues)
	return out
}

// UpsertIssue inserts or replaces a finding by identifier. Resubmitting an
// identifier replaces the entry in place, preserving ledger position, so the
// ledger never grows on repeats.
func (s *Session) UpsertIssue(issue Issue) {
	for i := range s.Issues {
		if s.Issues[i].ID == issue.ID {
			s.Issues[i] = issue
			return
		}
	}
	s.Issues = append(s.Issues, issue)
}

// FindIssue returns a pointer into the ledger for id, or nil.
func (s *Session) FindIssue(id string) *Issue {
	for i := range s.Issues {
		if s.Issues[i].ID == id {
			return &s.Issues[i]
		}
	}
	return nil
}

// ResolveIssue marks an existing finding resolved in the given round. It
// reports whether the identifier referenced a known finding.
func (s *Session) ResolveIssue(id string, round int, notes string) bool {
	issue := s.FindIssue(id)
	if issue == nil {
		return false
	}
	issue.Status = IssueResolved
	issue.ResolvedRound = round
	if notes != "" {
		issue.ResolutionNotes = notes
	}
	return true
}

// ChallengeIssue marks an open finding as challenged. Resolved and
// terminally unresolved findings are left untouched.
func (s *Session) ChallengeIssue(id string) bool {
	issue := s.FindIssue(id)
	if issue == nil {
		return false
	}
	if issue.Status == IssueResolved || issue.Status == IssueUnresolved {
		return false
	}
	issue.Status = IssueChallenged
	return true
}

// IssueFilter selects a ledger subset.
type IssueFilter string

const (
	// FilterAll selects every finding.
	FilterAll IssueFilter = "all"
	// FilterUnresolved selects findings not yet resolved.
	FilterUnresolved IssueFilter = "unresolved"
	// FilterCritical selects CRITICAL findings regardless of status.
	FilterCritical IssueFilter = "critical"
)

// Valid reports whether the filter is a known selection.
func (f IssueFilter) Valid() bool {
	switch f {
	case FilterAll, FilterUnresolved, FilterCritical:
		return true
	}
	return false
}

// FilterIssues returns the ledger subset selected by the filter, in ledger
// order.
func (s *Session) FilterIssues(filter IssueFilter) []Issue {
	var out []Issue
	for _, issue := range s.Issues {
		switch filter {
		case FilterUnresolved:
			if issue.Status == IssueResolved {
				continue
			}
		case FilterCritical:
			if issue.Severity != SeverityCritical {
				continue
			}
		}
		out = append(out, issue)
	}
	return out
}

// SeverityCounts tallies findings by severity, total and unresolved.
type SeverityCounts struct {
	Total      int
	Unresolved int
}

// CountBySeverity summarizes the ledger per severity.
func (s *Session) CountBySeverity() map[Severity]SeverityCounts {
	out := make(map[Severity]SeverityCounts, len(Severities))
	for _, issue := range s.Issues {
		counts := out[issue.Severity]
		counts.Total++
		if issue.Status != IssueResolved {
			counts.Unresolved++
		}
		out[issue.Severity] = counts
	}
	return out
}
