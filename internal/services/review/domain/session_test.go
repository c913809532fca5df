package domain

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("src-auth-20260314T092653-abc123", "src/auth", "security review", "/work", 10, testNow)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSessionRejectsZeroBudget(t *testing.T) {
	if _, err := NewSession("s1", "src", "req", "/work", 0, testNow); err == nil {
		t.Fatal("expected error for round budget below 1")
	}
}

func TestValidSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"src-auth-20260314T092653-abc123", true},
		{"simple_id", true},
		{"", false},
		{"../../etc/passwd", false},
		{"has/slash", false},
		{"has space", false},
		{strings.Repeat("a", 128), true},
		{strings.Repeat("a", 129), false},
	}
	for _, tc := range tests {
		if got := ValidSessionID(tc.id); got != tc.want {
			t.Errorf("ValidSessionID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestNewSessionIDIsStorageSafe(t *testing.T) {
	id := NewSessionID("src/auth/../handlers.go", testNow, "x7f2k9")
	if !ValidSessionID(id) {
		t.Fatalf("derived id %q fails validation", id)
	}
	if !strings.Contains(id, "x7f2k9") {
		t.Fatalf("derived id %q lost its random suffix", id)
	}
}

func TestAppendRoundKeepsCounterInSync(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 3; i++ {
		role := RoleVerifier
		if i%2 == 1 {
			role = RoleCritic
		}
		s.AppendRound(Round{Role: role, Output: "output", Timestamp: testNow})
	}

	if s.CurrentRound != len(s.Rounds) {
		t.Fatalf("CurrentRound = %d, round log length = %d", s.CurrentRound, len(s.Rounds))
	}
	for i, round := range s.Rounds {
		if round.Number != i+1 {
			t.Fatalf("round %d has number %d", i, round.Number)
		}
	}
	if s.Status != StatusVerifying {
		t.Fatalf("status = %q, want verifying after first round", s.Status)
	}
}

func TestContextAddIsIdempotent(t *testing.T) {
	vc := NewVerificationContext()
	if !vc.Add(&FileContext{Path: "src/auth/login.go", Layer: LayerBase}) {
		t.Fatal("first add should succeed")
	}
	if vc.Add(&FileContext{Path: "src/auth/login.go", Layer: LayerDiscovered, DiscoveredRound: 5}) {
		t.Fatal("second add of the same path should be a no-op")
	}

	fc := vc.Get("src/auth/login.go")
	if fc.Layer != LayerBase || fc.DiscoveredRound != 0 {
		t.Fatalf("layer/discovery round changed on re-add: %+v", fc)
	}
	if vc.Len() != 1 {
		t.Fatalf("context length = %d, want 1", vc.Len())
	}
}

func TestContextLayering(t *testing.T) {
	vc := NewVerificationContext()
	vc.Add(&FileContext{Path: "base.go", Layer: LayerBase})
	vc.Add(&FileContext{Path: "found.go", Layer: LayerDiscovered, DiscoveredRound: 3})

	base := vc.Get("base.go")
	if base.Layer != LayerBase || base.DiscoveredRound != 0 {
		t.Fatalf("base file = %+v", base)
	}
	found := vc.Get("found.go")
	if found.Layer != LayerDiscovered || found.DiscoveredRound != 3 {
		t.Fatalf("discovered file = %+v", found)
	}
}

func TestMarkVerifiedKeepsFirstRound(t *testing.T) {
	vc := NewVerificationContext()
	vc.Add(&FileContext{Path: "a.go", Layer: LayerBase})
	vc.MarkVerified([]string{"a.go"}, 2)
	vc.MarkVerified([]string{"a.go"}, 5)
	if got := vc.Get("a.go").VerifiedRound; got != 2 {
		t.Fatalf("VerifiedRound = %d, want 2", got)
	}
}

func TestCheckpointRollbackRoundTrip(t *testing.T) {
	s := newTestSession(t)

	s.AppendRound(Round{Role: RoleVerifier, Output: "r1", IssuesRaised: []string{"sec-1"}})
	s.UpsertIssue(Issue{ID: "sec-1", Category: CategorySecurity, Severity: SeverityCritical, RaisedBy: RoleVerifier, RaisedRound: 1, Status: IssueRaised})
	s.AppendRound(Round{Role: RoleCritic, Output: "r2"})

	s.TakeCheckpoint(testNow)
	ledgerAtCheckpoint := CloneIssues(s.Issues)

	// Three more rounds mutate the ledger past the checkpoint.
	s.AppendRound(Round{Role: RoleVerifier, Output: "r3", IssuesRaised: []string{"perf-1"}})
	s.UpsertIssue(Issue{ID: "perf-1", Category: CategoryPerformance, Severity: SeverityLow, RaisedRound: 3, Status: IssueRaised})
	s.AppendRound(Round{Role: RoleCritic, Output: "r4", IssuesResolved: []string{"sec-1"}})
	s.ResolveIssue("sec-1", 4, "fixed")
	s.AppendRound(Round{Role: RoleVerifier, Output: "r5"})

	if err := s.RollbackTo(2); err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}

	if len(s.Rounds) != 2 || s.CurrentRound != 2 {
		t.Fatalf("rounds = %d, current = %d, want 2/2", len(s.Rounds), s.CurrentRound)
	}
	if !reflect.DeepEqual(s.Issues, ledgerAtCheckpoint) {
		t.Fatalf("ledger after rollback = %+v, want %+v", s.Issues, ledgerAtCheckpoint)
	}
	if s.Status != StatusVerifying {
		t.Fatalf("status = %q, want verifying", s.Status)
	}
}

func TestRollbackCannotRollForward(t *testing.T) {
	s := newTestSession(t)

	s.AppendRound(Round{Role: RoleVerifier, Output: "r1"})
	s.AppendRound(Round{Role: RoleCritic, Output: "r2"})
	s.TakeCheckpoint(testNow)
	s.AppendRound(Round{Role: RoleVerifier, Output: "r3"})
	s.AppendRound(Round{Role: RoleCritic, Output: "r4"})
	s.TakeCheckpoint(testNow)

	if err := s.RollbackTo(2); err != nil {
		t.Fatalf("RollbackTo(2): %v", err)
	}

	// The round 4 checkpoint describes rounds the rollback discarded; using
	// it would advance CurrentRound past the round log.
	if err := s.RollbackTo(4); err == nil {
		t.Fatal("expected rollback to a later checkpoint to fail")
	}
	if s.CurrentRound != 2 || len(s.Rounds) != 2 {
		t.Fatalf("CurrentRound = %d, round log length = %d, want 2/2", s.CurrentRound, len(s.Rounds))
	}
	if s.FindCheckpoint(4) != nil {
		t.Fatal("discarded checkpoint must not stay rollback-eligible")
	}
	if s.FindCheckpoint(2) == nil {
		t.Fatal("the restored checkpoint must stay rollback-eligible")
	}
}

func TestRollbackWithoutCheckpointFails(t *testing.T) {
	s := newTestSession(t)
	s.AppendRound(Round{Role: RoleVerifier, Output: "r1"})
	if err := s.RollbackTo(1); err == nil {
		t.Fatal("expected rollback to fail without an eligible checkpoint")
	}
	if len(s.Rounds) != 1 {
		t.Fatal("failed rollback must leave session untouched")
	}
}

func TestRollbackKeepsDiscoveredContext(t *testing.T) {
	s := newTestSession(t)
	s.AppendRound(Round{Role: RoleVerifier, Output: "r1"})
	s.AppendRound(Round{Role: RoleCritic, Output: "r2"})
	s.TakeCheckpoint(testNow)
	s.AppendRound(Round{Role: RoleVerifier, Output: "r3"})
	s.Context.Add(&FileContext{Path: "late.go", Layer: LayerDiscovered, DiscoveredRound: 3})

	if err := s.RollbackTo(2); err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}
	if s.Context.Get("late.go") == nil {
		t.Fatal("rollback must not delete discovered context files")
	}
}

func TestRoleAlternate(t *testing.T) {
	if RoleVerifier.Alternate() != RoleCritic || RoleCritic.Alternate() != RoleVerifier {
		t.Fatal("role alternation is not symmetric")
	}
}
