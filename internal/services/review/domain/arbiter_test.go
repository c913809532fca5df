package domain

import (
	"fmt"
	"testing"
)

func TestArbitrateContextExpand(t *testing.T) {
	s := newTestSession(t)
	s.AppendRound(Round{
		Role:            RoleVerifier,
		Output:          "r1",
		ContextExpanded: true,
		NewFiles:        []string{"a.go", "b.go", "c.go", "d.go"},
	})

	intervention := Arbitrate(s)
	if intervention == nil || intervention.Type != InterventionContextExpand {
		t.Fatalf("intervention = %+v, want CONTEXT_EXPAND", intervention)
	}
	if len(intervention.Files) != 4 {
		t.Fatalf("files = %v", intervention.Files)
	}
}

func TestArbitrateThreeNewFilesIsFine(t *testing.T) {
	s := newTestSession(t)
	s.AppendRound(Round{Role: RoleVerifier, Output: "r1", NewFiles: []string{"a.go", "b.go", "c.go"}})
	if intervention := Arbitrate(s); intervention != nil {
		t.Fatalf("3 new files must not trigger, got %+v", intervention)
	}
}

func TestArbitrateLoopBreak(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 3; i++ {
		role := RoleVerifier
		if i%2 == 1 {
			role = RoleCritic
		}
		s.AppendRound(Round{Role: role, Output: "out", IssuesRaised: []string{"sec-1"}})
	}

	intervention := Arbitrate(s)
	if intervention == nil || intervention.Type != InterventionLoopBreak {
		t.Fatalf("intervention = %+v, want LOOP_BREAK", intervention)
	}
	if len(intervention.Rounds) != 3 {
		t.Fatalf("rounds = %v, want the three raising rounds", intervention.Rounds)
	}
}

func TestArbitrateLoopWindowIsFourRounds(t *testing.T) {
	s := newTestSession(t)
	// Two raises, then three quiet rounds push the raises out of the window.
	s.AppendRound(Round{Role: RoleVerifier, Output: "o", IssuesRaised: []string{"sec-1"}})
	s.AppendRound(Round{Role: RoleCritic, Output: "o", IssuesRaised: []string{"sec-1"}})
	s.AppendRound(Round{Role: RoleVerifier, Output: "o"})
	s.AppendRound(Round{Role: RoleCritic, Output: "o"})
	s.AppendRound(Round{Role: RoleVerifier, Output: "o", IssuesRaised: []string{"sec-1"}})

	intervention := Arbitrate(s)
	if intervention != nil {
		t.Fatalf("only 2 raises within the window, got %+v", intervention)
	}
}

func TestArbitrateSoftCorrect(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 51; i++ {
		s.Context.Add(&FileContext{Path: fmt.Sprintf("file_%d.go", i), Layer: LayerBase})
	}
	s.AppendRound(Round{Role: RoleVerifier, Output: "r1"})

	intervention := Arbitrate(s)
	if intervention == nil || intervention.Type != InterventionSoftCorrect {
		t.Fatalf("intervention = %+v, want SOFT_CORRECT", intervention)
	}
}

func TestArbitrateFirstMatchWins(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 51; i++ {
		s.Context.Add(&FileContext{Path: fmt.Sprintf("file_%d.go", i), Layer: LayerBase})
	}
	// Both CONTEXT_EXPAND and SOFT_CORRECT apply; CONTEXT_EXPAND wins.
	s.AppendRound(Round{Role: RoleVerifier, Output: "r1", NewFiles: []string{"a.go", "b.go", "c.go", "d.go"}})

	intervention := Arbitrate(s)
	if intervention == nil || intervention.Type != InterventionContextExpand {
		t.Fatalf("intervention = %+v, want CONTEXT_EXPAND to win", intervention)
	}
}

func TestArbitrateNoRounds(t *testing.T) {
	s := newTestSession(t)
	if Arbitrate(s) != nil {
		t.Fatal("no rounds, no intervention")
	}
}
