package domain

import (
	"fmt"
	"strings"
)

// InterventionType classifies an advisory intervention.
type InterventionType string

const (
	// InterventionContextExpand flags an abrupt scope expansion.
	InterventionContextExpand InterventionType = "CONTEXT_EXPAND"
	// InterventionLoopBreak flags a repeatedly re-raised, unresolved dispute.
	InterventionLoopBreak InterventionType = "LOOP_BREAK"
	// InterventionSoftCorrect flags unmanageably large context scope.
	InterventionSoftCorrect InterventionType = "SOFT_CORRECT"
)

// Intervention is an ephemeral advisory record. It is returned in the
// response of the round that triggered it and never persisted as session
// state.
type Intervention struct {
	Type            InterventionType
	Reason          string
	SuggestedAction string
	Rounds          []int
	Files           []string
}

const (
	// arbiterDiscoveryLimit is the per-round new-file count above which the
	// arbiter flags scope growth.
	arbiterDiscoveryLimit = 3
	// arbiterLoopWindow is how many trailing rounds the loop detector scans.
	arbiterLoopWindow = 4
	// arbiterLoopRepeats is the raise count within the window that signals a
	// circular dispute.
	arbiterLoopRepeats = 3
	// arbiterContextLimit is the total context size above which the arbiter
	// suggests narrowing scope.
	arbiterContextLimit = 50
)

// Arbitrate inspects the most recent round and returns at most one advisory
// intervention, first match wins. It never blocks the round from being
// recorded.
func Arbitrate(s *Session) *Intervention {
	if len(s.Rounds) == 0 {
		return nil
	}
	last := s.Rounds[len(s.Rounds)-1]

	if len(last.NewFiles) > arbiterDiscoveryLimit {
		return &Intervention{
			Type:            InterventionContextExpand,
			Reason:          fmt.Sprintf("round %d discovered %d new files", last.Number, len(last.NewFiles)),
			SuggestedAction: "pause and confirm the review scope before absorbing more context",
			Rounds:          []int{last.Number},
			Files:           append([]string(nil), last.NewFiles...),
		}
	}

	if intervention := detectLoop(s); intervention != nil {
		return intervention
	}

	if s.Context.Len() > arbiterContextLimit {
		return &Intervention{
			Type:            InterventionSoftCorrect,
			Reason:          fmt.Sprintf("context holds %d files", s.Context.Len()),
			SuggestedAction: "narrow the review to the files most relevant to the requirements",
		}
	}

	return nil
}

// detectLoop looks for any single issue identifier raised in at least
// arbiterLoopRepeats of the last arbiterLoopWindow rounds.
func detectLoop(s *Session) *Intervention {
	start := len(s.Rounds) - arbiterLoopWindow
	if start < 0 {
		start = 0
	}
	window := s.Rounds[start:]

	raisedIn := map[string][]int{}
	for _, round := range window {
		seen := map[string]struct{}{}
		for _, id := range round.IssuesRaised {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			raisedIn[id] = append(raisedIn[id], round.Number)
		}
	}

	for _, round := range window {
		for _, id := range round.IssuesRaised {
			rounds := raisedIn[id]
			if len(rounds) >= arbiterLoopRepeats {
				return &Intervention{
					Type:            InterventionLoopBreak,
					Reason:          fmt.Sprintf("issue %q was raised in rounds %s without resolution", id, joinRounds(rounds)),
					SuggestedAction: "have the roles settle or park this dispute before continuing",
					Rounds:          rounds,
				}
			}
		}
	}
	return nil
}

func joinRounds(rounds []int) string {
	parts := make([]string, len(rounds))
	for i, r := range rounds {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(parts, ", ")
}
