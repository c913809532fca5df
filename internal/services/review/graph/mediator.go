package graph

import (
	"fmt"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

const (
	// importanceThreshold is the in-degree at or above which an unverified
	// file is worth flagging.
	importanceThreshold = 2
	// blastRadiusLimit is the ripple size above which a discussed file is
	// flagged as wide-impact.
	blastRadiusLimit = 10
)

// MediatorInterventionType classifies a graph-derived intervention.
type MediatorInterventionType string

const (
	// InterventionUnverifiedImpact flags discussion of a high-importance
	// file no verifier round has looked at.
	InterventionUnverifiedImpact MediatorInterventionType = "UNVERIFIED_IMPACT"
	// InterventionWideBlastRadius flags discussion of a file whose changes
	// ripple across a large share of the graph.
	InterventionWideBlastRadius MediatorInterventionType = "WIDE_BLAST_RADIUS"
)

// MediatorIntervention is an advisory record derived from graph state. Like
// arbiter interventions it is returned with the triggering round and never
// blocks it.
type MediatorIntervention struct {
	Type            MediatorInterventionType
	Reason          string
	SuggestedAction string
	Files           []string
}

// AnalyzeRound inspects the files a round referenced against graph state and
// returns zero or more interventions, at most one per referenced file.
func (g *Graph) AnalyzeRound(session *domain.Session, referencedPaths []string) []MediatorIntervention {
	var out []MediatorIntervention
	for _, p := range referencedPaths {
		node := g.Node(p)
		if node == nil || node.External {
			continue
		}

		fc := session.Context.Get(p)
		if fc != nil && fc.VerifiedRound == 0 && node.Importance >= importanceThreshold {
			out = append(out, MediatorIntervention{
				Type:            InterventionUnverifiedImpact,
				Reason:          fmt.Sprintf("%s is depended on by %d files but no verifier round has examined it", p, node.Importance),
				SuggestedAction: "have the verifier examine this file before arguing about its behavior",
				Files:           []string{p},
			})
			continue
		}

		if ripple := g.RippleEffect(p, ""); ripple != nil && ripple.TotalAffected > blastRadiusLimit {
			out = append(out, MediatorIntervention{
				Type:            InterventionWideBlastRadius,
				Reason:          fmt.Sprintf("changes to %s ripple to %d files", p, ripple.TotalAffected),
				SuggestedAction: "bound the proposed change or split the discussion per affected area",
				Files:           []string{p},
			})
		}
	}
	return out
}

// Summary aggregates graph statistics for the mediator_summary operation.
type Summary struct {
	NodeCount       int
	EdgeCount       int
	UnverifiedFiles []string
	Cycles          [][]string
	// InterventionCount is the session's lifetime mediator intervention
	// count, carried on the session aggregate.
	InterventionCount int
}

// Summarize reports node/edge counts, important-but-unverified files, and
// detected cycles.
func (g *Graph) Summarize(session *domain.Session) Summary {
	summary := Summary{
		NodeCount:         len(g.order),
		EdgeCount:         len(g.edges),
		Cycles:            g.Cycles(),
		InterventionCount: session.MediatorInterventions,
	}
	for _, p := range g.order {
		node := g.nodes[p]
		if node.External || node.Importance < importanceThreshold {
			continue
		}
		fc := session.Context.Get(p)
		if fc != nil && fc.VerifiedRound == 0 {
			summary.UnverifiedFiles = append(summary.UnverifiedFiles, p)
		}
	}
	return summary
}
