package graph

import "fmt"

// Impact classifies how a node is affected by a change.
type Impact string

const (
	// ImpactDirect marks files one reverse edge away from the change.
	ImpactDirect Impact = "direct"
	// ImpactTransitive marks files further out.
	ImpactTransitive Impact = "transitive"
)

// AffectedFile is one node reached by a ripple traversal.
type AffectedFile struct {
	Path   string
	Depth  int
	Impact Impact
	Reason string
}

// RippleResult describes the blast radius of a change.
type RippleResult struct {
	ChangedFile     string
	ChangedFunction string
	AffectedFiles   []AffectedFile
	TotalAffected   int
	MaxDepth        int
}

// RippleEffect walks reverse dependency edges breadth-first from
// changedFile. Returns nil when changedFile is not a graph node, so callers
// can distinguish "no impact" from "unknown file". Traversal order is
// deterministic: ties break by edge insertion order.
func (g *Graph) RippleEffect(changedFile, changedFunction string) *RippleResult {
	if g.Node(changedFile) == nil {
		return nil
	}

	result := &RippleResult{
		ChangedFile:     changedFile,
		ChangedFunction: changedFunction,
	}

	visited := map[string]struct{}{changedFile: {}}
	type queued struct {
		path  string
		depth int
	}
	queue := []queued{{path: changedFile, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, idx := range g.reverse[current.path] {
			dependent := g.edges[idx].From
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}

			depth := current.depth + 1
			impact := ImpactTransitive
			if depth == 1 {
				impact = ImpactDirect
			}
			reason := fmt.Sprintf("imports %s", current.path)
			if current.depth > 0 {
				reason = fmt.Sprintf("depends on %s through %s", changedFile, current.path)
			}

			result.AffectedFiles = append(result.AffectedFiles, AffectedFile{
				Path:   dependent,
				Depth:  depth,
				Impact: impact,
				Reason: reason,
			})
			if depth > result.MaxDepth {
				result.MaxDepth = depth
			}
			queue = append(queue, queued{path: dependent, depth: depth})
		}
	}

	result.TotalAffected = len(result.AffectedFiles)
	return result
}
