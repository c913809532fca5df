// Package graph derives a directed dependency graph from a session's
// verification context. The graph is a read-derived view: it is rebuilt from
// context on demand and never persisted independently.
package graph

import (
	"fmt"
	"path"
	"strings"

	"github.com/louisbranch/crosscheck/internal/services/review/domain"
)

// Edge is one directed depends-on relation.
type Edge struct {
	From   string
	To     string
	Reason string
}

// Node is one graph node with its derived importance score.
type Node struct {
	Path string
	// External marks package-style references that resolved to no context
	// file; they participate in edges but carry no content.
	External bool
	// Importance is the node's in-degree: how many files depend on it.
	Importance int
}

// Graph is the dependency view over a session's context files. Node and edge
// slices preserve insertion order so traversals are deterministic.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	edges   []Edge
	forward map[string][]int // node -> indexes into edges (outgoing)
	reverse map[string][]int // node -> indexes into edges (incoming)
	cycles  [][]string
}

// Build constructs the graph from the verification context. Relative
// references are resolved against the referencing file's directory and the
// working directory; package-style references become opaque external nodes.
func Build(vctx *domain.VerificationContext, workingDir string) *Graph {
	g := &Graph{
		nodes:   map[string]*Node{},
		forward: map[string][]int{},
		reverse: map[string][]int{},
	}

	for _, p := range vctx.Paths() {
		g.addNode(p, false)
	}

	for _, from := range vctx.Paths() {
		fc := vctx.Get(from)
		for _, ref := range fc.References {
			to, external := resolveReference(vctx, workingDir, from, ref)
			if to == from {
				continue
			}
			g.addNode(to, external)
			g.addEdge(Edge{From: from, To: to, Reason: fmt.Sprintf("imports %s", ref)})
		}
	}

	for _, e := range g.edges {
		g.nodes[e.To].Importance++
	}

	g.cycles = g.detectCycles()
	return g
}

func (g *Graph) addNode(p string, external bool) {
	if _, exists := g.nodes[p]; exists {
		return
	}
	g.nodes[p] = &Node{Path: p, External: external}
	g.order = append(g.order, p)
}

func (g *Graph) addEdge(e Edge) {
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.forward[e.From] = append(g.forward[e.From], idx)
	g.reverse[e.To] = append(g.reverse[e.To], idx)
}

// resolveReference maps a raw dependency reference to a graph node. A
// relative reference resolves against the referencing file; anything that
// matches a context path (directly or with a known extension appended) binds
// to that file, otherwise the reference stays an opaque external node.
func resolveReference(vctx *domain.VerificationContext, workingDir, from, ref string) (string, bool) {
	candidates := []string{ref}

	if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
		joined := path.Join(path.Dir(from), ref)
		candidates = append([]string{joined}, candidates...)
	} else if workingDir != "" {
		candidates = append(candidates, path.Join(workingDir, ref))
	}

	var resolved []string
	for _, c := range candidates {
		resolved = append(resolved, c)
		if path.Ext(c) == "" {
			for _, ext := range []string{".go", ".ts", ".js", ".py", ".rs", ".rb"} {
				resolved = append(resolved, c+ext)
			}
		}
	}

	for _, c := range resolved {
		if vctx.Get(c) != nil {
			return c, false
		}
	}
	return ref, true
}

// Nodes returns the graph nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, p := range g.order {
		out = append(out, *g.nodes[p])
	}
	return out
}

// Node returns the named node, or nil.
func (g *Graph) Node(p string) *Node {
	return g.nodes[p]
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Cycles returns the dependency cycles found at build time. Cycles are
// reported, never treated as errors.
func (g *Graph) Cycles() [][]string {
	return g.cycles
}

// detectCycles runs a white/gray/black depth-first search over forward
// edges. Each reported cycle is the gray-path segment from the first
// re-entered node.
func (g *Graph) detectCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))
	var trail []string
	var cycles [][]string

	var visit func(p string)
	visit = func(p string) {
		color[p] = gray
		trail = append(trail, p)

		for _, idx := range g.forward[p] {
			next := g.edges[idx].To
			switch color[next] {
			case white:
				visit(next)
			case gray:
				for i, seen := range trail {
					if seen == next {
						cycle := make([]string, len(trail)-i)
						copy(cycle, trail[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		trail = trail[:len(trail)-1]
		color[p] = black
	}

	for _, p := range g.order {
		if color[p] == white {
			visit(p)
		}
	}
	return cycles
}
