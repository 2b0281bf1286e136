// Package convgraph builds and queries a directed multigraph of who asked
// questions of whom in a compacted meeting transcript, and who answered.
//
// Nodes are speaker names in first-appearance order. Edges are either
// [Asked] (asker to askee, carrying the question text) or [Answered]
// (answerer to asker). Parallel edges are kept; a speaker who asks the same
// person three questions contributes three edges.
//
// A [Graph] maintains per-speaker and per-pair tallies as edges are added,
// so degree queries are O(1) and the back-and-forth query is O(V²).
package convgraph

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// EdgeKind distinguishes question edges from answer edges.
type EdgeKind string

const (
	// Asked points from the speaker who asked to the speaker who was asked.
	Asked EdgeKind = "asked"

	// Answered points from the speaker who answered to the one who asked.
	Answered EdgeKind = "answered"
)

// IsValid reports whether k is a known edge kind.
func (k EdgeKind) IsValid() bool {
	return k == Asked || k == Answered
}

// ErrInvalidEdge is returned by [Graph.AddEdge] for edges with an unknown
// kind or an empty endpoint.
var ErrInvalidEdge = errors.New("convgraph: invalid edge")

// Edge is one directed interaction between two speakers.
type Edge struct {
	From string
	To   string
	Kind EdgeKind

	// Question is the question text for Asked edges and the question being
	// answered for Answered edges.
	Question string

	// Turn is the 0-based index of the chunk the edge was derived from: the
	// question turn for Asked, the answering turn for Answered.
	Turn int
}

// Summary holds the aggregate counts of a graph.
type Summary struct {
	Speakers int
	Asked    int
	Answered int
}

type pairKey struct {
	from, to int
	kind     EdgeKind
}

// Graph is the conversation graph. Build it with a [Builder] or by hand with
// [Graph.AddSpeaker] and [Graph.AddEdge]. All methods are safe for
// concurrent use.
type Graph struct {
	mu       sync.RWMutex
	nodes    []string
	index    map[string]int
	edges    []Edge
	asked    []int
	answered []int
	pairs    map[pairKey]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		pairs: make(map[pairKey]int),
	}
}

// AddSpeaker adds name as a node unless it is already present.
func (g *Graph) AddSpeaker(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addSpeakerLocked(name)
}

func (g *Graph) addSpeakerLocked(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, name)
	g.index[name] = i
	g.asked = append(g.asked, 0)
	g.answered = append(g.answered, 0)
	return i
}

// AddEdge appends e, adding unknown endpoints as speakers.
func (g *Graph) AddEdge(e Edge) error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: kind %q", ErrInvalidEdge, e.Kind)
	}
	if e.From == "" || e.To == "" {
		return fmt.Errorf("%w: empty endpoint", ErrInvalidEdge)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	from := g.addSpeakerLocked(e.From)
	to := g.addSpeakerLocked(e.To)
	g.edges = append(g.edges, e)
	switch e.Kind {
	case Asked:
		g.asked[from]++
	case Answered:
		g.answered[from]++
	}
	g.pairs[pairKey{from: from, to: to, kind: e.Kind}]++
	return nil
}

// Nodes returns the speakers in first-appearance order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.nodes)
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

// EdgesOfKind returns the edges of kind k in insertion order.
func (g *Graph) EdgesOfKind(k EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, e := range g.edges {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// HasSpeaker reports whether name is a node.
func (g *Graph) HasSpeaker(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.index[name]
	return ok
}

// QuestionsAsked returns the number of Asked edges leaving speaker.
func (g *Graph) QuestionsAsked(speaker string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i, ok := g.index[speaker]; ok {
		return g.asked[i]
	}
	return 0
}

// QuestionsAnswered returns the number of Answered edges leaving speaker.
func (g *Graph) QuestionsAnswered(speaker string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i, ok := g.index[speaker]; ok {
		return g.answered[i]
	}
	return 0
}

// Count returns the number of edges of kind k from one speaker to another.
func (g *Graph) Count(from, to string, k EdgeKind) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fi, ok := g.index[from]
	if !ok {
		return 0
	}
	ti, ok := g.index[to]
	if !ok {
		return 0
	}
	return g.pairs[pairKey{from: fi, to: ti, kind: k}]
}

// Summary returns the number of speakers, Asked edges and Answered edges.
func (g *Graph) Summary() Summary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Summary{Speakers: len(g.nodes)}
	for i := range g.nodes {
		s.Asked += g.asked[i]
		s.Answered += g.answered[i]
	}
	return s
}
