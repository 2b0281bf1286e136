package convgraph

// SpeakerCount pairs a speaker with a tally.
type SpeakerCount struct {
	Speaker string
	Count   int
}

// Pair is an unordered pair of speakers with the total number of edges
// between them in both directions and of both kinds. A precedes B in node
// order.
type Pair struct {
	A, B         string
	Interactions int
}

// MostQuestionsAsked returns the speaker with the most outgoing Asked edges.
// Ties go to the speaker that appeared first. ok is false for a graph
// without speakers.
func (g *Graph) MostQuestionsAsked() (SpeakerCount, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maxOf(g.nodes, g.asked)
}

// MostQuestionsAnswered returns the speaker with the most outgoing Answered
// edges, with the same tie-break as [Graph.MostQuestionsAsked].
func (g *Graph) MostQuestionsAnswered() (SpeakerCount, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maxOf(g.nodes, g.answered)
}

func maxOf(nodes []string, tally []int) (SpeakerCount, bool) {
	if len(nodes) == 0 {
		return SpeakerCount{}, false
	}
	best := 0
	for i := 1; i < len(nodes); i++ {
		if tally[i] > tally[best] {
			best = i
		}
	}
	return SpeakerCount{Speaker: nodes[best], Count: tally[best]}, true
}

// TopBackAndForthPair returns the unordered pair of distinct speakers with
// the most interactions between them. Pairs are visited as (i, j) with i < j
// in node order and the first pair with the maximum wins ties. ok is false
// when no two speakers interacted.
func (g *Graph) TopBackAndForthPair() (Pair, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best Pair
	for i := 0; i < len(g.nodes); i++ {
		for j := i + 1; j < len(g.nodes); j++ {
			n := g.interactionsLocked(i, j)
			if n > best.Interactions {
				best = Pair{A: g.nodes[i], B: g.nodes[j], Interactions: n}
			}
		}
	}
	return best, best.Interactions > 0
}

// Interactions returns the number of edges of either kind between a and b in
// either direction.
func (g *Graph) Interactions(a, b string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ai, ok := g.index[a]
	if !ok {
		return 0
	}
	bi, ok := g.index[b]
	if !ok {
		return 0
	}
	return g.interactionsLocked(ai, bi)
}

func (g *Graph) interactionsLocked(a, b int) int {
	return g.pairs[pairKey{from: a, to: b, kind: Asked}] +
		g.pairs[pairKey{from: b, to: a, kind: Asked}] +
		g.pairs[pairKey{from: a, to: b, kind: Answered}] +
		g.pairs[pairKey{from: b, to: a, kind: Answered}]
}

// Ranking returns every speaker with its Asked and Answered counts in node
// order.
func (g *Graph) Ranking() []SpeakerStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]SpeakerStats, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = SpeakerStats{Speaker: n, Asked: g.asked[i], Answered: g.answered[i]}
	}
	return out
}

// SpeakerStats holds one speaker's outgoing edge counts.
type SpeakerStats struct {
	Speaker  string
	Asked    int
	Answered int
}
