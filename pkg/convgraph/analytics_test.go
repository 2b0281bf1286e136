package convgraph_test

import (
	"sync"
	"testing"

	"github.com/MrWong99/parley/pkg/convgraph"
)

func addEdges(t *testing.T, g *convgraph.Graph, from, to string, kind convgraph.EdgeKind, n int) {
	t.Helper()
	for range n {
		if err := g.AddEdge(convgraph.Edge{From: from, To: to, Kind: kind, Question: "q"}); err != nil {
			t.Fatalf("AddEdge: unexpected error: %v", err)
		}
	}
}

func TestTopBackAndForthPair(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	g.AddSpeaker("A")
	g.AddSpeaker("B")
	g.AddSpeaker("C")
	addEdges(t, g, "A", "B", convgraph.Asked, 2)
	addEdges(t, g, "B", "A", convgraph.Answered, 2)
	addEdges(t, g, "B", "A", convgraph.Asked, 1)
	addEdges(t, g, "A", "C", convgraph.Asked, 1)
	addEdges(t, g, "C", "A", convgraph.Answered, 1)

	pair, ok := g.TopBackAndForthPair()
	if !ok {
		t.Fatal("TopBackAndForthPair: ok = false")
	}
	if pair != (convgraph.Pair{A: "A", B: "B", Interactions: 5}) {
		t.Errorf("TopBackAndForthPair = %+v, want A,B with 5", pair)
	}
	if n := g.Interactions("C", "A"); n != 2 {
		t.Errorf("Interactions(C, A) = %d, want 2", n)
	}
}

func TestTopBackAndForthPair_TieGoesToFirstPair(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	for _, s := range []string{"A", "B", "C", "D"} {
		g.AddSpeaker(s)
	}
	addEdges(t, g, "C", "D", convgraph.Asked, 2)
	addEdges(t, g, "B", "C", convgraph.Asked, 2)

	pair, ok := g.TopBackAndForthPair()
	if !ok || pair.A != "B" || pair.B != "C" {
		t.Errorf("TopBackAndForthPair = %+v, %v; want B,C", pair, ok)
	}
}

func TestTopBackAndForthPair_NoInteraction(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	g.AddSpeaker("A")
	g.AddSpeaker("B")
	if _, ok := g.TopBackAndForthPair(); ok {
		t.Error("TopBackAndForthPair on a graph without edges: ok = true")
	}
}

func TestMostQuestions(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	if _, ok := g.MostQuestionsAsked(); ok {
		t.Error("MostQuestionsAsked on empty graph: ok = true")
	}
	if _, ok := g.MostQuestionsAnswered(); ok {
		t.Error("MostQuestionsAnswered on empty graph: ok = true")
	}

	g.AddSpeaker("A")
	g.AddSpeaker("B")
	g.AddSpeaker("C")
	addEdges(t, g, "B", "A", convgraph.Asked, 2)
	addEdges(t, g, "C", "A", convgraph.Asked, 2)
	addEdges(t, g, "A", "C", convgraph.Answered, 3)

	asked, ok := g.MostQuestionsAsked()
	if !ok || asked != (convgraph.SpeakerCount{Speaker: "B", Count: 2}) {
		t.Errorf("MostQuestionsAsked = %+v, %v; want B with 2 (first of tie)", asked, ok)
	}
	answered, ok := g.MostQuestionsAnswered()
	if !ok || answered != (convgraph.SpeakerCount{Speaker: "A", Count: 3}) {
		t.Errorf("MostQuestionsAnswered = %+v, %v; want A with 3", answered, ok)
	}
	if g.QuestionsAsked("nobody") != 0 || g.QuestionsAnswered("nobody") != 0 {
		t.Error("unknown speaker has non-zero tallies")
	}
}

func TestMostQuestions_AllZeroPicksFirstSpeaker(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	g.AddSpeaker("Zed")
	g.AddSpeaker("Amy")
	got, ok := g.MostQuestionsAsked()
	if !ok || got.Speaker != "Zed" || got.Count != 0 {
		t.Errorf("MostQuestionsAsked = %+v, %v; want Zed with 0", got, ok)
	}
}

func TestAddEdge_Invalid(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	if err := g.AddEdge(convgraph.Edge{From: "A", To: "B", Kind: "shouted"}); err == nil {
		t.Error("AddEdge with unknown kind: expected error")
	}
	if err := g.AddEdge(convgraph.Edge{From: "", To: "B", Kind: convgraph.Asked}); err == nil {
		t.Error("AddEdge with empty endpoint: expected error")
	}
	if len(g.Nodes()) != 0 {
		t.Errorf("invalid edges added nodes: %v", g.Nodes())
	}
}

func TestRanking(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	addEdges(t, g, "A", "B", convgraph.Asked, 1)
	addEdges(t, g, "B", "A", convgraph.Answered, 1)

	got := g.Ranking()
	want := []convgraph.SpeakerStats{{Speaker: "A", Asked: 1}, {Speaker: "B", Answered: 1}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Ranking = %+v, want %+v", got, want)
	}
}

func TestGraph_ConcurrentReads(t *testing.T) {
	t.Parallel()

	g := convgraph.NewGraph()
	addEdges(t, g, "A", "B", convgraph.Asked, 3)
	addEdges(t, g, "B", "A", convgraph.Answered, 3)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p, ok := g.TopBackAndForthPair(); !ok || p.Interactions != 6 {
				t.Errorf("TopBackAndForthPair = %+v, %v", p, ok)
			}
			_ = g.Summary()
			_ = g.Edges()
		}()
	}
	wg.Wait()
}
