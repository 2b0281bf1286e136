package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/report"
	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/convgraph"
	"github.com/MrWong99/parley/pkg/graphstore"
	"github.com/MrWong99/parley/pkg/talktime"
	"github.com/MrWong99/parley/pkg/wordstats"
)

func sampleGraph(t *testing.T) *convgraph.Graph {
	t.Helper()
	g := convgraph.NewGraph()
	g.AddSpeaker("Alice")
	g.AddSpeaker("Bob")
	for _, e := range []convgraph.Edge{
		{From: "Alice", To: "Bob", Kind: convgraph.Asked, Question: "ready?", Turn: 0},
		{From: "Bob", To: "Alice", Kind: convgraph.Answered, Question: "ready?", Turn: 1},
	} {
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return g
}

func TestWriter_AllSections(t *testing.T) {
	t.Parallel()

	chunks := []caption.Chunk{
		{Seq: 1, Speaker: "Alice", Start: 0, End: 3 * time.Second, Text: "are we ready to ship the release today?"},
		{Seq: 2, Speaker: "Bob", Start: 3 * time.Second, End: 4 * time.Second, Text: "ready to ship the release"},
	}
	talk, ok := talktime.Summarize(chunks)
	if !ok {
		t.Fatal("Summarize: ok = false")
	}
	words := wordstats.New().AnalyzeChunks(chunks)

	var buf bytes.Buffer
	err := report.New(&buf, report.WithoutColor()).Write(report.Analysis{
		Name:    "standup.vtt",
		Graph:   sampleGraph(t),
		Talk:    talk,
		HasTalk: true,
		Words:   &words,
	})
	if err != nil {
		t.Fatalf("Write: unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"standup.vtt\n",
		" Graph Analysis ",
		"Distinct speakers: 2\n",
		"Questions asked: 1\n",
		"Answers given: 1\n",
		"Answered the most questions: Bob (1 answered)\n",
		"Asked the most questions: Alice (1 asked)\n",
		"Pair with most back-and-forth: Alice & Bob (2 interactions)\n",
		" Duration Analysis ",
		"Spoke the most: Alice (3.00 sec)\n",
		"Spoke the least: Bob (1.00 sec)\n",
		"- Alice: 1 time, averaging 3.00 sec (75%)\n",
		" Basic Analysis ",
		"Total number of words: 13\n",
		"1st common trigram: ready to ship (Count: 2)\n",
		"2nd common trigram: to ship the (Count: 2)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("output contains ANSI escapes with WithoutColor:\n%q", out)
	}
}

func TestWriter_EmptyGraph(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := report.New(&buf, report.WithoutColor()).Write(report.Analysis{Graph: convgraph.NewGraph()}); err != nil {
		t.Fatalf("Write: unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Answered the most questions: (none)",
		"Asked the most questions: (none)",
		"Pair with most back-and-forth: (none)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Duration Analysis") || strings.Contains(out, "Basic Analysis") {
		t.Errorf("absent sections were rendered:\n%s", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriter_PropagatesWriteError(t *testing.T) {
	t.Parallel()

	err := report.New(failingWriter{}, report.WithoutColor()).Write(report.Analysis{Name: "x"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Write: got %v, want wrapped write error", err)
	}
}

func TestWriter_WriteHistory(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := report.New(&buf, report.WithoutColor()).WriteHistory([]graphstore.Info{{
		ID:        "7f1c2a9e-0d4b-4c1e-9a55-1f0e2d3c4b5a",
		Name:      "standup.vtt",
		CreatedAt: created,
		Chunks:    12,
		Summary:   convgraph.Summary{Speakers: 3, Asked: 4, Answered: 2},
	}})
	if err != nil {
		t.Fatalf("WriteHistory: unexpected error: %v", err)
	}
	want := "7f1c2a9e-0d4b-4c1e-9a55-1f0e2d3c4b5a  2026-03-04T09:30:00Z  standup.vtt  12 chunks, 3 speakers, 4 asked, 2 answered\n"
	if out := buf.String(); !strings.Contains(out, " Stored Transcripts ") || !strings.Contains(out, want) {
		t.Errorf("output missing history line %q\n%s", want, out)
	}

	buf.Reset()
	if err := report.New(&buf, report.WithoutColor()).WriteHistory(nil); err != nil {
		t.Fatalf("WriteHistory(nil): unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("empty history = %q, want (none)", buf.String())
	}
}
