package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/convgraph"
)

func TestPipeline_CompactedPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		outputDir string
		suffix    string
		src       string
		want      string
	}{
		{name: "next to source", suffix: "_CMT", src: "/data/standup.vtt", want: "/data/standup_CMT.vtt"},
		{name: "output dir", outputDir: "/out", suffix: "_CMT", src: "/data/standup.vtt", want: "/out/standup_CMT.vtt"},
		{name: "custom suffix", suffix: ".compact", src: "/data/retro.vtt", want: "/data/retro.compact.vtt"},
		{name: "no extension", suffix: "_CMT", src: "/data/notes", want: "/data/notes_CMT.vtt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Paths.OutputDir = tt.outputDir
			cfg.Paths.CompactSuffix = tt.suffix
			a, _, _ := newTestApp(t, cfg)

			if got := a.Pipeline().CompactedPath(tt.src); got != filepath.FromSlash(tt.want) {
				t.Errorf("CompactedPath(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestPipeline_Process(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "standup.vtt", standupVTT)
	a, store, reader := newTestApp(t, testConfig(dir))
	ctx := context.Background()

	res, err := a.Pipeline().Process(ctx, src, false)
	if err != nil {
		t.Fatalf("Process: unexpected error: %v", err)
	}
	if !res.Written {
		t.Error("Process: Written = false for a fresh source")
	}
	info, err := os.Stat(res.Compacted)
	if err != nil {
		t.Fatalf("compacted file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("compacted file mode = %v, want -rw-r--r--", perm)
	}

	g := res.Analysis.Graph
	if got, want := g.Nodes(), []string{"Alice", "Bob", "Carol"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Nodes = %v, want %v", got, want)
	}
	wantEdges := []convgraph.Edge{
		{From: "Alice", To: "Bob", Kind: convgraph.Asked, Question: "how was the launch", Turn: 0},
		{From: "Bob", To: "Alice", Kind: convgraph.Answered, Question: "how was the launch", Turn: 1},
	}
	if got := g.Edges(); !reflect.DeepEqual(got, wantEdges) {
		t.Errorf("Edges:\n got %+v\nwant %+v", got, wantEdges)
	}

	if !res.Analysis.HasTalk {
		t.Fatal("Analysis.HasTalk = false")
	}
	if most := res.Analysis.Talk.Most; most.Speaker != "Alice" || most.Total != 4*time.Second {
		t.Errorf("Talk.Most = %+v, want Alice with 4s", most)
	}
	if least := res.Analysis.Talk.Least; least.Speaker != "Carol" {
		t.Errorf("Talk.Least = %+v, want Carol", least)
	}
	if res.Analysis.Words == nil || res.Analysis.Words.Words != 10 {
		t.Errorf("Analysis.Words = %+v, want 10 words", res.Analysis.Words)
	}

	stored, err := store.LoadGraph(ctx, res.TranscriptID)
	if err != nil {
		t.Fatalf("LoadGraph(%q): %v", res.TranscriptID, err)
	}
	if got := stored.Summary(); got != (convgraph.Summary{Speakers: 3, Asked: 1, Answered: 1}) {
		t.Errorf("stored Summary = %+v", got)
	}
	chunks, err := store.LoadChunks(ctx, res.TranscriptID)
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Errorf("stored chunks = %d, want 3", len(chunks))
	}

	if got := sumWhere(t, reader, "parley.graph.edges", "kind", "asked"); got != 1 {
		t.Errorf("asked edges metric = %d, want 1", got)
	}
	if got := sumWhere(t, reader, "parley.classifier.calls", "classifier", "heuristic"); got == 0 {
		t.Error("no heuristic classifier calls recorded")
	}
}

func TestPipeline_ReusesExistingCompacted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "standup.vtt", standupVTT)
	a, _, _ := newTestApp(t, testConfig(dir))
	ctx := context.Background()

	existing := a.Pipeline().CompactedPath(src)
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("1. Zed. 00:00:00.000 -> 00:00:01.000\n\nhello\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := a.Pipeline().Process(ctx, src, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Written {
		t.Error("Process overwrote an existing compacted file without force")
	}
	if got := res.Analysis.Graph.Nodes(); !reflect.DeepEqual(got, []string{"Zed"}) {
		t.Errorf("analysis did not use the existing file: nodes %v", got)
	}

	res, err = a.Pipeline().Process(ctx, src, true)
	if err != nil {
		t.Fatalf("Process(force): %v", err)
	}
	if !res.Written || len(res.Analysis.Graph.Nodes()) != 3 {
		t.Errorf("forced Process: Written = %v, nodes %v", res.Written, res.Analysis.Graph.Nodes())
	}
}

func TestPipeline_IncompleteCaption(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "cut.vtt", "WEBVTT\n\n1\n00:00:00.000 --> 00:00:01.000\n")
	a, _, reader := newTestApp(t, testConfig(dir))

	_, err := a.Pipeline().Process(context.Background(), src, false)
	var ierr *caption.IncompleteUtteranceError
	if !errors.As(err, &ierr) {
		t.Fatalf("Process error = %v, want *IncompleteUtteranceError", err)
	}
	if _, statErr := os.Stat(a.Pipeline().CompactedPath(src)); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("compacted file written for a failed parse: %v", statErr)
	}
	if got := sumWhere(t, reader, "parley.parse.errors", "state", "awaiting speaker"); got != 1 {
		t.Errorf("parse errors in speaker state = %d, want 1", got)
	}
}

func TestPipeline_NextAskerRule(t *testing.T) {
	t.Parallel()

	const vtt = `WEBVTT

1
00:00:00.000 --> 00:00:01.000
Alice: what time is it?

2
00:00:01.000 --> 00:00:02.000
Bob: why do you ask?

3
00:00:02.000 --> 00:00:03.000
Alice: just curious
`
	dir := t.TempDir()
	src := writeCaption(t, dir, "loop.vtt", vtt)
	cfg := testConfig(dir)
	cfg.Graph.AnswerRule = "next_asker"
	a, _, _ := newTestApp(t, cfg)

	res, err := a.Pipeline().Process(context.Background(), src, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := res.Analysis.Graph.Summary(); got != (convgraph.Summary{Speakers: 2, Asked: 2, Answered: 1}) {
		t.Errorf("Summary = %+v, want 2 asked and 1 answered", got)
	}
}

func TestPipeline_ResolvesSpeakerRoster(t *testing.T) {
	t.Parallel()

	const vtt = `WEBVTT

1
00:00:00.000 --> 00:00:02.000
Jon Smyth: shall we start?

2
00:00:02.000 --> 00:00:03.000
carol jones (she/her): yes

3
00:00:03.000 --> 00:00:05.000
John Smith: great
`
	dir := t.TempDir()
	src := writeCaption(t, dir, "names.vtt", vtt)
	cfg := testConfig(dir)
	cfg.Speakers.Roster = []string{"John Smith", "Carol Jones"}
	a, _, _ := newTestApp(t, cfg)

	res, err := a.Pipeline().Process(context.Background(), src, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got, want := res.Analysis.Graph.Nodes(), []string{"John Smith", "Carol Jones"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Nodes = %v, want %v", got, want)
	}
	wantEdges := []convgraph.Edge{
		{From: "John Smith", To: "Carol Jones", Kind: convgraph.Asked, Question: "shall we start", Turn: 0},
		{From: "Carol Jones", To: "John Smith", Kind: convgraph.Answered, Question: "shall we start", Turn: 1},
	}
	if got := res.Analysis.Graph.Edges(); !reflect.DeepEqual(got, wantEdges) {
		t.Errorf("Edges:\n got %+v\nwant %+v", got, wantEdges)
	}
}
