package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/report"
	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/convgraph"
	"github.com/MrWong99/parley/pkg/graphstore"
	"github.com/MrWong99/parley/pkg/speaker"
	"github.com/MrWong99/parley/pkg/talktime"
	"github.com/MrWong99/parley/pkg/wordstats"
)

// Result is the outcome of processing one caption file.
type Result struct {
	// Source is the caption file that was processed.
	Source string

	// Compacted is the path of the compacted file the analysis was read from.
	Compacted string

	// Written reports whether Compacted was produced by this run. It is false
	// when an existing compacted file was reused.
	Written bool

	// TranscriptID is the ID under which the transcript was stored. Empty
	// when the pipeline has no store.
	TranscriptID string

	// Analysis holds the graph and statistics for reporting.
	Analysis report.Analysis
}

// Pipeline runs caption files through parse, compact, graph and analytics.
// It is safe for concurrent use.
type Pipeline struct {
	builder   *convgraph.Builder
	words     *wordstats.Analyzer
	store     graphstore.Store
	metrics   *observe.Metrics
	speakers  *speaker.Resolver // nil without a roster
	outputDir string
	suffix    string
}

// CompactedPath returns where the compacted version of src is written:
// "<dir>/<name><suffix>.vtt", with dir being the output directory or, when
// unset, the directory of src.
func (p *Pipeline) CompactedPath(src string) string {
	dir := p.outputDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+p.suffix+".vtt")
}

// Compact writes the compacted version of src unless it already exists and
// force is false. It returns the compacted path and whether it was written.
func (p *Pipeline) Compact(ctx context.Context, src string, force bool) (string, bool, error) {
	out := p.CompactedPath(src)
	if !force {
		if _, err := os.Stat(out); err == nil {
			observe.Logger(ctx).Info("compacted file exists, skipping compaction", "source", src, "compacted", out)
			return out, false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("app: stat %q: %w", out, err)
		}
	}

	var utts []caption.Utterance
	err := observe.Stage(ctx, p.metrics, observe.StageParse, func(ctx context.Context) error {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		utts, err = caption.Parse(f)
		if err != nil {
			p.recordParseError(ctx, err)
		}
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("app: parse %q: %w", src, err)
	}
	p.metrics.UtterancesParsed.Add(ctx, int64(len(utts)))

	if p.speakers != nil {
		var renamed []speaker.Match
		utts, renamed = p.speakers.Apply(utts)
		for _, m := range renamed {
			observe.Logger(ctx).Info("speaker label resolved",
				"source", src,
				"label", m.Label,
				"speaker", m.Speaker,
				"score", m.Score,
				"phonetic", m.Phonetic,
			)
		}
	}

	var chunks []caption.Chunk
	_ = observe.Stage(ctx, p.metrics, observe.StageCompact, func(context.Context) error {
		chunks = caption.Compact(utts)
		return nil
	})
	p.metrics.ChunksProduced.Add(ctx, int64(len(chunks)))

	err = observe.Stage(ctx, p.metrics, observe.StageWrite, func(context.Context) error {
		return writeFile(out, chunks)
	})
	if err != nil {
		return "", false, fmt.Errorf("app: write %q: %w", out, err)
	}

	observe.Logger(ctx).Info("compacted transcript written",
		"source", src,
		"compacted", out,
		"utterances", len(utts),
		"chunks", len(chunks),
	)
	return out, true, nil
}

// Process compacts src if needed and analyses the compacted file. The
// analysed transcript is saved to the store when one is configured.
func (p *Pipeline) Process(ctx context.Context, src string, force bool) (res *Result, err error) {
	ctx, span := observe.StartSpan(ctx, "parley.process")
	defer span.End()

	p.metrics.ActiveTranscripts.Add(ctx, 1)
	defer func() {
		p.metrics.ActiveTranscripts.Add(ctx, -1)
		status := observe.StatusOK
		if err != nil {
			status = observe.StatusError
			span.RecordError(err)
		}
		p.metrics.RecordTranscript(ctx, status)
	}()

	out, written, err := p.Compact(ctx, src, force)
	if err != nil {
		return nil, err
	}
	res = &Result{Source: src, Compacted: out, Written: written}

	var chunks []caption.Chunk
	err = observe.Stage(ctx, p.metrics, observe.StageRead, func(context.Context) error {
		f, err := os.Open(out)
		if err != nil {
			return err
		}
		defer f.Close()
		chunks, err = caption.ReadCompacted(f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("app: read %q: %w", out, err)
	}

	var g *convgraph.Graph
	err = observe.Stage(ctx, p.metrics, observe.StageGraph, func(ctx context.Context) error {
		var err error
		g, err = p.builder.Build(ctx, chunks)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("app: build graph for %q: %w", out, err)
	}
	sum := g.Summary()
	p.metrics.QuestionsDetected.Add(ctx, int64(sum.Asked))
	p.metrics.RecordEdges(ctx, string(convgraph.Asked), sum.Asked)
	p.metrics.RecordEdges(ctx, string(convgraph.Answered), sum.Answered)

	name := filepath.Base(src)
	_ = observe.Stage(ctx, p.metrics, observe.StageAnalyze, func(context.Context) error {
		talk, ok := talktime.Summarize(chunks)
		words := p.words.AnalyzeChunks(chunks)
		res.Analysis = report.Analysis{
			Name:    name,
			Graph:   g,
			Talk:    talk,
			HasTalk: ok,
			Words:   &words,
		}
		return nil
	})

	if p.store != nil {
		err = observe.Stage(ctx, p.metrics, observe.StagePersist, func(ctx context.Context) error {
			id, err := p.store.SaveTranscript(ctx, graphstore.Transcript{Name: name, Chunks: chunks, Graph: g})
			res.TranscriptID = id
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("app: save %q: %w", name, err)
		}
	}

	observe.Logger(ctx).Info("transcript analysed",
		"source", src,
		"speakers", sum.Speakers,
		"asked", sum.Asked,
		"answered", sum.Answered,
		"id", res.TranscriptID,
	)
	return res, nil
}

// newSpeakerResolver returns nil when cfg has no roster.
func newSpeakerResolver(cfg config.SpeakersConfig) *speaker.Resolver {
	var opts []speaker.Option
	if cfg.PhoneticThreshold > 0 {
		opts = append(opts, speaker.WithPhoneticThreshold(cfg.PhoneticThreshold))
	}
	if cfg.FuzzyThreshold > 0 {
		opts = append(opts, speaker.WithFuzzyThreshold(cfg.FuzzyThreshold))
	}
	r := speaker.New(cfg.Roster, opts...)
	if r.Len() == 0 {
		return nil
	}
	return r
}

func (p *Pipeline) recordParseError(ctx context.Context, err error) {
	var perr *caption.ParseError
	var ierr *caption.IncompleteUtteranceError
	switch {
	case errors.As(err, &perr):
		p.metrics.RecordParseError(ctx, perr.State.String())
	case errors.As(err, &ierr):
		p.metrics.RecordParseError(ctx, ierr.State.String())
	default:
		p.metrics.RecordParseError(ctx, "io")
	}
}

const compactedFileMode = 0o644

// writeFile writes chunks to a temporary file next to path and renames it
// into place, so readers never see a half-written compacted file.
func writeFile(path string, chunks []caption.Chunk) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".parley-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = caption.WriteCompacted(tmp, chunks); err != nil {
		return err
	}
	if err = tmp.Chmod(compactedFileMode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
