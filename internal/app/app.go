// Package app wires the parley subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// classifier, graph builder and transcript store, Compact, Analyze and Watch
// run the pipeline, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithClassifier, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/report"
	"github.com/MrWong99/parley/pkg/convgraph"
	"github.com/MrWong99/parley/pkg/graphstore"
	"github.com/MrWong99/parley/pkg/graphstore/postgres"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/question"
	"github.com/MrWong99/parley/pkg/talktime"
	"github.com/MrWong99/parley/pkg/wordstats"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM llm.Provider
}

// App owns all subsystem lifetimes and runs the transcript pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	store       graphstore.Store
	classifier  question.Classifier
	metrics     *observe.Metrics
	reporter    *report.Writer
	concurrency int
	pipeline    *Pipeline

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a transcript store instead of creating one from config.
func WithStore(s graphstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithClassifier injects a question classifier instead of building one from
// config.
func WithClassifier(c question.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithReporter sets where watch mode prints its reports. Default: stdout.
func WithReporter(r *report.Writer) Option {
	return func(a *App) { a.reporter = r }
}

// WithConcurrency bounds how many files [App.Analyze] processes at once.
// Default: GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(a *App) { a.concurrency = n }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry) and may be nil when
// only the heuristic classifier is used.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.reporter == nil {
		a.reporter = report.New(os.Stdout)
	}
	if a.concurrency <= 0 {
		a.concurrency = runtime.GOMAXPROCS(0)
	}

	// ── 1. Transcript store ──────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Question classifier ───────────────────────────────────────────
	if a.classifier == nil {
		c, err := NewClassifier(cfg.Classifier, providers.LLM, a.metrics)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: init classifier: %w", err)
		}
		a.classifier = c
	}

	// ── 3. Pipeline ──────────────────────────────────────────────────────
	rule, err := convgraph.ParseAnswerRule(cfg.Graph.AnswerRule)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.pipeline = &Pipeline{
		builder:   convgraph.NewBuilder(a.classifier, convgraph.WithAnswerRule(rule)),
		words:     wordstats.New(),
		store:     a.store,
		metrics:   a.metrics,
		speakers:  newSpeakerResolver(cfg.Speakers),
		outputDir: cfg.Paths.OutputDir,
		suffix:    cfg.Paths.CompactSuffix,
	}

	slog.Debug("app initialised",
		"roster", len(cfg.Speakers.Roster),
		"classifier", question.NameOf(a.classifier),
		"answer_rule", rule,
		"concurrency", a.concurrency,
	)
	return a, nil
}

// initStore connects to PostgreSQL when a DSN is configured. Without one the
// store stays nil: analyses are printed but not persisted, and the history
// commands report [ErrNoStore].
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		slog.Debug("no transcript store configured, results are not persisted")
		return nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("connected transcript store", "backend", "postgres")
	return nil
}

// Pipeline returns the transcript pipeline.
func (a *App) Pipeline() *Pipeline { return a.pipeline }

// Store returns the transcript store, or nil when none is configured.
func (a *App) Store() graphstore.Store { return a.store }

// ─── Commands ────────────────────────────────────────────────────────────────

// Compact writes the compacted version of src and returns its path. An
// existing compacted file is kept unless force is set; written reports
// whether a new file was produced.
func (a *App) Compact(ctx context.Context, src string, force bool) (path string, written bool, err error) {
	path, written, err = a.pipeline.Compact(ctx, src, force)
	switch {
	case err != nil:
		a.metrics.RecordTranscript(ctx, observe.StatusError)
	case !written:
		a.metrics.RecordTranscript(ctx, observe.StatusSkipped)
	default:
		a.metrics.RecordTranscript(ctx, observe.StatusOK)
	}
	return path, written, err
}

// Analyze processes every source file concurrently. Results are returned in
// the order of srcs; a failed file leaves a nil entry and its error is
// joined into the returned error. One failing file does not stop the
// others.
func (a *App) Analyze(ctx context.Context, srcs []string, force bool) ([]*Result, error) {
	results := make([]*Result, len(srcs))
	errs := make([]error, len(srcs))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			res, err := a.pipeline.Process(ctx, src, force)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// ─── History ─────────────────────────────────────────────────────────────────

// ErrNoStore is returned by the history commands when no transcript store is
// configured.
var ErrNoStore = errors.New("app: no transcript store configured (set store.postgres_dsn)")

// History lists the stored transcripts, newest first.
func (a *App) History(ctx context.Context) ([]graphstore.Info, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	infos, err := a.store.ListTranscripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: history: %w", err)
	}
	return infos, nil
}

// Stored reloads transcript id and recomputes its report from the persisted
// graph and chunks. The classifier is not consulted again.
func (a *App) Stored(ctx context.Context, id string) (report.Analysis, error) {
	if a.store == nil {
		return report.Analysis{}, ErrNoStore
	}
	g, err := a.store.LoadGraph(ctx, id)
	if err != nil {
		return report.Analysis{}, fmt.Errorf("app: load graph %s: %w", id, err)
	}
	chunks, err := a.store.LoadChunks(ctx, id)
	if err != nil {
		return report.Analysis{}, fmt.Errorf("app: load chunks %s: %w", id, err)
	}

	name := id
	if infos, err := a.store.ListTranscripts(ctx); err == nil {
		for _, in := range infos {
			if in.ID == id && in.Name != "" {
				name = in.Name
				break
			}
		}
	}

	an := report.Analysis{Name: name, Graph: g}
	if talk, ok := talktime.Summarize(chunks); ok {
		an.Talk, an.HasTalk = talk, true
	}
	words := a.pipeline.words.AnalyzeChunks(chunks)
	an.Words = &words
	return an, nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Debug("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
