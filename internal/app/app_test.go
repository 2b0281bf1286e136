package app_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/report"
	"github.com/MrWong99/parley/pkg/graphstore"
)

const standupVTT = `WEBVTT

1
00:00:00.000 --> 00:00:02.000
Alice: hello everyone

2
00:00:02.000 --> 00:00:04.000
Alice: how was the launch?

3
00:00:04.000 --> 00:00:07.000
Bob: it went well

4
00:00:07.000 --> 00:00:08.000
Carol: great
`

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// sumWhere returns the int64 sum of metric name over the data points whose
// attribute key equals value.
func sumWhere(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeCaption(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// testConfig returns the default config with output under dir/out.
func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Paths.SourceDir = dir
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...app.Option) (*app.App, *graphstore.MemStore, *sdkmetric.ManualReader) {
	t.Helper()
	m, reader := newTestMetrics(t)
	store := graphstore.NewMemStore()
	opts = append([]app.Option{
		app.WithStore(store),
		app.WithMetrics(m),
		app.WithReporter(report.New(&syncBuffer{}, report.WithoutColor())),
	}, opts...)
	a, err := app.New(context.Background(), cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a, store, reader
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), config.Default(), nil, app.WithReporter(report.New(&syncBuffer{})))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Store() != nil {
		t.Errorf("Store() = %T, want nil without a DSN", a.Store())
	}
	if a.Pipeline() == nil {
		t.Fatal("Pipeline() = nil")
	}
}

func TestNew_LLMWithoutProvider(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Classifier.Name = config.ClassifierLLM

	_, err := app.New(context.Background(), cfg, &app.Providers{})
	if !errors.Is(err, app.ErrNoLLM) {
		t.Fatalf("New() error = %v, want ErrNoLLM", err)
	}
}

func TestNew_InvalidAnswerRule(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Graph.AnswerRule = "telepathy"

	if _, err := app.New(context.Background(), cfg, nil, app.WithStore(graphstore.NewMemStore())); err == nil {
		t.Fatal("New() with unknown answer rule: expected error")
	}
}

func TestApp_Compact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "standup.vtt", standupVTT)
	a, _, reader := newTestApp(t, testConfig(dir))
	ctx := context.Background()

	path, written, err := a.Compact(ctx, src, false)
	if err != nil {
		t.Fatalf("Compact: unexpected error: %v", err)
	}
	if !written {
		t.Error("Compact: written = false on first run")
	}
	if want := filepath.Join(dir, "out", "standup_CMT.vtt"); path != want {
		t.Errorf("Compact path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read compacted: %v", err)
	}
	if !strings.HasPrefix(string(data), "1. Alice. 00:00:00.000 -> 00:00:04.000\n\nhello everyone\nhow was the launch?\n\n") {
		t.Errorf("compacted content:\n%s", data)
	}

	if _, written, err = a.Compact(ctx, src, false); err != nil || written {
		t.Errorf("second Compact: written = %v, err = %v; want skipped", written, err)
	}
	if _, written, err = a.Compact(ctx, src, true); err != nil || !written {
		t.Errorf("forced Compact: written = %v, err = %v; want rewritten", written, err)
	}

	if got := sumWhere(t, reader, "parley.transcripts.processed", "status", observe.StatusSkipped); got != 1 {
		t.Errorf("skipped transcripts = %d, want 1", got)
	}
	if got := sumWhere(t, reader, "parley.transcripts.processed", "status", observe.StatusOK); got != 2 {
		t.Errorf("ok transcripts = %d, want 2", got)
	}
}

func TestApp_Analyze(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcs := []string{
		writeCaption(t, dir, "a.vtt", standupVTT),
		writeCaption(t, dir, "broken.vtt", "WEBVTT\n\nnot-an-index\n"),
		writeCaption(t, dir, "c.vtt", standupVTT),
	}
	a, store, reader := newTestApp(t, testConfig(dir), app.WithConcurrency(2))

	results, err := a.Analyze(context.Background(), srcs, false)
	if err == nil {
		t.Fatal("Analyze: expected error for broken.vtt")
	}
	if !strings.Contains(err.Error(), "broken.vtt") {
		t.Errorf("Analyze error %q does not name the broken file", err)
	}
	if len(results) != 3 || results[0] == nil || results[1] != nil || results[2] == nil {
		t.Fatalf("Analyze results = %+v, want [ok nil ok]", results)
	}
	if results[0].Analysis.Name != "a.vtt" || results[2].Analysis.Name != "c.vtt" {
		t.Errorf("results out of order: %q, %q", results[0].Analysis.Name, results[2].Analysis.Name)
	}

	infos, err := store.ListTranscripts(context.Background())
	if err != nil {
		t.Fatalf("ListTranscripts: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("stored transcripts = %d, want 2", len(infos))
	}

	if got := sumWhere(t, reader, "parley.parse.errors", "state", "awaiting index"); got != 1 {
		t.Errorf("parse errors in index state = %d, want 1", got)
	}
	if got := sumWhere(t, reader, "parley.transcripts.processed", "status", observe.StatusError); got != 1 {
		t.Errorf("failed transcripts = %d, want 1", got)
	}
}

func TestApp_AnalyzeCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "a.vtt", standupVTT)
	a, _, _ := newTestApp(t, testConfig(dir))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := a.Analyze(ctx, []string{src}, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze error = %v, want context.Canceled", err)
	}
	if results[0] != nil {
		t.Errorf("cancelled Analyze produced a result: %+v", results[0])
	}
}

func TestApp_AnalyzeWithoutStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "a.vtt", standupVTT)
	m, _ := newTestMetrics(t)
	a, err := app.New(context.Background(), testConfig(dir), nil,
		app.WithMetrics(m), app.WithReporter(report.New(&syncBuffer{}, report.WithoutColor())))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	results, err := a.Analyze(context.Background(), []string{src}, false)
	if err != nil {
		t.Fatalf("Analyze: unexpected error: %v", err)
	}
	if results[0].TranscriptID != "" {
		t.Errorf("TranscriptID = %q without a store, want empty", results[0].TranscriptID)
	}
	if results[0].Analysis.Graph.Summary().Asked != 1 {
		t.Errorf("analysis = %+v, want one question", results[0].Analysis.Graph.Summary())
	}

	if _, err := a.History(context.Background()); !errors.Is(err, app.ErrNoStore) {
		t.Errorf("History() error = %v, want ErrNoStore", err)
	}
	if _, err := a.Stored(context.Background(), "7f1c2a9e-0d4b-4c1e-9a55-1f0e2d3c4b5a"); !errors.Is(err, app.ErrNoStore) {
		t.Errorf("Stored() error = %v, want ErrNoStore", err)
	}
}

func TestApp_History(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeCaption(t, dir, "standup.vtt", standupVTT)
	a, _, _ := newTestApp(t, testConfig(dir))
	ctx := context.Background()

	results, err := a.Analyze(ctx, []string{src}, false)
	if err != nil {
		t.Fatalf("Analyze: unexpected error: %v", err)
	}
	id := results[0].TranscriptID
	if id == "" {
		t.Fatal("Analyze did not store the transcript")
	}

	infos, err := a.History(ctx)
	if err != nil {
		t.Fatalf("History: unexpected error: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != id || infos[0].Name != "standup.vtt" {
		t.Fatalf("History = %+v, want the stored standup.vtt", infos)
	}

	got, err := a.Stored(ctx, id)
	if err != nil {
		t.Fatalf("Stored: unexpected error: %v", err)
	}
	want := results[0].Analysis
	if got.Name != "standup.vtt" {
		t.Errorf("Stored name = %q, want standup.vtt", got.Name)
	}
	if got.Graph.Summary() != want.Graph.Summary() {
		t.Errorf("Stored graph summary = %+v, want %+v", got.Graph.Summary(), want.Graph.Summary())
	}
	if !got.HasTalk || got.Talk.Most != want.Talk.Most {
		t.Errorf("Stored talk = %+v, want most %+v", got.Talk, want.Talk.Most)
	}
	if got.Words == nil || got.Words.Words != want.Words.Words {
		t.Errorf("Stored words = %+v, want %d words", got.Words, want.Words.Words)
	}

	if _, err := a.Stored(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, graphstore.ErrNotFound) {
		t.Errorf("Stored(unknown) error = %v, want graphstore.ErrNotFound", err)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	a, _, _ := newTestApp(t, config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() returned error: %v", err)
	}
}
