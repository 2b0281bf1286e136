// Command parley compacts meeting caption files and reports who asked whom
// questions, who answered, and who held the floor.
//
// Usage:
//
//	parley [flags] compact <file.vtt>...
//	parley [flags] analyze <file.vtt>...
//	parley [flags] watch
//	parley [flags] history [id]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/report"
	"github.com/MrWong99/parley/pkg/graphstore"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/provider/llm/anyllm"
	"github.com/MrWong99/parley/pkg/provider/llm/openai"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults apply when empty)")
	force := flag.Bool("force", false, "re-compact even when the compacted file already exists")
	noColor := flag.Bool("no-color", false, "disable coloured report output")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}
	cmd, files := args[0], args[1:]
	switch cmd {
	case "compact", "analyze":
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "parley: %s needs at least one caption file\n", cmd)
			return 2
		}
	case "watch":
	case "history":
		if len(files) > 1 {
			fmt.Fprintln(os.Stderr, "parley: history takes at most one transcript id")
			return 2
		}
	default:
		fmt.Fprintf(os.Stderr, "parley: unknown command %q\n", cmd)
		usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "parley: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "parley: %v\n", err)
			}
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Debug("parley starting", "command", cmd, "config", *configPath, "version", version)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	var reportOpts []report.Option
	if *noColor {
		reportOpts = append(reportOpts, report.WithoutColor())
	}
	reporter := report.New(os.Stdout, reportOpts...)

	application, err := app.New(ctx, cfg, providers, app.WithReporter(reporter))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	switch cmd {
	case "compact":
		return runCompact(ctx, application, files, *force)
	case "analyze":
		return runAnalyze(ctx, application, reporter, files, *force)
	case "history":
		return runHistory(ctx, application, reporter, files)
	default:
		if err := application.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("watch error", "err", err)
			return 1
		}
		slog.Info("goodbye")
		return 0
	}
}

func runCompact(ctx context.Context, a *app.App, files []string, force bool) int {
	code := 0
	for _, src := range files {
		path, written, err := a.Compact(ctx, src, force)
		if err != nil {
			slog.Error("compaction failed", "source", src, "err", err)
			code = 1
			continue
		}
		if written {
			fmt.Printf("> New compacted transcript: %s\n", path)
		} else {
			fmt.Printf("> Compacted transcript already exists: %s\n", path)
		}
	}
	return code
}

func runAnalyze(ctx context.Context, a *app.App, reporter *report.Writer, files []string, force bool) int {
	results, err := a.Analyze(ctx, files, force)
	for _, res := range results {
		if res == nil {
			continue
		}
		if err := reporter.Write(res.Analysis); err != nil {
			slog.Error("failed to write report", "err", err)
			return 1
		}
	}
	if err != nil {
		slog.Error("analysis failed", "err", err)
		return 1
	}
	return 0
}

func runHistory(ctx context.Context, a *app.App, reporter *report.Writer, ids []string) int {
	var err error
	if len(ids) == 0 {
		var infos []graphstore.Info
		if infos, err = a.History(ctx); err == nil {
			err = reporter.WriteHistory(infos)
		}
	} else {
		var an report.Analysis
		if an, err = a.Stored(ctx, ids[0]); err == nil {
			err = reporter.Write(an)
		}
	}
	if err != nil {
		slog.Error("history failed", "err", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  parley [flags] compact <file.vtt>...   write <name>_CMT.vtt for each caption file
  parley [flags] analyze <file.vtt>...   compact if needed and print the analysis
  parley [flags] watch                   analyse caption files as they appear in paths.source_dir
  parley [flags] history [id]            list stored transcripts, or reprint the report of one

Flags:
`)
	flag.PrintDefaults()
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in LLM factories into reg. Each
// factory receives a config.ProviderEntry and constructs the provider from
// the implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// The native OpenAI client supports organisation scoping, retry tuning and
	// JSON-mode replies.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if n := config.OptInt(entry.Options, "max_retries"); n > 0 {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		if config.OptBool(entry.Options, "json_mode") {
			opts = append(opts, openai.WithJSONReplies(true))
		}
		if _, ok := entry.Options["seed"]; ok {
			opts = append(opts, openai.WithSeed(int64(config.OptInt(entry.Options, "seed"))))
		}
		if s := config.OptString(entry.Options, "timeout"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("options.timeout: %w", err)
			}
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp and llamafile share
	// the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	slog.Debug("registered llm providers", "names", reg.LLMNames())
}

// buildProviders instantiates the providers named in cfg using the registry.
// Only the LLM classifier needs one.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	if cfg.Classifier.Name != config.ClassifierLLM {
		return ps, nil
	}

	entry := cfg.Classifier.Provider
	p, err := app.NewLLM(reg, cfg.Classifier)
	if err != nil {
		return nil, err
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model,
		"fallbacks", len(cfg.Classifier.Fallbacks))
	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
