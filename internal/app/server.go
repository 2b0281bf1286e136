package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/health"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the HTTP handler of watch mode: Prometheus metrics on
// /metrics and the health probes on /healthz and /readyz. Readiness
// requires ready to be set and, when the store can be pinged, a reachable
// store.
func (a *App) Handler(ready *health.Flag) http.Handler {
	checkers := []health.Checker{ready.Checker("watcher")}
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.PingCheck("store", p))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	return observe.Middleware(a.metrics, "/metrics", "/healthz", "/readyz")(mux)
}

// Watch polls the configured source directory and processes every caption
// file that appears or changes, printing a report for each. Files already
// present at startup are processed too. A changed file is re-compacted. The
// metrics and health endpoints are served on the telemetry address.
//
// Watch blocks until ctx is cancelled or the server fails.
func (a *App) Watch(ctx context.Context) error {
	dir := a.cfg.Paths.SourceDir
	if dir == "" {
		return errors.New("app: watch: paths.source_dir is not set")
	}

	ln, err := net.Listen("tcp", a.cfg.Telemetry.MetricsAddr)
	if err != nil {
		return fmt.Errorf("app: watch: listen: %w", err)
	}

	ready := &health.Flag{}
	srv := &http.Server{
		Handler:           a.Handler(ready),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan watch.Event, 16)

	w, err := watch.New(dir, func(ev watch.Event) {
		select {
		case events <- ev:
		case <-gctx.Done():
		}
	},
		watch.WithInterval(a.cfg.Watch.Interval),
		watch.WithSkipSuffix(a.cfg.Paths.CompactSuffix),
		watch.WithInitialEvents(true),
	)
	if err != nil {
		ln.Close()
		return fmt.Errorf("app: watch: %w", err)
	}
	defer w.Stop()
	ready.Set(true)

	slog.Info("watching caption directory",
		"dir", dir,
		"interval", a.cfg.Watch.Interval,
		"files", len(w.Known()),
		"addr", ln.Addr().String(),
	)

	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: watch: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		ready.Set(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				a.handleEvent(gctx, ev)
			}
		}
	})

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (a *App) handleEvent(ctx context.Context, ev watch.Event) {
	slog.Info("caption file detected", "path", ev.Path, "op", ev.Op)
	res, err := a.pipeline.Process(ctx, ev.Path, ev.Op == watch.Modified)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to process caption file", "path", ev.Path, "err", err)
		}
		return
	}
	if err := a.reporter.Write(res.Analysis); err != nil {
		slog.Warn("failed to write report", "path", ev.Path, "err", err)
	}
}
