package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docchaser/internal/bootstrap"
	"docchaser/internal/shared/config"
	"docchaser/internal/shared/server"
	"docchaser/internal/shared/telemetry"
	"docchaser/internal/timing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.PolicyFile != "" {
		g.Go(func() error {
			if err := timing.Watch(gctx, cfg.PolicyFile, app.Policies); err != nil {
				telemetry.Warn("timing.watch.stopped", map[string]any{"path": cfg.PolicyFile, "error": err})
			}
			return nil
		})
	}
	if cfg.DispatchOnStart {
		app.Scheduler.Start(gctx)
	}

	if err := g.Wait(); err != nil {
		log.Printf("server error: %v", err)
	}
	stop()
	app.Scheduler.Wait()
	log.Printf("shutdown complete")
}
