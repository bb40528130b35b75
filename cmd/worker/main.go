package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docchaser/internal/bootstrap"
	"docchaser/internal/dispatch"
	"docchaser/internal/shared/config"
	"docchaser/internal/shared/telemetry"
	"docchaser/internal/timing"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if cfg.PolicyFile != "" {
		go func() {
			if err := timing.Watch(ctx, cfg.PolicyFile, app.Policies); err != nil {
				telemetry.Warn("timing.watch.stopped", map[string]any{"path": cfg.PolicyFile, "error": err})
			}
		}()
	}

	log.Printf("worker started interval=%s", app.Scheduler.Interval())
	run(ctx, app.Scheduler)
	log.Printf("worker stopped")
}

// run starts the dispatch loop and blocks until ctx is done and the loop has
// drained.
func run(ctx context.Context, sched *dispatch.Scheduler) {
	sched.Start(ctx)
	<-ctx.Done()
	sched.Wait()
}
