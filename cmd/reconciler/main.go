// The reconciler sweeps build jobs that never received a terminal report
// from the build service, failing them and repairing their games' statuses.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gameforge/backend/pkg/buildqueue"
	"github.com/gameforge/backend/pkg/config"
	"github.com/gameforge/backend/pkg/games"
	"github.com/gameforge/backend/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadReconciler()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("database_url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := telemetry.InitTracer(ctx, "gameforge-reconciler")
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	gameStore, err := games.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open game store: %v", err)
	}
	defer gameStore.Close()

	jobStore, err := buildqueue.NewPostgresStoreFromDB(gameStore.DB())
	if err != nil {
		log.Fatalf("failed to open job store: %v", err)
	}

	// The reconciler never dispatches; it only fails stale jobs.
	orch := buildqueue.NewOrchestrator(gameStore, jobStore, nil, nil, nil)

	log.Printf("reconciler sweeping every %s, build timeout %s", cfg.Interval, cfg.BuildTimeout)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sweep(ctx, orch, cfg.BuildTimeout)
	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler stopped")
			return
		case <-ticker.C:
			sweep(ctx, orch, cfg.BuildTimeout)
		}
	}
}

func sweep(ctx context.Context, orch *buildqueue.Orchestrator, timeout time.Duration) {
	swept, err := orch.SweepStale(ctx, timeout)
	if err != nil {
		log.Printf("sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("swept %d stale build jobs", swept)
	}
}
