package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"video-rag-be/internal/bootstrap"
	"video-rag-be/internal/config"
	"video-rag-be/internal/controller"
	"video-rag-be/internal/server"
	"video-rag-be/internal/tracer"
	"video-rag-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(controller.ServiceName, cfg.App.Environment)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database (optional, only used for answer history)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultOptions())
		if err != nil {
			log.Printf("[WARN] Unable to connect to GORM DB, history stays in memory: %v", err)
		} else {
			gormDB = db
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Serve until a shutdown signal arrives or the listener fails
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
