package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go-helpapply-automation/internal/apply"
	"go-helpapply-automation/internal/artifacts"
	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/cvloader"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/queue"
	"go-helpapply-automation/internal/runner"
)

func main() {
	//load config
	cfg := config.Load()
	if cfg.AMQPURL == "" {
		log.Fatal("❌ AMQP_URL is required for the queue worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("❌ Failed to ensure schema: %v", err)
	}

	cvs, err := cvloader.New(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to init CV loader: %v", err)
	}

	sink := artifacts.NewSink(cfg.ScreenshotsPath, cfg.ScreenshotMode, cfg.SaveScreenshots)
	if cfg.MirrorScreenshots && cfg.GCSBucket != "" {
		sink = sink.WithMirror(ctx, cfg.GCSBucket)
	}

	applicator := apply.NewApplicator(cfg, cvs, sink)
	orchestrator := runner.New(cfg, repo, applicator)

	consumer := queue.NewConsumer(cfg, repo, orchestrator)

	log.Println("🚀 Starting HelpApply queue worker...")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("❌ Worker stopped: %v", err)
	}
	log.Println("🏁 Worker shut down.")
}
