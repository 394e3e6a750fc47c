package main

import (
	"context"
	"log"
	"os"

	"go-helpapply-automation/internal/apply"
	"go-helpapply-automation/internal/artifacts"
	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/cvloader"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/runner"
	"go-helpapply-automation/internal/server"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	//load config
	cfg := config.Load()

	ctx := context.Background()

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

	srv := server.New(cfg, repo, orchestrator)

	log.Printf("🌐 HelpApply API listening on port %s", port)
	if err := srv.Router().Run(":" + port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
