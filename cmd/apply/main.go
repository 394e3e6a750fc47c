package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go-helpapply-automation/internal/apply"
	"go-helpapply-automation/internal/artifacts"
	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/cvloader"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/reporter"
	"go-helpapply-automation/internal/runner"
)

func main() {
	limit := flag.Int("limit", 0, "max applications to process this run (0 = config default)")
	flag.Parse()

	//load config
	cfg := config.Load()
	log.Printf("🔧 Config loaded. DryRun: %v, Headless: %v", cfg.DryRun, cfg.Headless)

	//batch runs can sit in the browser for a while
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Minute)
	defer cancel()

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

	log.Println("🚀 Starting HelpApply batch run...")

	n := *limit
	if n <= 0 {
		n = cfg.MaxApplicationsPerRun
	}

	summary, err := orchestrator.ProcessPending(ctx, n)
	if err != nil {
		notifyError(cfg, err)
		log.Fatalf("❌ Batch run failed: %v", err)
	}

	log.Printf("🏁 Run finished: %d processed, %d ok, %d failed, %d skipped",
		summary.Processed, summary.Successful, summary.Failed, summary.Skipped)

	notifySummary(cfg, summary)
}

func notifySummary(cfg *config.Config, summary *runner.RunSummary) {
	if cfg.TelegramToken == "" {
		return
	}
	bot, err := reporter.NewTelegramReporter(cfg)
	if err != nil {
		log.Printf("⚠️ Could not init Telegram reporter: %v", err)
		return
	}
	if err := bot.SendRunSummary(summary); err != nil {
		log.Printf("⚠️ Could not send run summary to Telegram: %v", err)
	}
}

func notifyError(cfg *config.Config, runErr error) {
	if cfg.TelegramToken == "" {
		return
	}
	bot, err := reporter.NewTelegramReporter(cfg)
	if err != nil {
		return
	}
	if err := bot.SendError(runErr); err != nil {
		log.Printf("⚠️ Could not send error to Telegram: %v", err)
	}
}
