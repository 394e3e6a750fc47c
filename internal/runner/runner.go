// Batch orchestrator: serializes pending applications through the single
// browser session, one fully completing (including its save) before the next
// starts.

package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/models"
)

var (
	//ErrBusy means another batch run or retry currently owns the browser
	ErrBusy = errors.New("processing already in progress")
	//ErrInvalidState means the application cannot be retried
	ErrInvalidState = errors.New("application cannot be retried")
)

// Store is the slice of the repository the orchestrator needs.
type Store interface {
	GetPending(ctx context.Context, limit int) ([]*models.Application, error)
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	MarkProcessing(ctx context.Context, app *models.Application) error
	Save(ctx context.Context, app *models.Application) error
	MarkJobApplied(ctx context.Context, app *models.Application)
	CreateRun(ctx context.Context) (*models.ApplicationRun, error)
	FinishRun(ctx context.Context, run *models.ApplicationRun, successful, failed, skipped int, status string) error
}

// Pipeline is the browser-driven submission engine.
type Pipeline interface {
	StartBrowser() error
	StopBrowser() error
	Apply(ctx context.Context, app *models.Application) *models.Application
}

// RunSummary is what a batch reports back to its caller.
type RunSummary struct {
	RunID      int64  `json:"run_id"`
	Processed  int    `json:"processed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Status     string `json:"status"`
}

type Runner struct {
	cfg      *config.Config
	store    Store
	pipeline Pipeline
	guard    Guard
}

func New(cfg *config.Config, store Store, pipeline Pipeline) *Runner {
	return &Runner{cfg: cfg, store: store, pipeline: pipeline}
}

// Busy reports whether a run is currently in progress.
func (r *Runner) Busy() bool {
	return r.guard.Busy()
}

// ProcessPending pushes up to limit pending applications through the
// pipeline, oldest first. Returns ErrBusy when another run holds the lease.
func (r *Runner) ProcessPending(ctx context.Context, limit int) (*RunSummary, error) {
	release, ok := r.guard.TryAcquire()
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	pending, err := r.store.GetPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		log.Println("💤 No pending applications")
		return &RunSummary{Status: "no_pending"}, nil
	}

	run, err := r.store.CreateRun(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("🏁 Run %d started: %d pending applications", run.ID, len(pending))

	if err := r.pipeline.StartBrowser(); err != nil {
		r.finishRun(ctx, run, 0, 0, 0, "failed")
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	// Deferred so a panicking pipeline cannot leak the Chromium instance
	defer func() {
		if err := r.pipeline.StopBrowser(); err != nil {
			log.Printf("⚠️ Error stopping browser: %v", err)
		}
	}()

	successful, failed, skipped := r.processLoop(ctx, pending)

	r.finishRun(ctx, run, successful, failed, skipped, "completed")
	log.Printf("🏁 Run %d finished: %d ok, %d failed, %d skipped", run.ID, successful, failed, skipped)

	return &RunSummary{
		RunID:      run.ID,
		Processed:  successful + failed + skipped,
		Successful: successful,
		Failed:     failed,
		Skipped:    skipped,
		Status:     "completed",
	}, nil
}

// processLoop runs the applications strictly in order, persisting each
// outcome before the next starts.
func (r *Runner) processLoop(ctx context.Context, pending []*models.Application) (successful, failed, skipped int) {
	for i, app := range pending {
		if err := r.store.MarkProcessing(ctx, app); err != nil {
			log.Printf("⚠️ Could not mark application %d processing, skipping it: %v", app.ID, err)
			continue
		}

		result := r.pipeline.Apply(ctx, app)

		if err := r.store.Save(ctx, result); err != nil {
			log.Printf("⚠️ Could not save application %d: %v", result.ID, err)
		}

		switch result.Status {
		case models.StatusSuccess:
			successful++
			r.store.MarkJobApplied(ctx, result)
		case models.StatusFailed:
			failed++
		case models.StatusSkipped:
			skipped++
		}

		// Pace between applications: the site is rate-sensitive
		if r.cfg.DelayBetweenApplications > 0 && i < len(pending)-1 {
			time.Sleep(time.Duration(r.cfg.DelayBetweenApplications * float64(time.Second)))
		}
	}
	return successful, failed, skipped
}

// Retry reprocesses one failed or skipped application under the same lease.
func (r *Runner) Retry(ctx context.Context, id int64) (*models.Application, error) {
	app, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !app.CanRetry() {
		return nil, fmt.Errorf("%w: status=%s attempts=%d/%d", ErrInvalidState, app.Status, app.Attempts, app.MaxAttempts)
	}

	// The lease comes first: a busy rejection must leave the record exactly
	// as it was, recorded failure included
	release, ok := r.guard.TryAcquire()
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	// Back to pending so a crash before completion leaves it eligible
	app.Status = models.StatusPending
	app.ErrorMessage = nil
	if err := r.store.Save(ctx, app); err != nil {
		return nil, err
	}

	return r.processSingle(ctx, app)
}

// ProcessOne runs one pending application through the pipeline, used by the
// queue intake where each message maps to exactly one record.
func (r *Runner) ProcessOne(ctx context.Context, id int64) (*models.Application, error) {
	app, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if app.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: status=%s", ErrInvalidState, app.Status)
	}

	release, ok := r.guard.TryAcquire()
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	return r.processSingle(ctx, app)
}

// processSingle runs one application under a lease the caller already holds.
func (r *Runner) processSingle(ctx context.Context, app *models.Application) (*models.Application, error) {
	if err := r.pipeline.StartBrowser(); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := r.pipeline.StopBrowser(); err != nil {
			log.Printf("⚠️ Error stopping browser: %v", err)
		}
	}()

	if err := r.store.MarkProcessing(ctx, app); err != nil {
		return nil, err
	}

	result := r.pipeline.Apply(ctx, app)

	if err := r.store.Save(ctx, result); err != nil {
		return nil, err
	}

	if result.Status == models.StatusSuccess {
		r.store.MarkJobApplied(ctx, result)
	}

	return result, nil
}

func (r *Runner) finishRun(ctx context.Context, run *models.ApplicationRun, successful, failed, skipped int, status string) {
	if err := r.store.FinishRun(ctx, run, successful, failed, skipped, status); err != nil {
		log.Printf("⚠️ Could not finalize run %d: %v", run.ID, err)
	}
}
