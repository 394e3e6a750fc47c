package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/models"
)

// fakeStore keeps everything in memory and records the call order.
type fakeStore struct {
	mu      sync.Mutex
	apps    map[int64]*models.Application
	pending []int64
	runs    []*models.ApplicationRun
	calls   []string

	markProcessingErr error
}

func newFakeStore(apps ...*models.Application) *fakeStore {
	s := &fakeStore{apps: map[int64]*models.Application{}}
	for _, app := range apps {
		s.apps[app.ID] = app
		if app.Status == models.StatusPending {
			s.pending = append(s.pending, app.ID)
		}
	}
	return s
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeStore) GetPending(_ context.Context, limit int) ([]*models.Application, error) {
	s.record("GetPending")
	var out []*models.Application
	for _, id := range s.pending {
		if len(out) == limit {
			break
		}
		out = append(out, s.apps[id])
	}
	return out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*models.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return app, nil
}

func (s *fakeStore) MarkProcessing(_ context.Context, app *models.Application) error {
	s.record(fmt.Sprintf("MarkProcessing(%d)", app.ID))
	if s.markProcessingErr != nil {
		return s.markProcessingErr
	}
	app.Status = models.StatusProcessing
	app.Attempts++
	return nil
}

func (s *fakeStore) Save(_ context.Context, app *models.Application) error {
	s.record(fmt.Sprintf("Save(%d,%s)", app.ID, app.Status))
	s.apps[app.ID] = app
	return nil
}

func (s *fakeStore) MarkJobApplied(_ context.Context, app *models.Application) {
	s.record(fmt.Sprintf("MarkJobApplied(%d)", app.ID))
}

func (s *fakeStore) CreateRun(_ context.Context) (*models.ApplicationRun, error) {
	s.record("CreateRun")
	run := &models.ApplicationRun{ID: int64(len(s.runs) + 1), StartedAt: time.Now(), Status: "running"}
	s.runs = append(s.runs, run)
	return run, nil
}

func (s *fakeStore) FinishRun(_ context.Context, run *models.ApplicationRun, successful, failed, skipped int, status string) error {
	s.record(fmt.Sprintf("FinishRun(%d,%s)", run.ID, status))
	run.Successful = successful
	run.Failed = failed
	run.Skipped = skipped
	run.TotalProcessed = successful + failed + skipped
	run.Status = status
	return nil
}

// fakePipeline maps application id to an outcome status.
type fakePipeline struct {
	mu        sync.Mutex
	outcomes  map[int64]models.ApplicationStatus
	startErr  error
	started   int
	stopped   int
	applied   []int64
	applyHook func()
}

func (p *fakePipeline) StartBrowser() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started++
	return nil
}

func (p *fakePipeline) StopBrowser() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	return nil
}

func (p *fakePipeline) Apply(_ context.Context, app *models.Application) *models.Application {
	p.mu.Lock()
	p.applied = append(p.applied, app.ID)
	hook := p.applyHook
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	status, ok := p.outcomes[app.ID]
	if !ok {
		status = models.StatusSuccess
	}
	app.Status = status
	if status == models.StatusFailed {
		app.SetError(status, "boom")
	}
	now := time.Now()
	app.CompletedAt = &now
	return app
}

func testConfig() *config.Config {
	return &config.Config{MaxApplicationsPerRun: 50}
}

func pendingApp(id int64) *models.Application {
	return &models.Application{
		ID:          id,
		JobURL:      fmt.Sprintf("https://www.helplavoro.it/offerta/%d.html", id),
		Email:       "mario@example.com",
		Status:      models.StatusPending,
		MaxAttempts: models.DefaultMaxAttempts,
	}
}

func TestProcessPendingAggregatesOutcomes(t *testing.T) {
	store := newFakeStore(pendingApp(1), pendingApp(2), pendingApp(3))
	pipeline := &fakePipeline{outcomes: map[int64]models.ApplicationStatus{
		1: models.StatusSuccess,
		2: models.StatusFailed,
		3: models.StatusSkipped,
	}}

	r := New(testConfig(), store, pipeline)
	summary, err := r.ProcessPending(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "completed", summary.Status)

	//browser opened and closed exactly once for the whole batch
	assert.Equal(t, 1, pipeline.started)
	assert.Equal(t, 1, pipeline.stopped)

	//processed strictly in order
	assert.Equal(t, []int64{1, 2, 3}, pipeline.applied)

	//run row carries the same counts
	require.Len(t, store.runs, 1)
	assert.Equal(t, 1, store.runs[0].Successful)
	assert.Equal(t, 1, store.runs[0].Failed)
	assert.Equal(t, 1, store.runs[0].Skipped)
	assert.Equal(t, "completed", store.runs[0].Status)

	//every processed application reached a terminal status
	for _, app := range store.apps {
		assert.True(t, app.IsTerminal(), "application %d left in %s", app.ID, app.Status)
	}

	//guard released
	assert.False(t, r.Busy())
}

func TestProcessPendingMarksBeforeApply(t *testing.T) {
	store := newFakeStore(pendingApp(7))
	pipeline := &fakePipeline{}

	r := New(testConfig(), store, pipeline)
	_, err := r.ProcessPending(context.Background(), 10)
	require.NoError(t, err)

	//MarkProcessing must precede the save of the outcome
	assert.Equal(t, []string{
		"GetPending",
		"CreateRun",
		"MarkProcessing(7)",
		"Save(7,success)",
		"MarkJobApplied(7)",
		"FinishRun(1,completed)",
	}, store.calls)
}

func TestProcessPendingEmptyIsNoOp(t *testing.T) {
	store := newFakeStore()
	pipeline := &fakePipeline{}

	r := New(testConfig(), store, pipeline)
	summary, err := r.ProcessPending(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, "no_pending", summary.Status)
	assert.Equal(t, 0, summary.Processed)
	//no run row and no browser when there is nothing to do
	assert.Empty(t, store.runs)
	assert.Equal(t, 0, pipeline.started)
}

func TestProcessPendingBrowserStartFailure(t *testing.T) {
	store := newFakeStore(pendingApp(1))
	pipeline := &fakePipeline{startErr: fmt.Errorf("chromium missing")}

	r := New(testConfig(), store, pipeline)
	_, err := r.ProcessPending(context.Background(), 10)
	require.Error(t, err)

	//run is finalized as failed, application stays pending for the next run
	require.Len(t, store.runs, 1)
	assert.Equal(t, "failed", store.runs[0].Status)
	assert.Equal(t, models.StatusPending, store.apps[1].Status)
	assert.False(t, r.Busy())
}

func TestProcessPendingRespectsLimit(t *testing.T) {
	store := newFakeStore(pendingApp(1), pendingApp(2), pendingApp(3))
	pipeline := &fakePipeline{}

	r := New(testConfig(), store, pipeline)
	summary, err := r.ProcessPending(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, []int64{1, 2}, pipeline.applied)
}

func TestProcessPendingBusy(t *testing.T) {
	store := newFakeStore(pendingApp(1))
	pipeline := &fakePipeline{}
	r := New(testConfig(), store, pipeline)

	blocked := make(chan struct{})
	proceed := make(chan struct{})
	pipeline.applyHook = func() {
		close(blocked)
		<-proceed
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.ProcessPending(context.Background(), 10)
		assert.NoError(t, err)
	}()

	<-blocked
	assert.True(t, r.Busy())
	_, err := r.ProcessPending(context.Background(), 10)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = r.Retry(context.Background(), 1)
	assert.Error(t, err)

	close(proceed)
	<-done
	assert.False(t, r.Busy())
}

func TestProcessPendingStopsBrowserOnPanic(t *testing.T) {
	store := newFakeStore(pendingApp(1))
	pipeline := &fakePipeline{}
	pipeline.applyHook = func() { panic("page crashed") }

	r := New(testConfig(), store, pipeline)
	assert.Panics(t, func() {
		r.ProcessPending(context.Background(), 10)
	})

	//the browser must be released even when the loop blows up
	assert.Equal(t, 1, pipeline.stopped)
}

func TestRetryBusyLeavesRecordUntouched(t *testing.T) {
	failed := pendingApp(2)
	failed.Status = models.StatusFailed
	failed.Attempts = 1
	msg := "Timeout: navigation exceeded 30000ms"
	failed.ErrorMessage = &msg

	store := newFakeStore(pendingApp(1), failed)
	pipeline := &fakePipeline{}
	r := New(testConfig(), store, pipeline)

	blocked := make(chan struct{})
	proceed := make(chan struct{})
	pipeline.applyHook = func() {
		close(blocked)
		<-proceed
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ProcessPending(context.Background(), 1)
	}()
	<-blocked

	_, err := r.Retry(context.Background(), 2)
	assert.ErrorIs(t, err, ErrBusy)

	//the busy rejection must not touch the stored failure
	assert.Equal(t, models.StatusFailed, store.apps[2].Status)
	if assert.NotNil(t, store.apps[2].ErrorMessage) {
		assert.Equal(t, msg, *store.apps[2].ErrorMessage)
	}
	for _, call := range store.calls {
		assert.NotEqual(t, "Save(2,pending)", call)
	}

	close(proceed)
	<-done
}

func TestRetry(t *testing.T) {
	t.Run("Retries a failed application", func(t *testing.T) {
		app := pendingApp(4)
		app.Status = models.StatusFailed
		app.Attempts = 1
		msg := "boom"
		app.ErrorMessage = &msg

		store := newFakeStore(app)
		pipeline := &fakePipeline{outcomes: map[int64]models.ApplicationStatus{4: models.StatusSuccess}}

		r := New(testConfig(), store, pipeline)
		result, err := r.Retry(context.Background(), 4)
		require.NoError(t, err)

		assert.Equal(t, models.StatusSuccess, result.Status)
		assert.Equal(t, 2, result.Attempts)
		assert.Equal(t, 1, pipeline.started)
		assert.Equal(t, 1, pipeline.stopped)
	})

	t.Run("Unknown id", func(t *testing.T) {
		r := New(testConfig(), newFakeStore(), &fakePipeline{})
		_, err := r.Retry(context.Background(), 99)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("Successful application is not retryable", func(t *testing.T) {
		app := pendingApp(5)
		app.Status = models.StatusSuccess
		r := New(testConfig(), newFakeStore(app), &fakePipeline{})
		_, err := r.Retry(context.Background(), 5)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("Attempts exhausted", func(t *testing.T) {
		app := pendingApp(6)
		app.Status = models.StatusFailed
		app.Attempts = models.DefaultMaxAttempts
		r := New(testConfig(), newFakeStore(app), &fakePipeline{})
		_, err := r.Retry(context.Background(), 6)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestProcessOne(t *testing.T) {
	t.Run("Processes a pending application", func(t *testing.T) {
		store := newFakeStore(pendingApp(8))
		pipeline := &fakePipeline{}

		r := New(testConfig(), store, pipeline)
		result, err := r.ProcessOne(context.Background(), 8)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, result.Status)
	})

	t.Run("Rejects non-pending", func(t *testing.T) {
		app := pendingApp(9)
		app.Status = models.StatusSuccess
		r := New(testConfig(), newFakeStore(app), &fakePipeline{})
		_, err := r.ProcessOne(context.Background(), 9)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}
