package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/models"
	"go-helpapply-automation/internal/runner"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	apps      map[int64]*models.Application
	createErr error
	lastList  database.ListFilter
}

func (f *fakeStore) CreateApplication(_ context.Context, app *models.Application) (*models.Application, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	app.ID = int64(len(f.apps) + 1)
	app.Status = models.StatusPending
	f.apps[app.ID] = app
	return app, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return app, nil
}

func (f *fakeStore) GetAll(_ context.Context, filter database.ListFilter) ([]*models.Application, int, error) {
	f.lastList = filter
	var out []*models.Application
	for _, app := range f.apps {
		out = append(out, app)
	}
	return out, len(out), nil
}

func (f *fakeStore) GetStats(_ context.Context) (*database.Stats, error) {
	return &database.Stats{Total: len(f.apps)}, nil
}

func (f *fakeStore) GetRuns(_ context.Context, _ int) ([]*models.ApplicationRun, error) {
	return []*models.ApplicationRun{{ID: 1, StartedAt: time.Now(), Status: "completed"}}, nil
}

type fakeOrchestrator struct {
	busy     bool
	retryErr error
	retryApp *models.Application
	started  bool
}

func (f *fakeOrchestrator) ProcessPending(_ context.Context, _ int) (*runner.RunSummary, error) {
	if f.busy {
		return nil, runner.ErrBusy
	}
	f.started = true
	return &runner.RunSummary{RunID: 1, Processed: 2, Successful: 2, Status: "completed"}, nil
}

func (f *fakeOrchestrator) Retry(_ context.Context, id int64) (*models.Application, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return f.retryApp, nil
}

func (f *fakeOrchestrator) Busy() bool { return f.busy }

func setup(store *fakeStore, orch *fakeOrchestrator) *gin.Engine {
	if store.apps == nil {
		store.apps = map[int64]*models.Application{}
	}
	cfg := &config.Config{MaxApplicationsPerRun: 50}
	return New(cfg, store, orch).Router()
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateApplication(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{})

	body := `{"job_url":"https://www.helplavoro.it/offerta/123.html","email":"mario@example.com","name":"Mario","surname":"Rossi"}`
	w := do(t, router, http.MethodPost, "/api/applications", body)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, models.StatusPending, created.Status)
}

func TestCreateApplicationValidation(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{})

	w := do(t, router, http.MethodPost, "/api/applications", `{"email":"mario@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/applications", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateApplicationConflict(t *testing.T) {
	router := setup(&fakeStore{createErr: database.ErrConflict}, &fakeOrchestrator{})

	body := `{"job_url":"https://www.helplavoro.it/offerta/123.html","email":"mario@example.com"}`
	w := do(t, router, http.MethodPost, "/api/applications", body)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateBatch(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{})

	body := `{
		"job_urls": ["https://www.helplavoro.it/offerta/1.html", "https://www.helplavoro.it/offerta/2.html"],
		"profile": {"email":"mario@example.com","name":"Mario","surname":"Rossi"}
	}`
	w := do(t, router, http.MethodPost, "/api/applications/batch", body)

	assert.Equal(t, http.StatusCreated, w.Code)

	var result batchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Created, 2)
	assert.Empty(t, result.Duplicates)
	assert.Empty(t, result.Errors)
}

func TestCreateBatchRequiresURLs(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{})

	w := do(t, router, http.MethodPost, "/api/applications/batch", `{"job_urls":[],"profile":{"email":"a@b.c"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBatchReportsDuplicates(t *testing.T) {
	router := setup(&fakeStore{createErr: database.ErrConflict}, &fakeOrchestrator{})

	body := `{"job_urls":["https://www.helplavoro.it/offerta/1.html"],"profile":{"email":"mario@example.com"}}`
	w := do(t, router, http.MethodPost, "/api/applications/batch", body)

	assert.Equal(t, http.StatusCreated, w.Code)

	var result batchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Empty(t, result.Created)
	assert.Len(t, result.Duplicates, 1)
}

func TestGetApplication(t *testing.T) {
	store := &fakeStore{apps: map[int64]*models.Application{
		5: {ID: 5, JobURL: "https://www.helplavoro.it/offerta/5.html", Email: "mario@example.com", Status: models.StatusSuccess},
	}}
	router := setup(store, &fakeOrchestrator{})

	w := do(t, router, http.MethodGet, "/api/applications/5", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/applications/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/applications/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListApplicationsFilters(t *testing.T) {
	store := &fakeStore{}
	router := setup(store, &fakeOrchestrator{})

	w := do(t, router, http.MethodGet, "/api/applications?status=failed&email=mario@example.com&page=2&page_size=5", "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, models.StatusFailed, store.lastList.Status)
	assert.Equal(t, "mario@example.com", store.lastList.Email)
	assert.Equal(t, 2, store.lastList.Page)
	assert.Equal(t, 5, store.lastList.PageSize)
}

func TestListApplicationsDefaults(t *testing.T) {
	store := &fakeStore{}
	router := setup(store, &fakeOrchestrator{})

	w := do(t, router, http.MethodGet, "/api/applications?page=0&page_size=-3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.lastList.Page)
	assert.Equal(t, 20, store.lastList.PageSize)
}

func TestStats(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{})

	w := do(t, router, http.MethodGet, "/api/applications/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats database.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
}

func TestProcessPendingEndpoint(t *testing.T) {
	orch := &fakeOrchestrator{}
	router := setup(&fakeStore{}, orch)

	w := do(t, router, http.MethodPost, "/api/applications/process", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, orch.started)

	//the run summary comes back in the response body
	var summary runner.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.RunID)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, "completed", summary.Status)
}

func TestProcessPendingBusy(t *testing.T) {
	orch := &fakeOrchestrator{busy: true}
	router := setup(&fakeStore{}, orch)

	w := do(t, router, http.MethodPost, "/api/applications/process", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, orch.started)
}

func TestProcessStatus(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{busy: true})

	w := do(t, router, http.MethodGet, "/api/applications/process/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"processing": true}`, w.Body.String())
}

func TestRetryEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		orch     *fakeOrchestrator
		wantCode int
	}{
		{"Retry succeeds", &fakeOrchestrator{retryApp: &models.Application{ID: 3, Status: models.StatusSuccess}}, http.StatusOK},
		{"Unknown id", &fakeOrchestrator{retryErr: database.ErrNotFound}, http.StatusNotFound},
		{"Not retryable", &fakeOrchestrator{retryErr: runner.ErrInvalidState}, http.StatusBadRequest},
		{"Busy", &fakeOrchestrator{retryErr: runner.ErrBusy}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setup(&fakeStore{}, tt.orch)
			w := do(t, router, http.MethodPost, "/api/applications/3/retry", "")
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	router := setup(&fakeStore{}, &fakeOrchestrator{})

	w := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
