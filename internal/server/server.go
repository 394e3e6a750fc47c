// HTTP API over the application store and the batch orchestrator.

package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/models"
	"go-helpapply-automation/internal/runner"
)

// Store is the slice of the repository the API needs.
type Store interface {
	CreateApplication(ctx context.Context, app *models.Application) (*models.Application, error)
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	GetAll(ctx context.Context, f database.ListFilter) ([]*models.Application, int, error)
	GetStats(ctx context.Context) (*database.Stats, error)
	GetRuns(ctx context.Context, limit int) ([]*models.ApplicationRun, error)
}

// Orchestrator triggers processing over stored applications.
type Orchestrator interface {
	ProcessPending(ctx context.Context, limit int) (*runner.RunSummary, error)
	Retry(ctx context.Context, id int64) (*models.Application, error)
	Busy() bool
}

type Server struct {
	cfg    *config.Config
	store  Store
	runner Orchestrator
}

func New(cfg *config.Config, store Store, orchestrator Orchestrator) *Server {
	return &Server{cfg: cfg, store: store, runner: orchestrator}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/applications", s.createApplication)
		api.POST("/applications/batch", s.createBatch)
		api.GET("/applications", s.listApplications)
		api.GET("/applications/stats", s.stats)
		api.GET("/applications/runs", s.listRuns)
		api.GET("/applications/:id", s.getApplication)
		api.POST("/applications/:id/retry", s.retryApplication)
		api.POST("/applications/process", s.processPending)
		api.GET("/applications/process/status", s.processStatus)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) createApplication(c *gin.Context) {
	var app models.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if app.JobURL == "" || app.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_url and email are required"})
		return
	}

	created, err := s.store.CreateApplication(c.Request.Context(), &app)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "application already exists for this job and email"})
			return
		}
		log.Printf("⚠️ Create application failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create application"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

type batchRequest struct {
	JobURLs []string           `json:"job_urls" binding:"required,min=1"`
	Profile models.Application `json:"profile"`
}

type batchResult struct {
	Created    []*models.Application `json:"created"`
	Duplicates []string              `json:"duplicates"`
	Errors     []string              `json:"errors"`
}

// createBatch fans one applicant profile out over many job URLs. Duplicates
// are reported, not treated as failures.
func (s *Server) createBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Profile.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile.email is required"})
		return
	}

	result := batchResult{
		Created:    []*models.Application{},
		Duplicates: []string{},
		Errors:     []string{},
	}

	for _, jobURL := range req.JobURLs {
		app := req.Profile
		app.JobURL = jobURL

		created, err := s.store.CreateApplication(c.Request.Context(), &app)
		if err != nil {
			if errors.Is(err, database.ErrConflict) {
				result.Duplicates = append(result.Duplicates, jobURL)
				continue
			}
			result.Errors = append(result.Errors, jobURL)
			continue
		}
		result.Created = append(result.Created, created)
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) listApplications(c *gin.Context) {
	filter := database.ListFilter{
		Status:   models.ApplicationStatus(c.Query("status")),
		Email:    c.Query("email"),
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", 20),
	}

	apps, total, err := s.store.GetAll(c.Request.Context(), filter)
	if err != nil {
		log.Printf("⚠️ List applications failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list applications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": apps,
		"total":        total,
		"page":         filter.Page,
		"page_size":    filter.PageSize,
	})
}

func (s *Server) getApplication(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	app, err := s.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
			return
		}
		log.Printf("⚠️ Get application %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load application"})
		return
	}

	c.JSON(http.StatusOK, app)
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.store.GetStats(c.Request.Context())
	if err != nil {
		log.Printf("⚠️ Stats query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.GetRuns(c.Request.Context(), intQuery(c, "limit", 20))
	if err != nil {
		log.Printf("⚠️ Runs query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// processPending runs a batch synchronously and answers with its summary.
// Concurrent invocations get 409 from the orchestrator's lease, not from a
// racy pre-check here.
func (s *Server) processPending(c *gin.Context) {
	limit := intQuery(c, "limit", s.cfg.MaxApplicationsPerRun)

	summary, err := s.runner.ProcessPending(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, runner.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "processing already in progress"})
			return
		}
		log.Printf("⚠️ Batch run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch run failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) processStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"processing": s.runner.Busy()})
}

func (s *Server) retryApplication(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	app, err := s.runner.Retry(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		case errors.Is(err, runner.ErrInvalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, runner.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "processing already in progress"})
		default:
			log.Printf("⚠️ Retry of application %d failed: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "retry failed"})
		}
		return
	}

	c.JSON(http.StatusOK, app)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
