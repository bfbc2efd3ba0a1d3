package delivery

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"mentorhub-backend/internal/listener"
	nusecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// TriggerRunner runs registered triggers on demand
type TriggerRunner interface {
	Run(ctx context.Context, name string, opts nusecase.Options) (scheduler.Summary, string, error)
	Triggers() []scheduler.TriggerInfo
}

// ChangeProcessor handles a raw document change payload
type ChangeProcessor interface {
	Process(ctx context.Context, data []byte, opts nusecase.Options) (*nusecase.Summary, error)
}

// TriggerHandler handles operator HTTP requests
type TriggerHandler struct {
	runner     TriggerRunner
	changes    ChangeProcessor
	kpiTrigger string
}

// NewTriggerHandler creates a new TriggerHandler. kpiTrigger is the trigger
// behind the KPI reminder shortcut route.
func NewTriggerHandler(runner TriggerRunner, changes ChangeProcessor, kpiTrigger string) *TriggerHandler {
	return &TriggerHandler{
		runner:     runner,
		changes:    changes,
		kpiTrigger: kpiTrigger,
	}
}

// RunRequest represents the request body of a manual run
type RunRequest struct {
	DryRun bool `json:"dryRun"`
	Force  bool `json:"force"`
}

// ListTriggers returns every trigger with its schedule
// GET /api/admin/triggers
func (h *TriggerHandler) ListTriggers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"triggers": h.runner.Triggers()})
}

// RunTrigger runs a trigger now
// POST /api/admin/triggers/:name/run
func (h *TriggerHandler) RunTrigger(c *gin.Context) {
	h.run(c, c.Param("name"))
}

// RunKPIReminders runs the weekly KPI reminder now
// POST /api/admin/kpi-reminders/run
func (h *TriggerHandler) RunKPIReminders(c *gin.Context) {
	h.run(c, h.kpiTrigger)
}

// ReplayChange handles a document change posted by hand
// POST /api/admin/changes?dryRun=true
func (h *TriggerHandler) ReplayChange(c *gin.Context) {
	if h.changes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "change processing is disabled"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}
	dryRun, err := strconv.ParseBool(c.DefaultQuery("dryRun", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dryRun must be true or false"})
		return
	}

	summary, err := h.changes.Process(c.Request.Context(), body, nusecase.Options{DryRun: dryRun})
	switch {
	case errors.Is(err, listener.ErrIgnored):
		c.JSON(http.StatusOK, gin.H{"ignored": true, "reason": err.Error()})
	case err != nil && summary == nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Printf("[Admin] Change replay failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
	default:
		c.JSON(http.StatusOK, summary)
	}
}

func (h *TriggerHandler) run(c *gin.Context, name string) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	summary, runID, err := h.runner.Run(c.Request.Context(), name, nusecase.Options{DryRun: req.DryRun, Force: req.Force})
	if runID != "" {
		c.Header("X-Run-ID", runID)
	}
	switch {
	case errors.Is(err, scheduler.ErrUnknownTrigger):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "runId": runID})
	default:
		c.JSON(http.StatusOK, summary)
	}
}
