package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/wayfarer-backend/internal/domain"
	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/http/response"
	"github.com/yungbote/wayfarer-backend/internal/jobs"
	"github.com/yungbote/wayfarer-backend/internal/platform/apierr"
	"github.com/yungbote/wayfarer-backend/internal/platform/ctxutil"
)

// TrainingRuns is the background run surface, implemented by *jobs.Runner.
type TrainingRuns interface {
	Enqueue(ctx context.Context, in jobs.EnqueueInput) (*types.TrainingRun, error)
	Get(ctx context.Context, runID uuid.UUID) (*types.TrainingRun, error)
	List(ctx context.Context, status string, limit int) ([]*types.TrainingRun, error)
	Cancel(ctx context.Context, runID uuid.UUID) (*types.TrainingRun, error)
	Reconcile(ctx context.Context, runID uuid.UUID) (domainagg.ResolvePartialResult, error)
}

type TrainingHandler struct {
	runs TrainingRuns
}

func NewTrainingHandler(runs TrainingRuns) *TrainingHandler {
	return &TrainingHandler{runs: runs}
}

type startRunRequest struct {
	MinScore           *float64 `json:"min_score"`
	Limit              *int     `json:"limit"`
	ValidationFraction *float64 `json:"validation_fraction"`
	Seed               *int64   `json:"seed"`
	BaseModel          string   `json:"base_model"`
}

// POST /api/training/runs
func (h *TrainingHandler) Start(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondMappedError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	in := jobs.EnqueueInput{
		MinScore:           req.MinScore,
		Limit:              req.Limit,
		ValidationFraction: req.ValidationFraction,
		Seed:               req.Seed,
		BaseModel:          req.BaseModel,
	}
	if p := ctxutil.GetPrincipal(c.Request.Context()); p != nil {
		in.RequestedBy = p.Subject
	}
	run, err := h.runs.Enqueue(c.Request.Context(), in)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"run": run})
}

// GET /api/training/runs
func (h *TrainingHandler) List(c *gin.Context) {
	limit, err := queryLimit(c, 50)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	runs, err := h.runs.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/training/runs/:id
func (h *TrainingHandler) Get(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	run, err := h.runs.Get(c.Request.Context(), runID)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// POST /api/training/runs/:id/cancel
func (h *TrainingHandler) Cancel(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	run, err := h.runs.Cancel(c.Request.Context(), runID)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"run": run})
}

// POST /api/training/runs/:id/reconcile
func (h *TrainingHandler) Reconcile(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	res, err := h.runs.Reconcile(c.Request.Context(), runID)
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondMappedError(c, apierr.BadRequest("invalid_run_id", err))
		return uuid.Nil, false
	}
	return runID, true
}

// queryLimit reads ?limit, falling back to def when absent.
func queryLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apierr.BadRequest("invalid_limit", errors.New("limit must be a positive integer"))
	}
	return n, nil
}
