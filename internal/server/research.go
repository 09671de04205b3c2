package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/chronicler/internal/agent/core"
	"github.com/mohammad-safakhou/chronicler/internal/search"
	"github.com/mohammad-safakhou/chronicler/internal/store"
)

// ResearchHandler serves run creation, status, reports, and report search.
type ResearchHandler struct {
	Store  *store.Store
	Status *RedisSink
	Orch   *core.Orchestrator
	Index  *search.Index
	Logger *log.Logger
}

type researchRequest struct {
	Query    string `json:"query"`
	Schedule string `json:"schedule,omitempty"`
}

func (h *ResearchHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/research", h.createRun)
	g.GET("/research/:id", h.runStatus)
	g.GET("/research/:id/report", h.runReport)
	g.GET("/reports/search", h.searchReports)
}

func (h *ResearchHandler) createRun(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	userID, _ := c.Get("user_id").(string)

	runID := uuid.New().String()
	ctx := c.Request().Context()
	if err := h.Store.CreateRun(ctx, runID, userID, req.Query, req.Schedule); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Status.InitRun(ctx, runID); err != nil {
		h.Logger.Printf("seeding status for run %s: %v", runID, err)
	}

	// The pipeline outlives the request; it runs on a background context.
	go h.execute(context.Background(), runID, req.Query)

	return c.JSON(http.StatusAccepted, map[string]string{"id": runID})
}

// execute drives one pipeline run and persists its outcome.
func (h *ResearchHandler) execute(ctx context.Context, runID, query string) {
	if err := h.Store.MarkRunRunning(ctx, runID); err != nil {
		h.Logger.Printf("run %s: %v", runID, err)
	}

	state, err := h.Orch.Run(ctx, runID, query)
	if err != nil {
		h.Logger.Printf("run %s failed: %v", runID, err)
		if dbErr := h.Store.FinishRun(ctx, runID, store.RunStatusFailed, err.Error()); dbErr != nil {
			h.Logger.Printf("run %s: %v", runID, dbErr)
		}
		return
	}

	rep := store.Report{
		RunID:        runID,
		Plan:         state.Plan.RawText,
		Findings:     state.Findings,
		Verdict:      state.Verification.Verdict,
		Issues:       state.Verification.Issues,
		Rewritten:    state.Verification.RewrittenOutput,
		ArtifactPath: state.ArtifactPath,
	}
	if err := h.Store.SaveReport(ctx, rep); err != nil {
		h.Logger.Printf("run %s: %v", runID, err)
		_ = h.Store.FinishRun(ctx, runID, store.RunStatusFailed, err.Error())
		return
	}
	if err := h.Index.Add(search.Document{RunID: runID, Query: query, Body: state.Report}); err != nil {
		h.Logger.Printf("run %s: %v", runID, err)
	}
	if err := h.Store.FinishRun(ctx, runID, store.RunStatusCompleted, ""); err != nil {
		h.Logger.Printf("run %s: %v", runID, err)
	}
}

func (h *ResearchHandler) runStatus(c echo.Context) error {
	id := c.Param("id")
	run, err := h.Store.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	stages, err := h.Status.RunStatus(c.Request().Context(), id)
	if err != nil {
		h.Logger.Printf("run %s: %v", id, err)
		stages = map[string]string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     run.ID,
		"query":  run.Query,
		"status": run.Status,
		"error":  run.Error,
		"stages": stages,
	})
}

func (h *ResearchHandler) runReport(c echo.Context) error {
	id := c.Param("id")
	rep, err := h.Store.GetReport(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":        rep.RunID,
		"verdict":       rep.Verdict,
		"issues":        rep.Issues,
		"report":        rep.Rewritten,
		"artifact_path": rep.ArtifactPath,
		"created_at":    rep.CreatedAt,
	})
}

func (h *ResearchHandler) searchReports(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	hits, err := h.Index.Search(q, 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}
