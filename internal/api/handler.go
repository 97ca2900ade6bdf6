// Package api exposes the planner over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nutriplan/internal/app"
	"nutriplan/internal/catalogue"
	"nutriplan/internal/config"
	"nutriplan/internal/metrics"
	"nutriplan/internal/plan"
	"nutriplan/internal/planner"
	"nutriplan/internal/sheet"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Service is the application surface the API drives.
type Service interface {
	Catalogue() []catalogue.Dish
	SyncCatalogue(ctx context.Context) ([]catalogue.Dish, error)
	Plans() []plan.Plan
	RefreshHistory(ctx context.Context) ([]plan.Plan, error)
	Generate(ctx context.Context, start time.Time, days int) (planner.Result, error)
	SavePlan(ctx context.Context, name, startDate string, days []plan.DayAssignment) (plan.Plan, bool, error)
	DeletePlan(ctx context.Context, id string) error
	Stats() []plan.MealStat
	Sources() config.Sources
	UpdateSources(ctx context.Context, src config.Sources) error
}

// UsageReader reports generation token usage.
type UsageReader interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Handler serves the HTTP API.
type Handler struct {
	svc         Service
	usage       UsageReader
	health      func() metrics.SysHealth
	defaultDays int
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler creates a Handler. usage and health may be nil.
func NewHandler(svc Service, usage UsageReader, health func() metrics.SysHealth, defaultDays int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultDays <= 0 {
		defaultDays = 7
	}
	return &Handler{
		svc:         svc,
		usage:       usage,
		health:      health,
		defaultDays: defaultDays,
		logger:      logger,
		now:         time.Now,
	}
}

// Register mounts the routes on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/dishes", h.ListDishes)
	e.POST("/dishes/sync", h.SyncDishes)
	e.GET("/plans", h.ListPlans)
	e.POST("/plans/generate", h.GeneratePlan)
	e.POST("/plans", h.SavePlan)
	e.DELETE("/plans/:id", h.DeletePlan)
	e.GET("/stats", h.Stats)
	e.GET("/usage", h.Usage)
	e.GET("/sources", h.GetSources)
	e.PUT("/sources", h.PutSources)
}

func (h *Handler) Health(c echo.Context) error {
	if h.health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	return c.JSON(http.StatusOK, h.health())
}

func (h *Handler) ListDishes(c echo.Context) error {
	return c.JSON(http.StatusOK, catalogue.Search(h.svc.Catalogue(), c.QueryParam("q")))
}

func (h *Handler) SyncDishes(c echo.Context) error {
	dishes, err := h.svc.SyncCatalogue(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dishes)
}

func (h *Handler) ListPlans(c echo.Context) error {
	if refresh, _ := strconv.ParseBool(c.QueryParam("refresh")); refresh {
		plans, err := h.svc.RefreshHistory(c.Request().Context())
		if err != nil {
			// The stale view is still served; the client learns via the header.
			c.Response().Header().Set("X-History-Stale", "true")
		}
		return c.JSON(http.StatusOK, nonNil(plans))
	}
	return c.JSON(http.StatusOK, nonNil(h.svc.Plans()))
}

type generateRequest struct {
	StartDate string `json:"startDate"`
	Days      int    `json:"days"`
}

type generateResponse struct {
	StartDate string               `json:"startDate"`
	Days      []plan.DayAssignment `json:"plan"`
	FellBack  bool                 `json:"fellBack"`
}

func (h *Handler) GeneratePlan(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}

	start := h.now()
	if req.StartDate != "" {
		t, err := planner.ParseStartDate(req.StartDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "startDate must be YYYY-MM-DD"})
		}
		start = t
	}
	if req.Days == 0 {
		req.Days = h.defaultDays
	}
	if req.Days < 0 || req.Days > planner.MaxDays {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("days must be between 1 and %d", planner.MaxDays)})
	}

	res, err := h.svc.Generate(c.Request().Context(), start, req.Days)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, generateResponse{
		StartDate: start.Format(plan.DateLayout),
		Days:      res.Days,
		FellBack:  res.FellBack,
	})
}

type saveRequest struct {
	Name      string               `json:"name"`
	StartDate string               `json:"startDate"`
	Days      []plan.DayAssignment `json:"plan"`
}

type saveResponse struct {
	Plan        plan.Plan `json:"plan"`
	RemoteSaved bool      `json:"remoteSaved"`
}

func (h *Handler) SavePlan(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if len(req.Days) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "plan is empty"})
	}
	if req.StartDate == "" {
		req.StartDate = req.Days[0].Date
	}

	p, remoteOK, err := h.svc.SavePlan(c.Request().Context(), req.Name, req.StartDate, req.Days)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, saveResponse{Plan: p, RemoteSaved: remoteOK})
}

func (h *Handler) DeletePlan(c echo.Context) error {
	if err := h.svc.DeletePlan(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, nonNil(h.svc.Stats()))
}

func (h *Handler) Usage(c echo.Context) error {
	if h.usage == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "usage metrics disabled"})
	}
	days, err := strconv.Atoi(c.QueryParam("days"))
	if err != nil || days <= 0 {
		days = 7
	}
	usage, err := h.usage.GetDailyUsage(c.Request().Context(), days)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(usage))
}

func (h *Handler) GetSources(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Sources())
}

func (h *Handler) PutSources(c echo.Context) error {
	var src config.Sources
	if err := c.Bind(&src); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := h.svc.UpdateSources(c.Request().Context(), src); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.svc.Sources())
}

func (h *Handler) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, planner.ErrInsufficientCatalogue):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrInvalidPlan), errors.Is(err, planner.ErrTooManyDays):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrPlanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sheet.ErrSourceUnavailable):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
