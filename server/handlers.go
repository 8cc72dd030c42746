package server

import (
	"io"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tessera-org/tessera/engine"
	"github.com/tessera-org/tessera/helpers"
	"github.com/tessera-org/tessera/schema"
)

// ============================================================================
// HTTP ADAPTER — Echo handlers around the cube engine
// ============================================================================
// The handler holds the "current" cube plus the operation history. Cubes
// themselves are immutable; the mutex only guards the handler's own pointer
// and history slice. Every operator endpoint applies to the current cube and
// returns the new cube together with its Operation descriptor — rejected
// operations leave the current cube in place.
// ============================================================================

// Handler serves the cube over HTTP.
type Handler struct {
	mu      sync.RWMutex
	base    *engine.Cube // cube as initially built, for reset
	current *engine.Cube
	history []engine.Operation
	cfg     *schema.Config
}

// NewHandler creates a handler with no dataset loaded. Endpoints return 503
// until a dataset is posted.
func NewHandler(cfg *schema.Config) *Handler {
	return &Handler{cfg: cfg}
}

// NewEcho builds an Echo instance with the standard middleware and routes.
func NewEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/dataset", h.LoadDataset)
	api.GET("/cube", h.GetCube)
	api.GET("/schema", h.GetSchema)
	api.GET("/history", h.GetHistory)
	api.POST("/reset", h.Reset)
	api.POST("/aggregate", h.RunAggregate)

	ops := api.Group("/ops")
	ops.POST("/slice", h.ApplySlice)
	ops.POST("/dice", h.ApplyDice)
	ops.POST("/drilldown", h.ApplyDrillDown)
	ops.POST("/drillup", h.ApplyDrillUp)
	ops.POST("/pivot", h.ApplyPivot)
}

// SetCube installs an already-built cube (used by the CLI's --serve mode).
func (h *Handler) SetCube(cube *engine.Cube) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.base = cube
	h.current = cube
	h.history = nil
}

// ============================================================================
// DATASET
// ============================================================================

// LoadDataset ingests a CSV body: parse, infer schema, build the cube.
// Replaces any previously loaded dataset and clears the history.
func (h *Handler) LoadDataset(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	records, headers, err := helpers.ParseCSV(data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	opts := []schema.Option{schema.WithColumnOrder(headers)}
	if h.cfg != nil {
		opts = append(opts, h.cfg.Options()...)
	}
	dims, measures := schema.Infer(records, opts...)
	cube := engine.BuildCube(records, dims, measures)

	h.SetCube(cube)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"totalRecords": cube.Metadata.TotalRecords,
		"dimensions":   len(cube.Dimensions),
		"measures":     len(cube.Measures),
	})
}

// GetCube returns the current cube.
func (h *Handler) GetCube(c echo.Context) error {
	cube, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cube)
}

// GetSchema returns only the current cube's dimensions and measures.
func (h *Handler) GetSchema(c echo.Context) error {
	cube, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"dimensions": cube.Dimensions,
		"measures":   cube.Measures,
	})
}

// GetHistory returns every recorded operation, applied and rejected alike.
func (h *Handler) GetHistory(c echo.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return errNoDataset
	}
	history := make([]engine.Operation, 0, len(h.history))
	history = append(history, h.history...)
	return c.JSON(http.StatusOK, history)
}

// Reset restores the initially built cube and clears the history.
func (h *Handler) Reset(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.base == nil {
		return errNoDataset
	}
	h.current = h.base
	h.history = nil
	return c.JSON(http.StatusOK, h.current)
}

// ============================================================================
// OPERATORS
// ============================================================================

type sliceRequest struct {
	Dimension string       `json:"dimension"`
	Value     engine.Value `json:"value"`
}

// ApplySlice fixes one dimension to a single value.
func (h *Handler) ApplySlice(c echo.Context) error {
	var req sliceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.apply(c, func(cube *engine.Cube) (*engine.Cube, engine.Operation) {
		return engine.Slice(cube, req.Dimension, req.Value)
	})
}

type diceRequest struct {
	Conditions map[string][]engine.Value `json:"conditions"`
}

// ApplyDice fixes one or more dimensions to value sets.
func (h *Handler) ApplyDice(c echo.Context) error {
	var req diceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.apply(c, func(cube *engine.Cube) (*engine.Cube, engine.Operation) {
		return engine.Dice(cube, req.Conditions)
	})
}

type drillRequest struct {
	Dimension string `json:"dimension"`
	Level     string `json:"level"`
}

// ApplyDrillDown moves to finer hierarchy granularity.
func (h *Handler) ApplyDrillDown(c echo.Context) error {
	var req drillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.apply(c, func(cube *engine.Cube) (*engine.Cube, engine.Operation) {
		return engine.DrillDown(cube, req.Dimension, req.Level)
	})
}

// ApplyDrillUp moves to coarser granularity, re-aggregating.
func (h *Handler) ApplyDrillUp(c echo.Context) error {
	var req drillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.apply(c, func(cube *engine.Cube) (*engine.Cube, engine.Operation) {
		return engine.DrillUp(cube, req.Dimension, req.Level)
	})
}

// ApplyPivot re-derives the cube by a new set of axis dimensions.
func (h *Handler) ApplyPivot(c echo.Context) error {
	var req engine.AxisAssignment
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.apply(c, func(cube *engine.Cube) (*engine.Cube, engine.Operation) {
		return engine.Pivot(cube, req)
	})
}

type aggregateRequest struct {
	GroupBy []string `json:"groupBy"`
	Measure string   `json:"measure"`
	Kind    string   `json:"kind"`
}

// RunAggregate runs an ad-hoc aggregation over the current cube's cells
// without replacing the cube.
func (h *Handler) RunAggregate(c echo.Context) error {
	var req aggregateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind, err := engine.ParseAggregation(req.Kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cube, snapErr := h.snapshot()
	if snapErr != nil {
		return snapErr
	}
	cells := engine.Aggregate(cube.Cells, req.GroupBy, req.Measure, kind)
	return c.JSON(http.StatusOK, map[string]interface{}{"cells": cells})
}

// ============================================================================
// INTERNAL
// ============================================================================

var errNoDataset = echo.NewHTTPError(http.StatusServiceUnavailable, "no dataset loaded")

type opResponse struct {
	Cube      *engine.Cube     `json:"cube"`
	Operation engine.Operation `json:"operation"`
}

// apply runs an operator against the current cube, records the operation,
// and advances the current cube only when the operation was applied.
func (h *Handler) apply(c echo.Context, fn func(*engine.Cube) (*engine.Cube, engine.Operation)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return errNoDataset
	}

	next, op := fn(h.current)
	h.history = append(h.history, op)
	if op.Applied {
		h.current = next
	}

	return c.JSON(http.StatusOK, opResponse{Cube: h.current, Operation: op})
}

func (h *Handler) snapshot() (*engine.Cube, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, errNoDataset
	}
	return h.current, nil
}
