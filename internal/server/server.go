// Package server exposes model evaluations, hospital series data and alert
// delivery over an HTTP API.
package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icuwatch/mortalert/internal/config"
	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/metrics"
	"github.com/icuwatch/mortalert/internal/models"
	"github.com/icuwatch/mortalert/internal/notify"
)

// Store is the persistence surface the API needs: everything the engine
// reads, plus the catalog queries handlers serve directly.
type Store interface {
	engine.TimeSeriesStore
	Hospitals(ctx context.Context) ([]string, error)
	LatestPeriod(ctx context.Context) (*models.Period, error)
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	store    Store
	engine   *engine.Engine
	notifier notify.Notifier
	cfg      *config.Config

	resultCache *cache.Cache // nil when response caching is disabled
	metrics     *metrics.EvaluationMetrics
}

// New creates the API controller and registers all routes.
func New(store Store, eng *engine.Engine, notifier notify.Notifier, cfg *config.Config) (*Controller, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:     e,
		store:    store,
		engine:   eng,
		notifier: notifier,
		cfg:      cfg,
	}

	if ttl := cfg.Server.CacheTTL; ttl > 0 {
		c.resultCache = cache.New(ttl, 2*ttl)
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		m, err := metrics.NewEvaluationMetrics(registry)
		if err != nil {
			return nil, err
		}
		c.metrics = m
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	g := c.Echo.Group("/api/v1")
	g.GET("/models", c.GetModels)
	g.GET("/models/:id/results", c.GetModelResults)
	g.GET("/models/:id/results.csv", c.GetModelResultsCSV)
	g.POST("/models/:id/notify", c.NotifyModel)
	g.GET("/hospitals", c.GetHospitals)
	g.GET("/hospitals/:name/mortality", c.GetHospitalMortality)

	c.Echo.GET("/healthz", c.Healthz)
}

// Start begins serving on addr and blocks until the server stops.
func (c *Controller) Start(addr string) error {
	return c.Echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HandleError logs err and writes the error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	logger.Error("API error: %s: %v (method=%s path=%s)",
		message, err, ctx.Request().Method, ctx.Request().URL.Path)
	return ctx.JSON(code, ErrorResponse{Error: err.Error(), Message: message, Code: code})
}

// evaluate runs one model through the cache, the engine and the metrics.
func (c *Controller) evaluate(reqCtx context.Context, modelID string, end *models.Period) (*engine.Evaluation, error) {
	key := modelID + "|latest"
	if end != nil {
		key = modelID + "|" + end.String()
	}
	if c.resultCache != nil {
		if cached, found := c.resultCache.Get(key); found {
			if eval, ok := cached.(*engine.Evaluation); ok {
				return eval, nil
			}
		}
	}

	start := time.Now()
	eval, err := c.engine.Evaluate(reqCtx, modelID, end)
	if c.metrics != nil {
		c.metrics.RecordEvaluation(modelID)
		c.metrics.ObserveEvaluationDuration(modelID, time.Since(start).Seconds())
		if err != nil {
			c.metrics.RecordEvaluationError(modelID)
		} else {
			c.metrics.SetAlertHospitals(modelID, eval.AlertCount())
		}
	}
	if err != nil {
		return nil, err
	}

	if c.resultCache != nil {
		c.resultCache.Set(key, eval, cache.DefaultExpiration)
	}
	return eval, nil
}
