package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/export"
	"github.com/icuwatch/mortalert/internal/models"
	"github.com/icuwatch/mortalert/internal/notify"
)

// GetModels handles GET /api/v1/models.
func (c *Controller) GetModels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, engine.Models())
}

// GetModelResults handles GET /api/v1/models/:id/results?end=YYYY-MM.
func (c *Controller) GetModelResults(ctx echo.Context) error {
	end, err := periodParam(ctx, "end")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid end parameter", http.StatusBadRequest)
	}
	eval, err := c.evaluate(ctx.Request().Context(), ctx.Param("id"), end)
	if err != nil {
		return c.evaluationError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, eval)
}

// GetModelResultsCSV handles GET /api/v1/models/:id/results.csv?end=YYYY-MM.
func (c *Controller) GetModelResultsCSV(ctx echo.Context) error {
	end, err := periodParam(ctx, "end")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid end parameter", http.StatusBadRequest)
	}
	modelID := ctx.Param("id")
	eval, err := c.evaluate(ctx.Request().Context(), modelID, end)
	if err != nil {
		return c.evaluationError(ctx, err)
	}

	ctx.Response().Header().Set(echo.HeaderContentType, "text/csv")
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%s_results.csv", modelID))
	ctx.Response().WriteHeader(http.StatusOK)
	return export.WriteResults(ctx.Response(), eval.Results)
}

// NotifyResponse reports one delivery attempt.
type NotifyResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	HospitalsCount int    `json:"hospitals_count"`
}

// NotifyModel handles POST /api/v1/models/:id/notify. It evaluates the
// model, applies the death-increase delivery filter and sends the chat
// message.
func (c *Controller) NotifyModel(ctx echo.Context) error {
	end, err := periodParam(ctx, "end")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid end parameter", http.StatusBadRequest)
	}
	modelID := ctx.Param("id")
	eval, err := c.evaluate(ctx.Request().Context(), modelID, end)
	if err != nil {
		return c.evaluationError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	alerts, err := notify.FilterByDeathIncrease(reqCtx, c.store, eval.Alerts(), c.cfg.Alerts.MinDeathIncrease)
	if err != nil {
		return c.HandleError(ctx, err, "Delivery filter failed", http.StatusBadGateway)
	}

	body := export.AlertMessage(eval.Model, eval.CurrentPeriod, alerts, time.Now())
	sendCtx, cancel := context.WithTimeout(reqCtx, c.cfg.Alerts.SendTimeout)
	defer cancel()
	if err := c.notifier.Send(sendCtx, body); err != nil {
		return ctx.JSON(http.StatusBadGateway, NotifyResponse{
			Success:        false,
			Message:        fmt.Sprintf("Failed to send alert for %s: %v", modelID, err),
			HospitalsCount: len(alerts),
		})
	}

	message := fmt.Sprintf("Alert sent successfully for %s. %d hospitals with alerts.", modelID, len(alerts))
	if len(alerts) == 0 {
		message = fmt.Sprintf("Alert sent successfully for %s. No hospitals meet the threshold criteria.", modelID)
	}
	return ctx.JSON(http.StatusOK, NotifyResponse{
		Success:        true,
		Message:        message,
		HospitalsCount: len(alerts),
	})
}

// GetHospitals handles GET /api/v1/hospitals.
func (c *Controller) GetHospitals(ctx echo.Context) error {
	names, err := c.store.Hospitals(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list hospitals", http.StatusBadGateway)
	}
	return ctx.JSON(http.StatusOK, names)
}

// SeriesStatistics summarizes the mortality rates of a fetched range.
type SeriesStatistics struct {
	AvgMortalityRate float64 `json:"avg_mortality_rate"`
	StdDeviation     float64 `json:"std_deviation"`
	Threshold3SD     float64 `json:"threshold_3sd"`
}

// MortalitySeriesResponse is the body of the hospital mortality endpoint.
type MortalitySeriesResponse struct {
	HospitalName string                 `json:"hospital_name"`
	MonthlyData  []models.MonthlyRecord `json:"monthly_data"`
	Statistics   *SeriesStatistics      `json:"statistics"`
}

// GetHospitalMortality handles
// GET /api/v1/hospitals/:name/mortality?start=YYYY-MM&end=YYYY-MM.
// Statistics are computed from the filtered range; they are null when the
// range is empty.
func (c *Controller) GetHospitalMortality(ctx echo.Context) error {
	start, err := periodParam(ctx, "start")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid start parameter", http.StatusBadRequest)
	}
	end, err := periodParam(ctx, "end")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid end parameter", http.StatusBadRequest)
	}

	name := ctx.Param("name")
	records, err := c.store.FetchMonthlyRecords(ctx.Request().Context(), name, start, end)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load mortality data", http.StatusBadGateway)
	}

	resp := MortalitySeriesResponse{HospitalName: name, MonthlyData: records}
	if len(records) > 0 {
		rates := make([]float64, len(records))
		for i := range records {
			rates[i] = records[i].MortalityRate
		}
		b := engine.ComputeBaseline(rates)
		resp.Statistics = &SeriesStatistics{
			AvgMortalityRate: b.Mean,
			StdDeviation:     b.StdDev,
			Threshold3SD:     b.Mean + 3*b.StdDev,
		}
	}
	if resp.MonthlyData == nil {
		resp.MonthlyData = []models.MonthlyRecord{}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// Healthz handles GET /healthz with a storage probe.
func (c *Controller) Healthz(ctx echo.Context) error {
	latest, err := c.store.LatestPeriod(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Storage unavailable", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"latest_period": latest,
	})
}

// evaluationError maps engine errors onto HTTP statuses.
func (c *Controller) evaluationError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrUnknownModel):
		return c.HandleError(ctx, err, "Unknown model", http.StatusNotFound)
	case errors.Is(err, engine.ErrDataUnavailable):
		return c.HandleError(ctx, err, "Mortality data unavailable", http.StatusBadGateway)
	default:
		return c.HandleError(ctx, err, "Evaluation failed", http.StatusInternalServerError)
	}
}

// periodParam parses an optional YYYY-MM query parameter.
func periodParam(ctx echo.Context, name string) (*models.Period, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return &p, nil
}
