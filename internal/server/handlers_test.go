package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/icuwatch/mortalert/internal/config"
	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/models"
	"github.com/icuwatch/mortalert/internal/notify"
	"github.com/icuwatch/mortalert/internal/storage"
)

type captureNotifier struct {
	bodies []string
	err    error
}

func (c *captureNotifier) Send(_ context.Context, body string) error {
	if c.err != nil {
		return c.err
	}
	c.bodies = append(c.bodies, body)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr:      ":0",
			ShutdownTimeout: time.Second,
		},
		Alerts: config.AlertsConfig{
			Backend:        "none",
			MaxRetries:     1,
			RetryDelayBase: time.Millisecond,
			SendTimeout:    time.Second,
			DefaultModel:   "model10",
		},
		Metrics: config.MetricsConfig{Enabled: true},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestController(t *testing.T, n notify.Notifier, cfg *config.Config) (*Controller, *storage.Storage) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if cfg == nil {
		cfg = testConfig()
	}
	if n == nil {
		n = notify.Disabled{}
	}
	ctl, err := New(store, engine.New(store), n, cfg)
	if err != nil {
		t.Fatalf("failed to build controller: %v", err)
	}
	return ctl, store
}

// seedHospitals loads five months (2025-05 through 2025-09) for two
// hospitals. Under model1 (deaths over the highest of the prior three
// months) City General alerts in 2025-09 and Riverside does not.
func seedHospitals(t *testing.T, store *storage.Storage) {
	t.Helper()
	deaths := map[string][]int{
		"City General": {2, 2, 3, 4, 10},
		"Riverside":    {5, 5, 5, 5, 4},
	}
	for name, series := range deaths {
		for i, d := range series {
			rec := models.NewMonthlyRecord(name, models.Period{Year: 2025, Month: 5 + i}, 100, d)
			if err := store.UpsertMonthlyRecord(context.Background(), &rec); err != nil {
				t.Fatalf("failed to seed %s: %v", name, err)
			}
		}
	}
}

func doRequest(ctl *Controller, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	ctl.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestGetModels(t *testing.T) {
	ctl, _ := newTestController(t, nil, nil)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var defs []engine.ModelDefinition
	decodeJSON(t, rec, &defs)
	if len(defs) != 13 {
		t.Fatalf("expected 13 models, got %d", len(defs))
	}
	if defs[0].ID != "model1" || defs[12].ID != "model13" {
		t.Errorf("unexpected catalog bounds: %s .. %s", defs[0].ID, defs[12].ID)
	}
}

func TestGetModelResults(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var eval engine.Evaluation
	decodeJSON(t, rec, &eval)
	if got := eval.CurrentPeriod.String(); got != "2025-09" {
		t.Errorf("expected current period 2025-09, got %s", got)
	}
	if len(eval.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(eval.Results))
	}
	if eval.Results[0].HospitalName != "City General" || eval.Results[0].Status != models.StatusAlert {
		t.Errorf("expected City General alert first, got %+v", eval.Results[0])
	}
	if eval.Results[1].HospitalName != "Riverside" || eval.Results[1].Status != models.StatusNormal {
		t.Errorf("expected Riverside normal second, got %+v", eval.Results[1])
	}
}

func TestGetModelResults_EndParam(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results?end=2025-08")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var eval engine.Evaluation
	decodeJSON(t, rec, &eval)
	if got := eval.CurrentPeriod.String(); got != "2025-08" {
		t.Errorf("expected current period 2025-08, got %s", got)
	}
	// City General: August deaths 4 against a May-July high of 3.
	if len(eval.Results) == 0 || eval.Results[0].HospitalName != "City General" || !eval.Results[0].IsAlert() {
		t.Errorf("expected City General alert for August, got %+v", eval.Results)
	}
}

func TestGetModelResults_UnknownModel(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models/model99/results")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp ErrorResponse
	decodeJSON(t, rec, &resp)
	if resp.Message != "Unknown model" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestGetModelResults_BadEndParam(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results?end=banana")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetModelResultsCSV(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=model1_results.csv" {
		t.Errorf("unexpected disposition %q", cd)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "hospital_name,current_period,deaths,mortality_rate,smr,value,threshold,status\n") {
		t.Errorf("unexpected CSV header: %q", body)
	}
	if !strings.Contains(body, "City General,2025-09,10,") {
		t.Errorf("expected City General row, got %q", body)
	}
}

func TestGetHospitals(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/hospitals")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var names []string
	decodeJSON(t, rec, &names)
	if len(names) != 2 || names[0] != "City General" || names[1] != "Riverside" {
		t.Errorf("unexpected hospitals %v", names)
	}
}

func TestGetHospitalMortality(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/hospitals/City%20General/mortality?start=2025-05&end=2025-07")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp MortalitySeriesResponse
	decodeJSON(t, rec, &resp)
	if resp.HospitalName != "City General" {
		t.Errorf("unexpected hospital %q", resp.HospitalName)
	}
	if len(resp.MonthlyData) != 3 {
		t.Fatalf("expected 3 months, got %d", len(resp.MonthlyData))
	}
	if resp.Statistics == nil {
		t.Fatal("expected statistics for a non-empty range")
	}
	// Rates 2%, 2%, 3%: mean 7/3, population stddev sqrt(2)/3.
	wantMean := 7.0 / 3.0
	wantStd := math.Sqrt2 / 3.0
	if math.Abs(resp.Statistics.AvgMortalityRate-wantMean) > 1e-9 {
		t.Errorf("avg = %v, want %v", resp.Statistics.AvgMortalityRate, wantMean)
	}
	if math.Abs(resp.Statistics.StdDeviation-wantStd) > 1e-9 {
		t.Errorf("std = %v, want %v", resp.Statistics.StdDeviation, wantStd)
	}
	if math.Abs(resp.Statistics.Threshold3SD-(wantMean+3*wantStd)) > 1e-9 {
		t.Errorf("threshold = %v, want %v", resp.Statistics.Threshold3SD, wantMean+3*wantStd)
	}
}

func TestGetHospitalMortality_EmptyRange(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/hospitals/Nowhere/mortality")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp MortalitySeriesResponse
	decodeJSON(t, rec, &resp)
	if len(resp.MonthlyData) != 0 {
		t.Errorf("expected no data, got %d rows", len(resp.MonthlyData))
	}
	if resp.Statistics != nil {
		t.Errorf("expected null statistics, got %+v", resp.Statistics)
	}
}

func TestHealthz(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status       string         `json:"status"`
		LatestPeriod *models.Period `json:"latest_period"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if resp.LatestPeriod == nil || resp.LatestPeriod.String() != "2025-09" {
		t.Errorf("unexpected latest period %v", resp.LatestPeriod)
	}
}

func TestNotifyModel(t *testing.T) {
	sink := &captureNotifier{}
	ctl, store := newTestController(t, sink, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodPost, "/api/v1/models/model1/notify")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp NotifyResponse
	decodeJSON(t, rec, &resp)
	if !resp.Success || resp.HospitalsCount != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message != "Alert sent successfully for model1. 1 hospitals with alerts." {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(sink.bodies) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(sink.bodies))
	}
	if !strings.Contains(sink.bodies[0], "🚨 *Quality Alert - Model 1*") {
		t.Errorf("unexpected body %q", sink.bodies[0])
	}
	if !strings.Contains(sink.bodies[0], "*1. City General*") {
		t.Errorf("expected City General entry, got %q", sink.bodies[0])
	}
}

func TestNotifyModel_DeathIncreaseFilter(t *testing.T) {
	sink := &captureNotifier{}
	cfg := testConfig()
	// City General went from 4 to 10 deaths; demand more than that.
	cfg.Alerts.MinDeathIncrease = 100
	ctl, store := newTestController(t, sink, cfg)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodPost, "/api/v1/models/model1/notify")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp NotifyResponse
	decodeJSON(t, rec, &resp)
	if !resp.Success || resp.HospitalsCount != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message != "Alert sent successfully for model1. No hospitals meet the threshold criteria." {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(sink.bodies) != 1 || !strings.Contains(sink.bodies[0], "No hospital has a mortality rate that meets the set threshold.") {
		t.Errorf("expected all-clear delivery, got %v", sink.bodies)
	}
}

func TestNotifyModel_SendFailure(t *testing.T) {
	sink := &captureNotifier{err: errors.New("webhook down")}
	ctl, store := newTestController(t, sink, nil)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodPost, "/api/v1/models/model1/notify")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp NotifyResponse
	decodeJSON(t, rec, &resp)
	if resp.Success {
		t.Errorf("expected failure response, got %+v", resp)
	}
}

func TestResultCache(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CacheTTL = time.Minute
	ctl, store := newTestController(t, nil, cfg)
	seedHospitals(t, store)

	rec := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var first engine.Evaluation
	decodeJSON(t, rec, &first)
	if first.AlertCount() != 1 {
		t.Fatalf("expected 1 alert, got %d", first.AlertCount())
	}

	// A new alerting row must not show up while the cached entry lives.
	rec2 := models.NewMonthlyRecord("Riverside", models.Period{Year: 2025, Month: 9}, 100, 50)
	if err := store.UpsertMonthlyRecord(context.Background(), &rec2); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	cached := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results")
	var second engine.Evaluation
	decodeJSON(t, cached, &second)
	if second.AlertCount() != 1 {
		t.Errorf("expected cached result with 1 alert, got %d", second.AlertCount())
	}

	// A different cache key sees the fresh data.
	fresh := doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results?end=2025-09")
	var third engine.Evaluation
	decodeJSON(t, fresh, &third)
	if third.AlertCount() != 2 {
		t.Errorf("expected fresh result with 2 alerts, got %d", third.AlertCount())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ctl, store := newTestController(t, nil, nil)
	seedHospitals(t, store)

	doRequest(ctl, http.MethodGet, "/api/v1/models/model1/results")

	rec := doRequest(ctl, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `evaluations_total{model="model1"} 1`) {
		t.Errorf("expected evaluation counter in metrics output: %q", body)
	}
	if !strings.Contains(body, `alert_hospitals{model="model1"} 1`) {
		t.Errorf("expected alert gauge in metrics output: %q", body)
	}
}
