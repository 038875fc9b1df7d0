// Package engine evaluates the thirteen mortality anomaly models. Each
// evaluation is a stateless pass over the hospitals' monthly series: the
// model definition picks a metric and a comparison, the baseline window
// yields a threshold, and every qualifying hospital is classified as Alert
// or Normal. Hospitals without enough history are omitted, never failed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/icuwatch/mortalert/internal/models"
)

var (
	// ErrUnknownModel marks an unrecognized model id; the whole call fails.
	ErrUnknownModel = errors.New("unknown model")
	// ErrDataUnavailable marks a TimeSeriesStore failure, propagated as-is.
	// Retrying is the caller's concern.
	ErrDataUnavailable = errors.New("time series unavailable")
)

// TimeSeriesStore supplies the engine's inputs. FetchMonthlyRecords returns
// records ordered by hospital and period; an empty hospital name selects all
// hospitals, nil bounds leave the range open. FetchExpectedDeathInfo returns
// nil (not an error) when no expected-death row exists for the period.
type TimeSeriesStore interface {
	FetchMonthlyRecords(ctx context.Context, hospital string, start, end *models.Period) ([]models.MonthlyRecord, error)
	FetchExpectedDeathInfo(ctx context.Context, hospital string, period models.Period) (*models.ExpectedDeathInfo, error)
}

// Engine evaluates models against the store's latest snapshot. It keeps no
// state between calls, so concurrent evaluations are safe.
type Engine struct {
	store TimeSeriesStore
}

func New(store TimeSeriesStore) *Engine {
	return &Engine{store: store}
}

// Evaluation is one model run: the definition, the current period every
// hospital was judged against, and the ordered results.
type Evaluation struct {
	Model         ModelDefinition      `json:"model"`
	CurrentPeriod models.Period        `json:"current_period"`
	Results       []models.AlertResult `json:"results"`
}

// AlertCount returns the number of Alert-status results.
func (ev *Evaluation) AlertCount() int {
	n := 0
	for i := range ev.Results {
		if ev.Results[i].IsAlert() {
			n++
		}
	}
	return n
}

// Alerts returns only the Alert-status results, preserving order.
func (ev *Evaluation) Alerts() []models.AlertResult {
	out := make([]models.AlertResult, 0, ev.AlertCount())
	for _, r := range ev.Results {
		if r.IsAlert() {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate runs one model over every hospital. The current period is the
// latest period available across all hospitals, bounded by end when end is
// non-nil; hospitals without data for that period are skipped so results
// stay comparable.
func (e *Engine) Evaluate(ctx context.Context, modelID string, end *models.Period) (*Evaluation, error) {
	def, ok := Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	records, err := e.store.FetchMonthlyRecords(ctx, "", nil, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	eval := &Evaluation{Model: def}
	if len(records) == 0 {
		return eval, nil
	}
	eval.CurrentPeriod = latestPeriod(records)

	byHospital := groupByHospital(records)
	names := make([]string, 0, len(byHospital))
	for name := range byHospital {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var result *models.AlertResult
		if def.IsTrend() {
			result = evaluateTrend(byHospital[name], eval.CurrentPeriod)
		} else {
			result, err = e.evaluateWindow(ctx, def, byHospital[name], eval.CurrentPeriod)
			if err != nil {
				return nil, err
			}
		}
		if result != nil {
			eval.Results = append(eval.Results, *result)
		}
	}

	sortResults(eval.Results)
	return eval, nil
}

// evaluateWindow classifies one hospital under a window model. A nil result
// means the hospital is excluded: no data for the current period, fewer
// history periods than the window needs, or an undefined threshold.
func (e *Engine) evaluateWindow(ctx context.Context, def ModelDefinition, series []models.MonthlyRecord, current models.Period) (*models.AlertResult, error) {
	cur, history, ok := splitCurrent(series, current)
	if !ok || len(history) < def.WindowMonths {
		return nil, nil
	}
	window := history[len(history)-def.WindowMonths:]

	var values []float64
	var currentValue float64
	var smr *float64

	switch def.Metric {
	case MetricDeaths:
		for _, r := range window {
			values = append(values, float64(r.Deaths))
		}
		currentValue = float64(cur.Deaths)

	case MetricMortalityRate:
		for _, r := range window {
			values = append(values, r.MortalityRate)
		}
		currentValue = cur.MortalityRate

	case MetricSMR:
		expected, err := e.store.FetchExpectedDeathInfo(ctx, cur.HospitalName, cur.Period)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
		if expected == nil {
			return nil, nil
		}
		v := cur.MortalityRate / expected.Percentage
		currentValue = v
		smr = &v

		for _, r := range window {
			exp, err := e.store.FetchExpectedDeathInfo(ctx, r.HospitalName, r.Period)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
			}
			if exp == nil {
				// Periods without expected-death data drop out of this
				// model's baseline only.
				continue
			}
			values = append(values, r.MortalityRate/exp.Percentage)
		}
		if len(values) == 0 {
			return nil, nil
		}
	}

	threshold, ok := def.threshold(ComputeBaseline(values))
	if !ok {
		return nil, nil
	}

	status := models.StatusNormal
	if currentValue > threshold {
		status = models.StatusAlert
	}

	value := currentValue
	return &models.AlertResult{
		HospitalName:  cur.HospitalName,
		CurrentPeriod: current,
		Deaths:        cur.Deaths,
		MortalityRate: cur.MortalityRate,
		SMR:           smr,
		Value:         &value,
		Threshold:     &threshold,
		Status:        status,
		Last6Months:   lastSixMonths(series),
	}, nil
}

// evaluateTrend classifies one hospital under the trend model: Alert when
// the three most recent rates are strictly increasing. Threshold, value and
// SMR stay nil.
func evaluateTrend(series []models.MonthlyRecord, current models.Period) *models.AlertResult {
	cur := series[len(series)-1]
	if cur.Period != current || len(series) < 3 {
		return nil
	}
	r1 := series[len(series)-3]
	r2 := series[len(series)-2]

	status := models.StatusNormal
	if r1.MortalityRate < r2.MortalityRate && r2.MortalityRate < cur.MortalityRate {
		status = models.StatusAlert
	}

	return &models.AlertResult{
		HospitalName:  cur.HospitalName,
		CurrentPeriod: current,
		Deaths:        cur.Deaths,
		MortalityRate: cur.MortalityRate,
		Status:        status,
		Last6Months:   lastSixMonths(series),
		Trend: &models.TrendInfo{
			Period1: r1.Period,
			Period2: r2.Period,
			Period3: cur.Period,
			Rate1:   r1.MortalityRate,
			Rate2:   r2.MortalityRate,
			Rate3:   cur.MortalityRate,
		},
	}
}

func (d ModelDefinition) threshold(b Baseline) (float64, bool) {
	switch d.Comparison {
	case ComparisonHighest:
		return b.HighestHistorical()
	case ComparisonAvgPlus1SD:
		return b.AvgPlus1SD()
	default:
		return 0, false
	}
}

// splitCurrent separates a hospital's chronological series into the current
// record and everything before it. ok is false when the hospital has no
// record for the current period.
func splitCurrent(series []models.MonthlyRecord, current models.Period) (models.MonthlyRecord, []models.MonthlyRecord, bool) {
	last := series[len(series)-1]
	if last.Period != current {
		return models.MonthlyRecord{}, nil, false
	}
	return last, series[:len(series)-1], true
}

// lastSixMonths extracts up to the six most recent points of a series that
// ends at the current period, oldest first, always as mortality rates.
func lastSixMonths(series []models.MonthlyRecord) []models.MortalityPoint {
	start := len(series) - 6
	if start < 0 {
		start = 0
	}
	points := make([]models.MortalityPoint, 0, len(series)-start)
	for _, r := range series[start:] {
		points = append(points, models.MortalityPoint{Period: r.Period, MortalityRate: r.MortalityRate})
	}
	return points
}

func groupByHospital(records []models.MonthlyRecord) map[string][]models.MonthlyRecord {
	out := make(map[string][]models.MonthlyRecord, 64)
	for _, r := range records {
		out[r.HospitalName] = append(out[r.HospitalName], r)
	}
	for _, series := range out {
		sort.Slice(series, func(i, j int) bool {
			return series[i].Period.Before(series[j].Period)
		})
	}
	return out
}

func latestPeriod(records []models.MonthlyRecord) models.Period {
	latest := records[0].Period
	for _, r := range records[1:] {
		if latest.Before(r.Period) {
			latest = r.Period
		}
	}
	return latest
}

// sortResults orders a result set: Alert before Normal, higher compared
// values first within a status, hospital name as the final tie-break.
func sortResults(results []models.AlertResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.Status != b.Status {
			return a.Status == models.StatusAlert
		}
		if a.SortValue() != b.SortValue() {
			return a.SortValue() > b.SortValue()
		}
		return a.HospitalName < b.HospitalName
	})
}
