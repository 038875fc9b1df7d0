package engine

import "fmt"

// Metric selects which series the model compares.
type Metric string

const (
	MetricDeaths        Metric = "deaths"
	MetricMortalityRate Metric = "mortality_rate"
	MetricSMR           Metric = "smr"
)

// Comparison selects how the current value is judged against history.
type Comparison string

const (
	ComparisonHighest    Comparison = "highest_historical"
	ComparisonAvgPlus1SD Comparison = "avg_plus_1sd"
	ComparisonTrend      Comparison = "increasing_trend"
)

// ModelDefinition is one row of the model table. The twelve window models
// form the full metric × comparison × window grid; model13 is the trend
// special case and ignores WindowMonths.
type ModelDefinition struct {
	ID           string     `json:"id"`
	Number       int        `json:"-"`
	DisplayName  string     `json:"display_name"`
	Metric       Metric     `json:"metric"`
	WindowMonths int        `json:"window_months,omitempty"`
	Comparison   Comparison `json:"comparison"`
}

// IsTrend reports whether the definition is the trend special case.
func (d ModelDefinition) IsTrend() bool {
	return d.Comparison == ComparisonTrend
}

// ShortName is the compact form used in message titles, e.g. "Model 10".
func (d ModelDefinition) ShortName() string {
	return fmt.Sprintf("Model %d", d.Number)
}

var catalog = []ModelDefinition{
	{ID: "model1", Number: 1, DisplayName: "Model 1: Deaths > Highest (3mo)", Metric: MetricDeaths, WindowMonths: 3, Comparison: ComparisonHighest},
	{ID: "model2", Number: 2, DisplayName: "Model 2: Deaths > Highest (6mo)", Metric: MetricDeaths, WindowMonths: 6, Comparison: ComparisonHighest},
	{ID: "model3", Number: 3, DisplayName: "Model 3: Deaths > Avg+1SD (3mo)", Metric: MetricDeaths, WindowMonths: 3, Comparison: ComparisonAvgPlus1SD},
	{ID: "model4", Number: 4, DisplayName: "Model 4: Deaths > Avg+1SD (6mo)", Metric: MetricDeaths, WindowMonths: 6, Comparison: ComparisonAvgPlus1SD},
	{ID: "model5", Number: 5, DisplayName: "Model 5: SMR > Highest (3mo)", Metric: MetricSMR, WindowMonths: 3, Comparison: ComparisonHighest},
	{ID: "model6", Number: 6, DisplayName: "Model 6: SMR > Highest (6mo)", Metric: MetricSMR, WindowMonths: 6, Comparison: ComparisonHighest},
	{ID: "model7", Number: 7, DisplayName: "Model 7: SMR > Avg+1SD (3mo)", Metric: MetricSMR, WindowMonths: 3, Comparison: ComparisonAvgPlus1SD},
	{ID: "model8", Number: 8, DisplayName: "Model 8: SMR > Avg+1SD (6mo)", Metric: MetricSMR, WindowMonths: 6, Comparison: ComparisonAvgPlus1SD},
	{ID: "model9", Number: 9, DisplayName: "Model 9: Mortality % > Highest (3mo)", Metric: MetricMortalityRate, WindowMonths: 3, Comparison: ComparisonHighest},
	{ID: "model10", Number: 10, DisplayName: "Model 10: Mortality % > Highest (6mo)", Metric: MetricMortalityRate, WindowMonths: 6, Comparison: ComparisonHighest},
	{ID: "model11", Number: 11, DisplayName: "Model 11: Mortality % > Avg+1SD (3mo)", Metric: MetricMortalityRate, WindowMonths: 3, Comparison: ComparisonAvgPlus1SD},
	{ID: "model12", Number: 12, DisplayName: "Model 12: Mortality % > Avg+1SD (6mo)", Metric: MetricMortalityRate, WindowMonths: 6, Comparison: ComparisonAvgPlus1SD},
	{ID: "model13", Number: 13, DisplayName: "Model 13: Increasing Trend (3 consecutive months)", Metric: MetricMortalityRate, Comparison: ComparisonTrend},
}

// Models returns the catalog in id order. The slice is a copy; the catalog
// itself is never mutated at runtime.
func Models() []ModelDefinition {
	out := make([]ModelDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves a model id.
func Lookup(id string) (ModelDefinition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return ModelDefinition{}, false
}
