package models

// Status classifies a hospital's current period against its threshold.
type Status string

const (
	StatusAlert  Status = "Alert"
	StatusNormal Status = "Normal"
)

// MortalityPoint is one period's mortality rate, used for the trailing
// six-month series attached to every result.
type MortalityPoint struct {
	Period        Period  `json:"period"`
	MortalityRate float64 `json:"mortality_rate"`
}

// TrendInfo carries the three consecutive rates inspected by the trend
// model, oldest first.
type TrendInfo struct {
	Period1 Period  `json:"period1"`
	Period2 Period  `json:"period2"`
	Period3 Period  `json:"period3"`
	Rate1   float64 `json:"rate1"`
	Rate2   float64 `json:"rate2"`
	Rate3   float64 `json:"rate3"`
}

// AlertResult is one hospital's evaluation outcome for one model. SMR,
// Value and Threshold are nil when the model does not define them (the
// trend model has no threshold; SMR is set only by SMR models).
type AlertResult struct {
	HospitalName  string           `json:"hospital_name"`
	CurrentPeriod Period           `json:"current_period"`
	Deaths        int              `json:"deaths"`
	MortalityRate float64          `json:"mortality_rate"`
	SMR           *float64         `json:"smr,omitempty"`
	Value         *float64         `json:"value,omitempty"`
	Threshold     *float64         `json:"threshold,omitempty"`
	Status        Status           `json:"status"`
	Last6Months   []MortalityPoint `json:"last_6_months_mortality"`
	Trend         *TrendInfo       `json:"trend_info,omitempty"`
}

// IsAlert reports whether the result crossed its model's threshold.
func (r *AlertResult) IsAlert() bool {
	return r.Status == StatusAlert
}

// SortValue is the ordering key within a status group: the compared metric
// value for threshold models, the current mortality rate for the trend model.
func (r *AlertResult) SortValue() float64 {
	if r.Value != nil {
		return *r.Value
	}
	return r.MortalityRate
}
