package models

import (
	"errors"
	"fmt"
)

// MonthlyRecord is one hospital-month of mortality data. MortalityRate is
// always derived from Deaths and TotalPatients; it is never persisted on
// its own.
type MonthlyRecord struct {
	HospitalName  string  `json:"hospital_name"`
	Period        Period  `json:"period"`
	TotalPatients int     `json:"total_patients"`
	Deaths        int     `json:"deaths"`
	MortalityRate float64 `json:"mortality_rate"`
}

// NewMonthlyRecord builds a record with its mortality rate computed from
// the counts.
func NewMonthlyRecord(hospital string, period Period, totalPatients, deaths int) MonthlyRecord {
	return MonthlyRecord{
		HospitalName:  hospital,
		Period:        period,
		TotalPatients: totalPatients,
		Deaths:        deaths,
		MortalityRate: Rate(deaths, totalPatients),
	}
}

// Rate computes a mortality rate percentage from raw counts. Zero patients
// yields 0, not NaN.
func Rate(deaths, totalPatients int) float64 {
	if totalPatients == 0 {
		return 0
	}
	return 100 * float64(deaths) / float64(totalPatients)
}

// Validate checks record field constraints.
func (r *MonthlyRecord) Validate() error {
	if r.HospitalName == "" {
		return errors.New("hospital name must not be empty")
	}
	if err := r.Period.Validate(); err != nil {
		return fmt.Errorf("period: %v", err)
	}
	if r.TotalPatients < 0 {
		return errors.New("total patients must not be negative")
	}
	if r.Deaths < 0 {
		return errors.New("deaths must not be negative")
	}
	if r.Deaths > r.TotalPatients {
		return errors.New("deaths must not exceed total patients")
	}
	return nil
}

// ExpectedDeathInfo carries the expected death percentage for one
// hospital-month, consumed only by SMR models.
type ExpectedDeathInfo struct {
	HospitalName string  `json:"hospital_name"`
	Period       Period  `json:"period"`
	Percentage   float64 `json:"expected_death_percentage"`
}

// Validate checks expected-death field constraints.
func (e *ExpectedDeathInfo) Validate() error {
	if e.HospitalName == "" {
		return errors.New("hospital name must not be empty")
	}
	if err := e.Period.Validate(); err != nil {
		return fmt.Errorf("period: %v", err)
	}
	if e.Percentage <= 0 {
		return errors.New("expected death percentage must be positive")
	}
	return nil
}
