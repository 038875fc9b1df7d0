// Package models defines the core domain entities: monthly mortality
// records, expected-death data, and classified alert results.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Period identifies one calendar month of one hospital's series.
// It serializes as "YYYY-MM" everywhere (JSON, CSV, URLs).
type Period struct {
	Year  int
	Month int
}

// ParsePeriod parses a "YYYY-MM" string.
func ParsePeriod(s string) (Period, error) {
	var p Period
	if _, err := fmt.Sscanf(s, "%4d-%2d", &p.Year, &p.Month); err != nil {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	if err := p.Validate(); err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %v", s, err)
	}
	return p, nil
}

// Validate checks period field constraints.
func (p Period) Validate() error {
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("year %d out of range", p.Year)
	}
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("month %d out of range", p.Month)
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Display renders the period for human-facing messages, e.g. "September 2025".
func (p Period) Display() string {
	if p.Month < 1 || p.Month > 12 {
		return p.String()
	}
	return fmt.Sprintf("%s %d", time.Month(p.Month).String(), p.Year)
}

// Index returns a total ordering key: consecutive months differ by 1.
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

// Before reports whether p is chronologically before other.
func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// IsZero reports whether p is the zero value.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
