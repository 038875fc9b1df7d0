// Package export renders evaluation results as CSV and chat message text,
// and parses the CSV formats accepted by the import command.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/icuwatch/mortalert/internal/models"
)

var resultColumns = []string{
	"hospital_name", "current_period", "deaths", "mortality_rate",
	"smr", "value", "threshold", "status",
}

// WriteResults writes results as CSV. Nullable fields (smr, value,
// threshold) become empty strings. The six-month series and trend details
// are not part of the CSV format.
func WriteResults(w io.Writer, results []models.AlertResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range results {
		r := &results[i]
		row := []string{
			r.HospitalName,
			r.CurrentPeriod.String(),
			strconv.Itoa(r.Deaths),
			formatFloat(r.MortalityRate),
			formatOptional(r.SMR),
			formatOptional(r.Value),
			formatOptional(r.Threshold),
			string(r.Status),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %q: %w", r.HospitalName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadResults parses CSV produced by WriteResults.
func ReadResults(r io.Reader) ([]models.AlertResult, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(resultColumns, ",") {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var results []models.AlertResult
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return results, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		period, err := models.ParsePeriod(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid current_period: %w", line, err)
		}
		deaths, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid deaths: %w", line, err)
		}
		rate, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mortality_rate: %w", line, err)
		}
		smr, err := parseOptional(row[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid smr: %w", line, err)
		}
		value, err := parseOptional(row[5])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", line, err)
		}
		threshold, err := parseOptional(row[6])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid threshold: %w", line, err)
		}
		status := models.Status(row[7])
		if status != models.StatusAlert && status != models.StatusNormal {
			return nil, fmt.Errorf("line %d: invalid status %q", line, row[7])
		}

		results = append(results, models.AlertResult{
			HospitalName:  row[0],
			CurrentPeriod: period,
			Deaths:        deaths,
			MortalityRate: rate,
			SMR:           smr,
			Value:         value,
			Threshold:     threshold,
			Status:        status,
		})
	}
}

// ReadMonthlyRecords parses import CSV with columns
// hospital_name,year,month,total_patients,deaths. The mortality rate is
// computed from the counts.
func ReadMonthlyRecords(r io.Reader) ([]models.MonthlyRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	want := "hospital_name,year,month,total_patients,deaths"
	if strings.Join(header, ",") != want {
		return nil, fmt.Errorf("unexpected header %q, want %q", strings.Join(header, ","), want)
	}

	var records []models.MonthlyRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		nums, err := atoiAll(row[1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := models.NewMonthlyRecord(row[0],
			models.Period{Year: nums[0], Month: nums[1]}, nums[2], nums[3])
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

// ReadExpectedDeaths parses import CSV with columns
// hospital_name,year,month,expected_death_percentage.
func ReadExpectedDeaths(r io.Reader) ([]models.ExpectedDeathInfo, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	want := "hospital_name,year,month,expected_death_percentage"
	if strings.Join(header, ",") != want {
		return nil, fmt.Errorf("unexpected header %q, want %q", strings.Join(header, ","), want)
	}

	var infos []models.ExpectedDeathInfo
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return infos, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		nums, err := atoiAll(row[1:3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pct, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid expected_death_percentage: %w", line, err)
		}
		info := models.ExpectedDeathInfo{
			HospitalName: row[0],
			Period:       models.Period{Year: nums[0], Month: nums[1]},
			Percentage:   pct,
		}
		if err := info.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		infos = append(infos, info)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func atoiAll(fields []string) ([]int, error) {
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		nums[i] = n
	}
	return nums, nil
}
