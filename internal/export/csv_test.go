package export

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/icuwatch/mortalert/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestWriteResults_Format(t *testing.T) {
	results := []models.AlertResult{
		{
			HospitalName:  "Trend Unit",
			CurrentPeriod: models.Period{Year: 2025, Month: 9},
			Deaths:        3,
			MortalityRate: 1.5,
			Status:        models.StatusAlert,
		},
	}

	var buf bytes.Buffer
	if err := WriteResults(&buf, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	want := "hospital_name,current_period,deaths,mortality_rate,smr,value,threshold,status\n" +
		"Trend Unit,2025-09,3,1.5,,,,Alert\n"
	if buf.String() != want {
		t.Errorf("csv output:\ngot  %q\nwant %q", buf.String(), want)
	}
}

func TestWriteReadResults_RoundTrip(t *testing.T) {
	results := []models.AlertResult{
		{
			HospitalName:  "Alpha",
			CurrentPeriod: models.Period{Year: 2025, Month: 9},
			Deaths:        42,
			MortalityRate: 4.2,
			SMR:           fptr(1.75),
			Value:         fptr(1.75),
			Threshold:     fptr(1.25),
			Status:        models.StatusAlert,
		},
		{
			HospitalName:  "Beta",
			CurrentPeriod: models.Period{Year: 2025, Month: 9},
			Deaths:        7,
			MortalityRate: 0.7,
			Value:         fptr(0.7),
			Threshold:     fptr(2.1),
			Status:        models.StatusNormal,
		},
	}

	var buf bytes.Buffer
	if err := WriteResults(&buf, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	got, err := ReadResults(&buf)
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if !reflect.DeepEqual(got, results) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, results)
	}
}

func TestWriteReadResults_DropsSeries(t *testing.T) {
	// The six-month series and trend details have no CSV columns.
	results := []models.AlertResult{
		{
			HospitalName:  "Alpha",
			CurrentPeriod: models.Period{Year: 2025, Month: 9},
			Deaths:        5,
			MortalityRate: 2.5,
			Status:        models.StatusNormal,
			Last6Months: []models.MortalityPoint{
				{Period: models.Period{Year: 2025, Month: 9}, MortalityRate: 2.5},
			},
			Trend: &models.TrendInfo{},
		},
	}

	var buf bytes.Buffer
	if err := WriteResults(&buf, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	got, err := ReadResults(&buf)
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Last6Months != nil || got[0].Trend != nil {
		t.Error("series fields should not survive a CSV round trip")
	}
	if got[0].HospitalName != "Alpha" || got[0].MortalityRate != 2.5 {
		t.Errorf("scalar fields mangled: %+v", got[0])
	}
}

func TestReadResults_Errors(t *testing.T) {
	header := "hospital_name,current_period,deaths,mortality_rate,smr,value,threshold,status\n"
	tests := []struct {
		name  string
		input string
	}{
		{"bad header", "name,period\nAlpha,2025-09\n"},
		{"bad period", header + "Alpha,September,5,2.5,,,,Normal\n"},
		{"bad deaths", header + "Alpha,2025-09,many,2.5,,,,Normal\n"},
		{"bad rate", header + "Alpha,2025-09,5,high,,,,Normal\n"},
		{"bad smr", header + "Alpha,2025-09,5,2.5,x,,,Normal\n"},
		{"bad status", header + "Alpha,2025-09,5,2.5,,,,Weird\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadResults(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReadMonthlyRecords(t *testing.T) {
	input := "hospital_name,year,month,total_patients,deaths\n" +
		"Alpha,2025,8,1000,30\n" +
		"Beta,2025,9,500,5\n"
	records, err := ReadMonthlyRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadMonthlyRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Period != (models.Period{Year: 2025, Month: 8}) {
		t.Errorf("period: got %s", records[0].Period)
	}
	if records[0].MortalityRate != 3.0 {
		t.Errorf("rate not computed: got %v", records[0].MortalityRate)
	}
	if records[1].HospitalName != "Beta" || records[1].Deaths != 5 {
		t.Errorf("second record: %+v", records[1])
	}
}

func TestReadMonthlyRecords_Invalid(t *testing.T) {
	header := "hospital_name,year,month,total_patients,deaths\n"
	tests := []struct {
		name  string
		input string
	}{
		{"bad header", "a,b\nAlpha,1\n"},
		{"bad month", header + "Alpha,2025,13,100,1\n"},
		{"deaths exceed total", header + "Alpha,2025,9,100,200\n"},
		{"bad number", header + "Alpha,2025,9,x,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadMonthlyRecords(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReadExpectedDeaths(t *testing.T) {
	input := "hospital_name,year,month,expected_death_percentage\n" +
		"Alpha,2025,9,2.8\n"
	infos, err := ReadExpectedDeaths(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadExpectedDeaths: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d rows, want 1", len(infos))
	}
	if infos[0].Percentage != 2.8 {
		t.Errorf("percentage: got %v, want 2.8", infos[0].Percentage)
	}

	bad := "hospital_name,year,month,expected_death_percentage\n" +
		"Alpha,2025,9,0\n"
	if _, err := ReadExpectedDeaths(strings.NewReader(bad)); err == nil {
		t.Error("expected error for zero percentage")
	}
}
