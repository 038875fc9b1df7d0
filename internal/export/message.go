package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/icuwatch/mortalert/internal/engine"
	"github.com/icuwatch/mortalert/internal/models"
)

// AlertMessage renders the chat notification for one evaluation. Only rows
// already selected by the caller appear; pass the alert subset, optionally
// filtered. An empty slice produces the all-clear message.
func AlertMessage(model engine.ModelDefinition, period models.Period, alerts []models.AlertResult, now time.Time) string {
	stamp := now.Format("2006-01-02 15:04:05")
	if len(alerts) == 0 {
		return fmt.Sprintf(
			"✅ *Quality Alert - %s*\n*Period:* %s\n*Alert Date:* %s\n\nNo hospital has a mortality rate that meets the set threshold.",
			model.ShortName(), period.Display(), stamp)
	}

	parts := []string{
		fmt.Sprintf("🚨 *Quality Alert - %s*", model.ShortName()),
		fmt.Sprintf("*Period:* %s", period.Display()),
		fmt.Sprintf("*Alert Date:* %s", stamp),
		"",
		fmt.Sprintf("*Hospitals with Alerts: %d*", len(alerts)),
		"",
	}

	totalDeaths := 0
	sumRate := 0.0
	for i := range alerts {
		r := &alerts[i]
		totalDeaths += r.Deaths
		sumRate += r.MortalityRate

		parts = append(parts,
			fmt.Sprintf("*%d. %s*", i+1, r.HospitalName),
			fmt.Sprintf("   • This Month Mortality Rate: *%.2f%%*", r.MortalityRate),
			fmt.Sprintf("   • This Month Deaths: *%d*", r.Deaths),
		)
		if r.Threshold != nil {
			parts = append(parts, fmt.Sprintf("   • Threshold: %.2f%%", *r.Threshold))
		}
		if r.SMR != nil {
			parts = append(parts, fmt.Sprintf("   • SMR: %.2f", *r.SMR))
		}
		if r.Trend != nil {
			parts = append(parts, fmt.Sprintf("   • Trend: %s: %.2f%%, %s: %.2f%%, %s: %.2f%%",
				r.Trend.Period1, r.Trend.Rate1,
				r.Trend.Period2, r.Trend.Rate2,
				r.Trend.Period3, r.Trend.Rate3))
		}
		if len(r.Last6Months) > 0 {
			points := make([]string, len(r.Last6Months))
			for j, m := range r.Last6Months {
				points[j] = fmt.Sprintf("%s: %.2f%%", m.Period, m.MortalityRate)
			}
			parts = append(parts, "   • Last 6 Months: "+strings.Join(points, ", "))
		}
		parts = append(parts, "")
	}

	parts = append(parts,
		"---",
		"*Summary:*",
		fmt.Sprintf("• Total Hospitals with Alerts: %d", len(alerts)),
		fmt.Sprintf("• Total Deaths This Month: %d", totalDeaths),
		fmt.Sprintf("• Average Mortality Rate: %.2f%%", sumRate/float64(len(alerts))),
	)
	return strings.Join(parts, "\n")
}
