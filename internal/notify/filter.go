package notify

import (
	"context"
	"fmt"

	"github.com/icuwatch/mortalert/internal/logger"
	"github.com/icuwatch/mortalert/internal/models"
)

// DeathLookup is the slice of the store the delivery filter needs.
type DeathLookup interface {
	FetchMonthlyRecords(ctx context.Context, hospital string, start, end *models.Period) ([]models.MonthlyRecord, error)
}

// FilterByDeathIncrease drops rows whose death count rose by less than
// minIncrease over the previous calendar month. Rows without a
// previous-month record are kept, and minIncrease <= 0 disables the filter
// entirely. Only chat delivery applies this; API and CSV output carry the
// engine's results untouched.
func FilterByDeathIncrease(ctx context.Context, store DeathLookup, results []models.AlertResult, minIncrease int) ([]models.AlertResult, error) {
	if minIncrease <= 0 {
		return results, nil
	}

	kept := make([]models.AlertResult, 0, len(results))
	for i := range results {
		r := results[i]
		prev := r.CurrentPeriod.Prev()
		records, err := store.FetchMonthlyRecords(ctx, r.HospitalName, &prev, &prev)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous month for %q: %w", r.HospitalName, err)
		}
		if len(records) == 0 {
			kept = append(kept, r)
			continue
		}
		increase := r.Deaths - records[0].Deaths
		if increase >= minIncrease {
			kept = append(kept, r)
			continue
		}
		logger.Debug("excluding %s from delivery: deaths %d vs %d in %s (increase %d < %d)",
			r.HospitalName, r.Deaths, records[0].Deaths, prev, increase, minIncrease)
	}
	return kept, nil
}
