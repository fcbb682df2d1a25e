package extract

import "billscan/pkg/models"

// Reconcile compares the sum of all emitted line items against the detected
// final total. Every emitted item counts toward the sum, including noisy
// and penalized ones: the guarantee is "no missed items", not "no noisy
// items".
//
// The effective tolerance is the larger of the absolute knob and the
// relative percentage of the detected total (the two knobs combine by max,
// so whichever is looser governs).
func Reconcile(items []models.LineItem, final *models.TotalCandidate, cfg *Config) models.Aggregates {
	var sum float64
	for _, it := range items {
		if it.Amount != nil {
			sum += *it.Amount
		}
	}

	agg := models.Aggregates{LineItemsTotal: sum}

	if final == nil {
		agg.ReconciliationStatus = models.ReconciliationUnreconcilable
		return agg
	}

	agg.DetectedFinalTotal = models.Float64(final.Value)
	agg.Difference = abs(sum - final.Value)

	tolerance := max(cfg.TotalReconciliationTolerance,
		cfg.TotalReconciliationRelativePercent/100*final.Value)
	if agg.Difference <= tolerance {
		agg.ReconciliationStatus = models.ReconciliationMatched
	} else {
		agg.ReconciliationStatus = models.ReconciliationMismatch
	}
	return agg
}
