package extract

import (
	"testing"

	"billscan/pkg/models"
)

func itemWithAmount(v float64) models.LineItem {
	return models.LineItem{Description: "item", Amount: models.Float64(v)}
}

func TestReconcileMatchedWithinAbsoluteTolerance(t *testing.T) {
	cfg := DefaultConfig()
	items := []models.LineItem{itemWithAmount(600), itemWithAmount(397)}
	final := &models.TotalCandidate{Value: 1000}

	agg := Reconcile(items, final, &cfg)
	if agg.ReconciliationStatus != models.ReconciliationMatched {
		t.Errorf("status = %s, want MATCHED (difference %v)", agg.ReconciliationStatus, agg.Difference)
	}
	if agg.LineItemsTotal != 997 {
		t.Errorf("sum = %v", agg.LineItemsTotal)
	}
	if agg.Difference != 3 {
		t.Errorf("difference = %v", agg.Difference)
	}
}

func TestReconcileRelativeToleranceGovernsLargeTotals(t *testing.T) {
	// 0.5% of 10,000 is 50, looser than the absolute 5; a difference of 40
	// still matches.
	cfg := DefaultConfig()
	items := []models.LineItem{itemWithAmount(9960)}
	final := &models.TotalCandidate{Value: 10000}

	agg := Reconcile(items, final, &cfg)
	if agg.ReconciliationStatus != models.ReconciliationMatched {
		t.Errorf("status = %s, want MATCHED", agg.ReconciliationStatus)
	}
}

func TestReconcileMismatch(t *testing.T) {
	cfg := DefaultConfig()
	items := []models.LineItem{itemWithAmount(700)}
	final := &models.TotalCandidate{Value: 1000}

	agg := Reconcile(items, final, &cfg)
	if agg.ReconciliationStatus != models.ReconciliationMismatch {
		t.Errorf("status = %s, want MISMATCH", agg.ReconciliationStatus)
	}
	if agg.Difference != 300 {
		t.Errorf("difference = %v", agg.Difference)
	}
}

func TestReconcileUnreconcilableWithoutTotal(t *testing.T) {
	cfg := DefaultConfig()
	agg := Reconcile([]models.LineItem{itemWithAmount(700)}, nil, &cfg)
	if agg.ReconciliationStatus != models.ReconciliationUnreconcilable {
		t.Errorf("status = %s, want UNRECONCILABLE", agg.ReconciliationStatus)
	}
	if agg.DetectedFinalTotal != nil {
		t.Error("detected total should be nil")
	}
}

func TestReconcileRoundTrip(t *testing.T) {
	// Feeding the emitted items back through reconciliation reproduces the
	// same aggregates.
	cfg := DefaultConfig()
	result := New(cfg).Extract(models.TokenSet{Tokens: fullBillTokens()})
	if result.Bill == nil {
		t.Fatal("nil bill")
	}

	first := result.Bill.Aggregates
	again := Reconcile(result.Bill.LineItems, result.Bill.FinalTotal, &cfg)
	if again.LineItemsTotal != first.LineItemsTotal ||
		again.Difference != first.Difference ||
		again.ReconciliationStatus != first.ReconciliationStatus {
		t.Errorf("round trip aggregates %+v != %+v", again, first)
	}
}

func TestReconcileSkipsNilAmounts(t *testing.T) {
	cfg := DefaultConfig()
	items := []models.LineItem{
		itemWithAmount(500),
		{Description: "unpriced"},
	}
	agg := Reconcile(items, &models.TotalCandidate{Value: 500}, &cfg)
	if agg.LineItemsTotal != 500 {
		t.Errorf("sum = %v, want 500", agg.LineItemsTotal)
	}
	if agg.ReconciliationStatus != models.ReconciliationMatched {
		t.Errorf("status = %s", agg.ReconciliationStatus)
	}
}
