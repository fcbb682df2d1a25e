package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"billscan/pkg/models"
)

func sampleResult() models.ExtractionResult {
	idx := 3
	return models.ExtractionResult{
		Meta: models.Meta{
			Status:          models.StatusSuccess,
			PagesProcessed:  1,
			ProcessingNotes: []string{"no final total detected"},
		},
		Bill: &models.Bill{
			LineItems: []models.LineItem{
				{
					Description: "Consultation",
					Quantity:    models.Float64(1),
					UnitPrice:   models.Float64(500),
					Amount:      models.Float64(500),
					Page:        1,
					RowIndex:    0,
					Confidence:  0.91,
				},
				{
					Description: "Dressing",
					Quantity:    models.Float64(2),
					UnitPrice:   models.Float64(150),
					Amount:      models.Float64(300),
					Page:        1,
					RowIndex:    1,
					Confidence:  0.78,
					Derived:     []string{"amount"},
				},
			},
			TotalCandidates: []models.TotalCandidate{
				{Label: "Grand Total 800", Value: 800, Currency: "INR", Page: 1, Kind: models.KindFinalTotal, RowIndex: 2},
			},
			FinalTotal: &models.TotalCandidate{Label: "Grand Total 800", Value: 800, Currency: "INR", Page: 1, Kind: models.KindFinalTotal, RowIndex: 2},
			Aggregates: models.Aggregates{
				LineItemsTotal:       800,
				DetectedFinalTotal:   models.Float64(800),
				ReconciliationStatus: models.ReconciliationMatched,
			},
			FraudSignals: []models.FraudSignal{
				{
					Kind:     models.SignalArithmeticMismatch,
					Severity: models.SeverityMedium,
					Message:  "line item mismatch",
					Evidence: map[string]any{"expected": 200.0, "actual": 215.0},
					Page:     1,
					RowIndex: &idx,
				},
			},
		},
	}
}

func TestWorkbookXLSX(t *testing.T) {
	data, err := NewService().WorkbookXLSX(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not reopen: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{sheetLineItems, sheetTotals, sheetSignals} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("sheet %q missing", sheet)
		}
	}

	desc, err := f.GetCellValue(sheetLineItems, "C2")
	if err != nil {
		t.Fatal(err)
	}
	if desc != "Consultation" {
		t.Errorf("C2 = %q, want Consultation", desc)
	}

	derived, err := f.GetCellValue(sheetLineItems, "H3")
	if err != nil {
		t.Fatal(err)
	}
	if derived != "amount" {
		t.Errorf("H3 = %q, want amount", derived)
	}

	kind, err := f.GetCellValue(sheetSignals, "A2")
	if err != nil {
		t.Fatal(err)
	}
	if kind != string(models.SignalArithmeticMismatch) {
		t.Errorf("A2 = %q", kind)
	}

	selected, err := f.GetCellValue(sheetTotals, "F2")
	if err != nil {
		t.Fatal(err)
	}
	if selected != "yes" {
		t.Errorf("F2 = %q, want yes", selected)
	}
}

func TestWorkbookXLSXFailedResult(t *testing.T) {
	result := models.ExtractionResult{
		Meta: models.Meta{
			Status: models.StatusFailed,
			Reason: models.FailureReasonUnreadable,
		},
	}
	data, err := NewService().WorkbookXLSX(result)
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	marker, err := f.GetCellValue(sheetSignals, "A2")
	if err != nil {
		t.Fatal(err)
	}
	if marker != "FAILURE" {
		t.Errorf("A2 = %q, want FAILURE", marker)
	}
	reason, err := f.GetCellValue(sheetSignals, "E2")
	if err != nil {
		t.Fatal(err)
	}
	if reason != models.FailureReasonUnreadable {
		t.Errorf("E2 = %q", reason)
	}
}
