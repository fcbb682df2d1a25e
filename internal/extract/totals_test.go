package extract

import (
	"testing"

	"billscan/pkg/models"
)

func TestMatchTotalKeywordPriority(t *testing.T) {
	keywords := defaultTotalKeywords()

	kw := matchTotalKeyword(keywords, "Grand Total 2500")
	if kw == nil || kw.Phrase != "grand total" {
		t.Fatalf("got %+v, want grand total", kw)
	}

	// Plain "total" still matches on its own.
	kw = matchTotalKeyword(keywords, "Total 2500")
	if kw == nil || kw.Phrase != "total" {
		t.Fatalf("got %+v, want total", kw)
	}

	if kw := matchTotalKeyword(keywords, "Consultation 500"); kw != nil {
		t.Errorf("non-total row matched %q", kw.Phrase)
	}
}

func TestTotalCandidateFromRow(t *testing.T) {
	cfg := DefaultConfig()
	rows := ClusterRows([]models.Token{
		tok("Grand", 10, 100, 50, 110, 2, 0.9),
		tok("Total", 60, 100, 100, 110, 2, 0.9),
		tok("12,500.00", 450, 100, 520, 110, 2, 0.9),
	}, cfg.YCoordinateTolerance)

	kw := matchTotalKeyword(cfg.TotalKeywords, rows[0].Text())
	if kw == nil {
		t.Fatal("keyword not matched")
	}
	cand := totalCandidateFromRow(rows[0], kw, &cfg)
	if cand == nil {
		t.Fatal("no candidate")
	}
	if cand.Value != 12500 {
		t.Errorf("value = %v, want 12500", cand.Value)
	}
	if cand.Kind != models.KindFinalTotal {
		t.Errorf("kind = %s", cand.Kind)
	}
	if cand.Currency != "INR" {
		t.Errorf("currency = %s", cand.Currency)
	}
	if cand.Page != 2 {
		t.Errorf("page = %d", cand.Page)
	}
}

func TestTotalCandidateWithoutNumber(t *testing.T) {
	cfg := DefaultConfig()
	rows := ClusterRows([]models.Token{
		tok("Grand", 10, 100, 50, 110, 1, 0.9),
		tok("Total", 60, 100, 100, 110, 1, 0.9),
	}, cfg.YCoordinateTolerance)
	kw := matchTotalKeyword(cfg.TotalKeywords, rows[0].Text())
	if cand := totalCandidateFromRow(rows[0], kw, &cfg); cand != nil {
		t.Errorf("got candidate %+v from row without numeric value", cand)
	}
}

func TestSelectFinalTotalPriorityThenPageThenRow(t *testing.T) {
	candidates := []models.TotalCandidate{
		{Label: "Total", Value: 100, Kind: models.KindFinalTotal, Priority: 10, Page: 1, RowIndex: 5},
		{Label: "Grand Total", Value: 200, Kind: models.KindFinalTotal, Priority: 70, Page: 1, RowIndex: 2},
		{Label: "Grand Total", Value: 300, Kind: models.KindFinalTotal, Priority: 70, Page: 3, RowIndex: 1},
		{Label: "Grand Total", Value: 400, Kind: models.KindFinalTotal, Priority: 70, Page: 3, RowIndex: 4},
	}
	final, promoted := SelectFinalTotal(candidates)
	if final == nil || promoted {
		t.Fatalf("final = %+v, promoted = %v", final, promoted)
	}
	// Highest priority, then latest page, then last row.
	if final.Value != 400 {
		t.Errorf("selected value = %v, want 400", final.Value)
	}
}

func TestSelectFinalTotalPromotesSubtotal(t *testing.T) {
	candidates := []models.TotalCandidate{
		{Label: "Pharmacy Charges", Value: 800, Kind: models.KindSubtotal, Priority: 11, Page: 1, RowIndex: 3},
		{Label: "Subtotal", Value: 900, Kind: models.KindSubtotal, Priority: 16, Page: 1, RowIndex: 7},
	}
	final, promoted := SelectFinalTotal(candidates)
	if final == nil || !promoted {
		t.Fatalf("final = %+v, promoted = %v", final, promoted)
	}
	if final.Value != 900 {
		t.Errorf("promoted value = %v, want 900", final.Value)
	}
	if final.Kind != models.KindFinalTotal {
		t.Errorf("promoted kind = %s, want FINAL_TOTAL", final.Kind)
	}
	// The original candidate list is untouched.
	if candidates[1].Kind != models.KindSubtotal {
		t.Error("promotion mutated the source candidate")
	}
}

func TestSelectFinalTotalEmpty(t *testing.T) {
	final, promoted := SelectFinalTotal(nil)
	if final != nil || promoted {
		t.Errorf("got %+v, %v; want nil, false", final, promoted)
	}
}

func TestKeywordsForPagePharmacyBias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageLabels = map[int]models.PageType{2: models.PagePharmacy}

	base := matchTotalKeyword(cfg.keywordsForPage(1), "Pharmacy Charges 800")
	biased := matchTotalKeyword(cfg.keywordsForPage(2), "Pharmacy Charges 800")
	if base == nil || biased == nil {
		t.Fatal("keyword not matched")
	}
	if biased.Priority <= base.Priority {
		t.Errorf("pharmacy page priority %d should exceed default %d", biased.Priority, base.Priority)
	}
}
