package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"billscan/pkg/models"
)

// fullBillTokens is a one-page bill: two clean line items and a grand
// total row that their amounts sum to.
func fullBillTokens() []models.Token {
	return []models.Token{
		tok("Room", 10, 100, 50, 110, 1, 0.9),
		tok("2", 200, 100, 210, 110, 1, 0.9),
		tok("1000", 300, 100, 340, 110, 1, 0.9),
		tok("2000", 450, 100, 490, 110, 1, 0.9),

		tok("X-Ray", 10, 130, 55, 140, 1, 0.9),
		tok("1", 200, 130, 210, 140, 1, 0.9),
		tok("500", 300, 130, 330, 140, 1, 0.9),
		tok("500", 450, 130, 480, 140, 1, 0.9),

		tok("Grand", 10, 160, 50, 170, 1, 0.9),
		tok("Total", 60, 160, 100, 170, 1, 0.9),
		tok("2500", 450, 160, 490, 170, 1, 0.9),
	}
}

func TestExtractCleanBill(t *testing.T) {
	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: fullBillTokens()})

	if result.Meta.Status != models.StatusSuccess {
		t.Fatalf("status = %s, reason = %s", result.Meta.Status, result.Meta.Reason)
	}
	bill := result.Bill
	if bill == nil {
		t.Fatal("nil bill")
	}
	if len(bill.LineItems) != 2 {
		t.Fatalf("got %d line items, want 2", len(bill.LineItems))
	}
	if bill.FinalTotal == nil || bill.FinalTotal.Value != 2500 {
		t.Fatalf("final total = %+v, want 2500", bill.FinalTotal)
	}
	if bill.Aggregates.ReconciliationStatus != models.ReconciliationMatched {
		t.Errorf("reconciliation = %s, want MATCHED", bill.Aggregates.ReconciliationStatus)
	}
	if bill.Aggregates.LineItemsTotal != 2500 {
		t.Errorf("line items total = %v", bill.Aggregates.LineItemsTotal)
	}
	if len(bill.FraudSignals) != 0 {
		t.Errorf("clean bill produced signals: %+v", bill.FraudSignals)
	}
}

func TestExtractSingleRowDocument(t *testing.T) {
	// The minimal extractable document: one table row, no total row.
	tokens := []models.Token{
		tok("Consultation", 10, 100, 100, 110, 1, 0.9),
		tok("1", 200, 100, 210, 110, 1, 0.9),
		tok("500", 300, 100, 330, 110, 1, 0.9),
		tok("500", 450, 100, 480, 110, 1, 0.9),
	}
	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})

	if result.Meta.Status != models.StatusSuccess {
		t.Fatalf("status = %s", result.Meta.Status)
	}
	if len(result.Bill.LineItems) != 1 {
		t.Fatalf("got %d line items, want 1", len(result.Bill.LineItems))
	}
	item := result.Bill.LineItems[0]
	if item.Quantity == nil || *item.Quantity != 1 {
		t.Errorf("quantity = %v, want 1", item.Quantity)
	}
	if len(item.Derived) != 0 {
		t.Errorf("derived = %v, want none", item.Derived)
	}
	if result.Bill.Aggregates.ReconciliationStatus != models.ReconciliationUnreconcilable {
		t.Errorf("reconciliation = %s, want UNRECONCILABLE", result.Bill.Aggregates.ReconciliationStatus)
	}
	if !hasNote(result.Meta.ProcessingNotes, "no final total detected") {
		t.Errorf("notes = %v, want total-missing note", result.Meta.ProcessingNotes)
	}
	if len(result.Bill.FraudSignals) != 0 {
		t.Errorf("single clean row produced signals: %+v", result.Bill.FraudSignals)
	}
}

func TestExtractTotalExceedsItems(t *testing.T) {
	// The stated total is above the items: a reconciliation mismatch and a
	// note, but no items-exceed-total signal.
	tokens := []models.Token{
		tok("Injection", 10, 100, 80, 110, 1, 0.9),
		tok("2", 200, 100, 210, 110, 1, 0.9),
		tok("150", 300, 100, 330, 110, 1, 0.9),
		tok("300", 450, 100, 480, 110, 1, 0.9),

		tok("Grand", 10, 130, 50, 140, 1, 0.9),
		tok("Total", 60, 130, 100, 140, 1, 0.9),
		tok("450", 450, 130, 480, 140, 1, 0.9),
	}
	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})
	agg := result.Bill.Aggregates

	if agg.LineItemsTotal != 300 {
		t.Errorf("line items total = %v, want 300", agg.LineItemsTotal)
	}
	if agg.DetectedFinalTotal == nil || *agg.DetectedFinalTotal != 450 {
		t.Errorf("detected total = %v, want 450", agg.DetectedFinalTotal)
	}
	if agg.ReconciliationStatus != models.ReconciliationMismatch {
		t.Errorf("status = %s, want MISMATCH", agg.ReconciliationStatus)
	}
	if !hasNote(result.Meta.ProcessingNotes, "does not reconcile") {
		t.Errorf("notes = %v, want mismatch note", result.Meta.ProcessingNotes)
	}
	for _, sig := range result.Bill.FraudSignals {
		if sig.Evidence["sub_kind"] == "LINE_ITEMS_EXCEED_TOTAL" {
			t.Error("items below total must not raise LINE_ITEMS_EXCEED_TOTAL")
		}
	}
}

func TestExtractPageWithNoTableRows(t *testing.T) {
	// A trailing page of prose yields no items and no candidates, and does
	// not disturb the bill pages.
	prose := []models.Token{
		tok("Wishing", 10, 100, 70, 110, 2, 0.9),
		tok("you", 80, 100, 110, 110, 2, 0.9),
		tok("a", 120, 100, 128, 110, 2, 0.9),
		tok("speedy", 140, 100, 190, 110, 2, 0.9),
		tok("recovery", 200, 100, 270, 110, 2, 0.9),
	}
	tokens := append(fullBillTokens(), prose...)

	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})
	if result.Meta.Status != models.StatusSuccess {
		t.Fatalf("status = %s", result.Meta.Status)
	}
	if len(result.Bill.LineItems) != 2 {
		t.Errorf("got %d items, want 2", len(result.Bill.LineItems))
	}
	for _, it := range result.Bill.LineItems {
		if it.Page == 2 {
			t.Errorf("prose page emitted item %+v", it)
		}
	}
	if len(result.Bill.TotalCandidates) != 1 {
		t.Errorf("got %d candidates, want 1", len(result.Bill.TotalCandidates))
	}
}

func TestExtractRejectsUnreadableInput(t *testing.T) {
	cases := map[string]models.TokenSet{
		"empty": {},
		"no numeric structure": {Tokens: []models.Token{
			tok("Discharge", 10, 100, 80, 110, 1, 0.9),
			tok("Summary", 90, 100, 150, 110, 1, 0.9),
		}},
		"confidence below floor": {Tokens: []models.Token{
			tok("Room", 10, 100, 50, 110, 1, 0.1),
			tok("500", 200, 100, 230, 110, 1, 0.1),
		}},
	}

	for name, input := range cases {
		result := New(DefaultConfig()).Extract(input)
		if result.Meta.Status != models.StatusFailed {
			t.Errorf("%s: status = %s, want FAILED", name, result.Meta.Status)
		}
		if result.Meta.Reason != models.FailureReasonUnreadable {
			t.Errorf("%s: reason = %q", name, result.Meta.Reason)
		}
		if result.Bill != nil {
			t.Errorf("%s: bill should be nil on failure", name)
		}
	}
}

func TestExtractTamperedBill(t *testing.T) {
	// 2 x 100 printed as 900, and the stated total is far below the items.
	tokens := []models.Token{
		tok("Room", 10, 100, 50, 110, 1, 0.9),
		tok("2", 200, 100, 210, 110, 1, 0.9),
		tok("100", 300, 100, 330, 110, 1, 0.9),
		tok("900", 450, 100, 480, 110, 1, 0.9),

		tok("Total", 10, 130, 50, 140, 1, 0.9),
		tok("500", 450, 130, 480, 140, 1, 0.9),
	}
	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})
	if result.Meta.Status != models.StatusSuccess {
		t.Fatalf("status = %s", result.Meta.Status)
	}
	bill := result.Bill

	if bill.Aggregates.ReconciliationStatus != models.ReconciliationMismatch {
		t.Errorf("reconciliation = %s, want MISMATCH", bill.Aggregates.ReconciliationStatus)
	}

	var arithmetic, exceeds bool
	for _, sig := range bill.FraudSignals {
		switch sig.Kind {
		case models.SignalArithmeticMismatch:
			arithmetic = true
			if sig.Severity != models.SeverityHigh {
				t.Errorf("arithmetic severity = %s, want HIGH", sig.Severity)
			}
			if sig.Evidence["expected"] != 200.0 || sig.Evidence["actual"] != 900.0 {
				t.Errorf("arithmetic evidence = %v", sig.Evidence)
			}
		case models.SignalStructuralAnomaly:
			if sig.Evidence["sub_kind"] == "LINE_ITEMS_EXCEED_TOTAL" {
				exceeds = true
			}
		}
	}
	if !arithmetic {
		t.Error("missing ARITHMETIC_MISMATCH signal")
	}
	if !exceeds {
		t.Error("missing LINE_ITEMS_EXCEED_TOTAL signal")
	}
}

func TestExtractFlagsDuplicateLineItems(t *testing.T) {
	tokens := []models.Token{
		tok("MRI", 10, 100, 40, 110, 1, 0.9),
		tok("5000", 450, 100, 490, 110, 1, 0.9),
		tok("MRI", 10, 130, 40, 140, 1, 0.9),
		tok("5000", 450, 130, 490, 140, 1, 0.9),
	}
	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})

	if len(result.Bill.LineItems) != 2 {
		t.Fatalf("got %d items, want 2 (duplicates kept, flagged)", len(result.Bill.LineItems))
	}
	found := false
	for _, sig := range result.Bill.FraudSignals {
		if sig.Kind == models.SignalStructuralAnomaly && sig.Evidence["sub_kind"] == "DUPLICATE_LINE_ITEM" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing DUPLICATE_LINE_ITEM signal: %+v", result.Bill.FraudSignals)
	}
}

func TestExtractPromotesSubtotal(t *testing.T) {
	tokens := []models.Token{
		tok("Lab", 10, 100, 40, 110, 1, 0.9),
		tok("800", 450, 100, 480, 110, 1, 0.9),
		tok("Subtotal", 10, 130, 80, 140, 1, 0.9),
		tok("800", 450, 130, 480, 140, 1, 0.9),
	}
	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})

	bill := result.Bill
	if bill.FinalTotal == nil {
		t.Fatal("no final total")
	}
	if bill.FinalTotal.Kind != models.KindFinalTotal || bill.FinalTotal.Value != 800 {
		t.Errorf("final total = %+v", bill.FinalTotal)
	}
	if !hasNote(result.Meta.ProcessingNotes, "promoted") {
		t.Errorf("notes = %v, want promotion note", result.Meta.ProcessingNotes)
	}
	if bill.Aggregates.ReconciliationStatus != models.ReconciliationMatched {
		t.Errorf("reconciliation = %s", bill.Aggregates.ReconciliationStatus)
	}
}

func TestExtractDeterministic(t *testing.T) {
	// Same tokens, shuffled input order: byte-identical result.
	tokens := fullBillTokens()
	shuffled := make([]models.Token, 0, len(tokens))
	for i := len(tokens) - 1; i >= 0; i-- {
		shuffled = append(shuffled, tokens[i])
	}

	e := New(DefaultConfig())
	a, _ := json.Marshal(e.Extract(models.TokenSet{Tokens: tokens}))
	b, _ := json.Marshal(e.Extract(models.TokenSet{Tokens: shuffled}))
	if string(a) != string(b) {
		t.Errorf("results differ across input orderings:\n%s\n%s", a, b)
	}

	c, _ := json.Marshal(e.Extract(models.TokenSet{Tokens: tokens}))
	if string(a) != string(c) {
		t.Error("repeated extraction not idempotent")
	}
}

func TestExtractMultiPage(t *testing.T) {
	page2 := []models.Token{
		tok("Pharmacy", 10, 100, 80, 110, 2, 0.9),
		tok("Charges", 90, 100, 150, 110, 2, 0.9),
		tok("300", 450, 100, 480, 110, 2, 0.9),
	}
	tokens := append(fullBillTokens(), page2...)

	result := New(DefaultConfig()).Extract(models.TokenSet{Tokens: tokens})
	if result.Meta.PagesProcessed != 2 {
		t.Errorf("pages processed = %d, want 2", result.Meta.PagesProcessed)
	}
	// The page-2 subtotal becomes a candidate but the page-1 grand total
	// still wins selection.
	if result.Bill.FinalTotal == nil || result.Bill.FinalTotal.Value != 2500 {
		t.Errorf("final total = %+v, want 2500", result.Bill.FinalTotal)
	}
	if len(result.Bill.TotalCandidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(result.Bill.TotalCandidates))
	}
}

func hasNote(notes []string, substr string) bool {
	for _, n := range notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}
