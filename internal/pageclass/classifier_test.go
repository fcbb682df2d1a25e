package pageclass

import (
	"context"
	"testing"

	"billscan/pkg/models"
)

func word(text string, page int) models.Token {
	return models.Token{Text: text, Page: page, Confidence: 0.9}
}

func words(page int, texts ...string) []models.Token {
	out := make([]models.Token, len(texts))
	for i, t := range texts {
		out[i] = word(t, page)
	}
	return out
}

func TestRuleClassifierPharmacyPage(t *testing.T) {
	tokens := words(1, "Pharmacy", "Paracetamol", "Tablet", "10", "5.00", "50.00")
	got, err := NewRuleClassifier().ClassifyPage(context.Background(), tokens, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != models.PagePharmacy {
		t.Errorf("got %s, want Pharmacy", got)
	}
}

func TestRuleClassifierFinalBillPage(t *testing.T) {
	tokens := words(2, "Summary", "Grand", "Total", "Net", "Payable", "12500.00")
	got, err := NewRuleClassifier().ClassifyPage(context.Background(), tokens, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != models.PageFinalBill {
		t.Errorf("got %s, want Final Bill", got)
	}
}

func TestRuleClassifierBillDetailPage(t *testing.T) {
	tokens := words(1,
		"Description", "Service", "Charge",
		"Room", "2000.00", "X-Ray", "500.00", "Consultation", "750.00")
	got, err := NewRuleClassifier().ClassifyPage(context.Background(), tokens, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != models.PageBillDetail {
		t.Errorf("got %s, want Bill Detail", got)
	}
}

func TestClassifyAllLabelsEveryPage(t *testing.T) {
	tokens := append(
		words(1, "Description", "Service", "Charge", "100.00", "200.00", "300.00"),
		words(2, "Pharmacy", "Medicine", "Tablet")...)

	labels, err := ClassifyAll(context.Background(), NewRuleClassifier(), tokens)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(labels))
	}
	if labels[1] != models.PageBillDetail {
		t.Errorf("page 1 = %s", labels[1])
	}
	if labels[2] != models.PagePharmacy {
		t.Errorf("page 2 = %s", labels[2])
	}
}

func TestLooksLikeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"500", true},
		{"₹1,250.50", true},
		{"Rs.200", true},
		{"X-Ray", false},
		{"10.5.1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := looksLikeAmount(tt.in); got != tt.want {
			t.Errorf("looksLikeAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
