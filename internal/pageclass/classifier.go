// Package pageclass assigns advisory page-type labels (bill detail, final
// bill, pharmacy) to the pages of a tokenized document. Labels only bias
// keyword selection downstream; extraction functions identically with none
// supplied.
package pageclass

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"billscan/internal/logger"
	"billscan/pkg/models"
)

// Classifier labels one page from its tokens.
type Classifier interface {
	ClassifyPage(ctx context.Context, tokens []models.Token, pageNum int) (models.PageType, error)
}

var (
	finalBillKeywords = []string{
		"final", "total", "grand total", "net payable", "amount payable",
		"total amount", "bill total", "summary", "payment",
	}
	pharmacyKeywords = []string{
		"pharmacy", "medicine", "medication", "drug", "tablet", "capsule",
		"syrup", "injection", "prescription", "rx", "pharmaceutical",
	}
	billDetailKeywords = []string{
		"description", "item", "service", "charge", "procedure", "test",
		"consultation", "room", "bed", "treatment", "diagnosis",
	}
	strongTotalMarkers = []string{"grand total", "final total", "net payable"}
)

// RuleClassifier scores keyword hits per category and checks for table
// structure (several amount-like tokens). No network, never fails.
type RuleClassifier struct {
	log zerolog.Logger
}

// NewRuleClassifier returns the keyword-scoring classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{log: logger.WithComponent("pageclass")}
}

// ClassifyPage implements Classifier. The error is always nil; the
// signature matches the interface shared with the LLM classifier.
func (c *RuleClassifier) ClassifyPage(_ context.Context, tokens []models.Token, pageNum int) (models.PageType, error) {
	var sb strings.Builder
	amountLike := 0
	for _, t := range tokens {
		sb.WriteString(strings.ToLower(t.Text))
		sb.WriteByte(' ')
		if looksLikeAmount(t.Text) {
			amountLike++
		}
	}
	text := sb.String()

	finalScore := countHits(text, finalBillKeywords)
	pharmacyScore := countHits(text, pharmacyKeywords)
	detailScore := countHits(text, billDetailKeywords)
	hasStrongTotal := countHits(text, strongTotalMarkers) > 0
	hasTable := amountLike >= 3

	label := decide(finalScore, pharmacyScore, detailScore, hasStrongTotal, hasTable)
	c.log.Debug().
		Int("page", pageNum).
		Int("final_score", finalScore).
		Int("pharmacy_score", pharmacyScore).
		Int("detail_score", detailScore).
		Bool("table_structure", hasTable).
		Str("label", string(label)).
		Msg("page classified")
	return label, nil
}

func decide(finalScore, pharmacyScore, detailScore int, hasStrongTotal, hasTable bool) models.PageType {
	switch {
	case hasStrongTotal && finalScore >= 2:
		return models.PageFinalBill
	case pharmacyScore >= 2:
		return models.PagePharmacy
	case hasTable && detailScore >= 2:
		return models.PageBillDetail
	case finalScore > pharmacyScore && finalScore > detailScore:
		return models.PageFinalBill
	case pharmacyScore > detailScore:
		return models.PagePharmacy
	case hasTable:
		return models.PageBillDetail
	default:
		return models.PageFinalBill
	}
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func looksLikeAmount(text string) bool {
	cleaned := strings.NewReplacer("₹", "", "$", "", ",", "", "Rs.", "", "Rs", "").Replace(text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return false
	}
	dot := false
	for _, r := range cleaned {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}

// ClassifyAll labels every page present in the token set.
func ClassifyAll(ctx context.Context, c Classifier, tokens []models.Token) (map[int]models.PageType, error) {
	byPage := map[int][]models.Token{}
	for _, t := range tokens {
		byPage[t.Page] = append(byPage[t.Page], t)
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	labels := make(map[int]models.PageType, len(pages))
	for _, p := range pages {
		label, err := c.ClassifyPage(ctx, byPage[p], p)
		if err != nil {
			return nil, err
		}
		labels[p] = label
	}
	return labels, nil
}
