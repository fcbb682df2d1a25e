package extract

import (
	"strings"

	"billscan/pkg/models"
)

// matchTotalKeyword returns the highest-priority keyword contained in the
// row text, or nil when the row is not a total row. "grand total" must win
// over its substring "total", which the priority ordering guarantees.
func matchTotalKeyword(keywords []TotalKeyword, rowText string) *TotalKeyword {
	norm := normalizeText(rowText)
	var best *TotalKeyword
	for i := range keywords {
		kw := &keywords[i]
		if !strings.Contains(norm, kw.Phrase) {
			continue
		}
		if best == nil || kw.Priority > best.Priority {
			best = kw
		}
	}
	return best
}

// totalCandidateFromRow materializes a candidate from a keyword-matched
// row. The value is the row's rightmost numeric token; rows without one
// yield no candidate.
func totalCandidateFromRow(row Row, kw *TotalKeyword, cfg *Config) *models.TotalCandidate {
	value, ok := row.rightmostNumber()
	if !ok {
		return nil
	}
	return &models.TotalCandidate{
		Label:    strings.TrimSpace(row.Text()),
		Value:    value,
		Currency: cfg.Currency,
		Page:     row.Page,
		Kind:     kw.Kind,
		Priority: kw.Priority,
		RowIndex: row.RowIndex,
	}
}

// SelectFinalTotal picks exactly one final total from the candidates.
//
// Among FINAL_TOTAL candidates the highest priority wins; ties break to the
// latest page, then to the physically last qualifying row. When no
// FINAL_TOTAL exists, the best SUBTOTAL is promoted so extraction still
// produces a usable total whenever any total-like row exists; promoted is
// true in that case so the caller can record the confidence penalty.
func SelectFinalTotal(candidates []models.TotalCandidate) (final *models.TotalCandidate, promoted bool) {
	best := pickBest(candidates, models.KindFinalTotal)
	if best != nil {
		return best, false
	}
	best = pickBest(candidates, models.KindSubtotal)
	if best == nil {
		return nil, false
	}
	p := *best
	p.Kind = models.KindFinalTotal
	return &p, true
}

func pickBest(candidates []models.TotalCandidate, kind models.TotalKind) *models.TotalCandidate {
	var best *models.TotalCandidate
	for i := range candidates {
		c := &candidates[i]
		if c.Kind != kind {
			continue
		}
		if best == nil || betterCandidate(c, best) {
			best = c
		}
	}
	return best
}

func betterCandidate(c, best *models.TotalCandidate) bool {
	if c.Priority != best.Priority {
		return c.Priority > best.Priority
	}
	if c.Page != best.Page {
		return c.Page > best.Page
	}
	return c.RowIndex > best.RowIndex
}
