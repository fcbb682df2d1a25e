// Package fraud runs independent anomaly checks over a finished bill and
// emits typed, severity-ranked signals. It never raises a hard failure and
// it runs even when reconciliation mismatched; the mismatch itself is
// evidence, not a stop condition.
package fraud

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"billscan/internal/logger"
	"billscan/pkg/models"
)

// Config holds the detection thresholds. All values are read once per
// extraction; there is no process-wide state.
type Config struct {
	MinOCRConfidence             float64
	ArithmeticTolerancePercent   float64
	TotalReconciliationTolerance float64
	FontHeightVarianceThreshold  float64
	BBoxAreaVarianceThreshold    float64
	DuplicateBBoxIoU             float64
}

// ColumnGroup is the set of tokens assigned to one column band on one
// page. Geometric outlier checks compare each token against its own
// band's median, never across bands.
type ColumnGroup struct {
	Page   int
	Role   models.ColumnRole
	Tokens []models.Token
}

// RowGeometry is the union bounding box of a row that produced a line
// item, used for overwrite/duplicate-region detection.
type RowGeometry struct {
	Page     int
	RowIndex int
	BBox     models.BBox
}

// Detector is a stateless pass over the finished bill; checks are
// independent and order-insensitive, and every applicable signal is
// emitted rather than first-match-wins.
type Detector struct {
	cfg Config
	log zerolog.Logger
}

// NewDetector returns a detector with the given thresholds.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg, log: logger.WithComponent("fraud")}
}

// Detect runs all checks and returns the accumulated signals.
func (d *Detector) Detect(bill *models.Bill, tokens []models.Token, groups []ColumnGroup, rows []RowGeometry) []models.FraudSignal {
	var signals []models.FraudSignal

	signals = append(signals, d.checkArithmetic(bill.LineItems)...)
	signals = append(signals, d.checkOCRConfidence(tokens)...)
	signals = append(signals, d.checkGeometry(groups)...)
	signals = append(signals, d.checkStructure(bill, rows)...)

	d.log.Debug().
		Int("line_items", len(bill.LineItems)).
		Int("signals", len(signals)).
		Msg("fraud detection pass complete")
	return signals
}

// checkArithmetic flags line items whose observed quantity times unit
// price deviates from the observed amount beyond tolerance. Derived fields
// are exempt: they satisfy the identity by construction.
func (d *Detector) checkArithmetic(items []models.LineItem) []models.FraudSignal {
	var signals []models.FraudSignal
	for i := range items {
		item := &items[i]
		if !item.HasObserved("quantity") || !item.HasObserved("unit_price") || !item.HasObserved("amount") {
			continue
		}
		expected := *item.Quantity * *item.UnitPrice
		actual := *item.Amount
		if actual == 0 {
			if expected == 0 {
				continue
			}
		} else if abs(expected-actual)/abs(actual)*100 <= d.cfg.ArithmeticTolerancePercent {
			continue
		}

		severity := models.SeverityMedium
		if actual != 0 && abs(expected-actual)/abs(actual)*100 > 3*d.cfg.ArithmeticTolerancePercent {
			severity = models.SeverityHigh
		}
		idx := item.RowIndex
		signals = append(signals, models.FraudSignal{
			Kind:     models.SignalArithmeticMismatch,
			Severity: severity,
			Message: fmt.Sprintf("line item %q: %.4g x %.4g = %.2f but amount is %.2f",
				item.Description, *item.Quantity, *item.UnitPrice, expected, actual),
			Evidence: map[string]any{
				"expected": expected,
				"actual":   actual,
			},
			Page:     item.Page,
			RowIndex: &idx,
		})
	}
	return signals
}

// checkOCRConfidence emits one signal per page that carries tokens below
// the confidence floor. Severity scales with how far the worst token falls
// below it.
func (d *Detector) checkOCRConfidence(tokens []models.Token) []models.FraudSignal {
	byPage := map[int][]models.Token{}
	for _, t := range tokens {
		if t.Confidence < d.cfg.MinOCRConfidence {
			byPage[t.Page] = append(byPage[t.Page], t)
		}
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var signals []models.FraudSignal
	for _, page := range pages {
		low := byPage[page]
		worst := low[0].Confidence
		for _, t := range low[1:] {
			if t.Confidence < worst {
				worst = t.Confidence
			}
		}
		severity := models.SeverityLow
		switch {
		case worst < d.cfg.MinOCRConfidence/2:
			severity = models.SeverityHigh
		case worst < d.cfg.MinOCRConfidence-0.1:
			severity = models.SeverityMedium
		}
		signals = append(signals, models.FraudSignal{
			Kind:     models.SignalOCRLowConfidence,
			Severity: severity,
			Message: fmt.Sprintf("%d tokens below OCR confidence floor %.2f (lowest %.2f)",
				len(low), d.cfg.MinOCRConfidence, worst),
			Evidence: map[string]any{
				"token_count": len(low),
				"lowest":      worst,
				"floor":       d.cfg.MinOCRConfidence,
			},
			Page: page,
		})
	}
	return signals
}

// checkGeometry looks for bounding-box outliers inside each column band:
// height outliers suggest a different font, area outliers suggest text
// pasted or written over the original. Purely geometric; the token text is
// only carried as evidence.
func (d *Detector) checkGeometry(groups []ColumnGroup) []models.FraudSignal {
	var signals []models.FraudSignal
	for _, g := range groups {
		if len(g.Tokens) < 3 {
			// Too few samples for a meaningful median.
			continue
		}
		medHeight := median(g.Tokens, func(t models.Token) float64 { return t.BBox.Height() })
		medArea := median(g.Tokens, func(t models.Token) float64 { return t.BBox.Area() })

		for _, t := range g.Tokens {
			if medHeight > 0 {
				ratio := t.BBox.Height() / medHeight
				if ratio > d.cfg.FontHeightVarianceThreshold || ratio < 1/d.cfg.FontHeightVarianceThreshold {
					signals = append(signals, models.FraudSignal{
						Kind:     models.SignalFontInconsistency,
						Severity: models.SeverityMedium,
						Message: fmt.Sprintf("token %q height %.1f deviates from band median %.1f",
							t.Text, t.BBox.Height(), medHeight),
						Evidence: map[string]any{
							"height":        t.BBox.Height(),
							"median_height": medHeight,
							"ratio":         ratio,
							"column_role":   string(g.Role),
						},
						Page: g.Page,
					})
				}
			}
			if medArea > 0 {
				ratio := t.BBox.Area() / medArea
				if ratio > d.cfg.BBoxAreaVarianceThreshold {
					signals = append(signals, models.FraudSignal{
						Kind:     models.SignalOverwriteDetected,
						Severity: models.SeverityHigh,
						Message: fmt.Sprintf("token %q covers %.1fx the band's median area",
							t.Text, ratio),
						Evidence: map[string]any{
							"area":        t.BBox.Area(),
							"median_area": medArea,
							"ratio":       ratio,
							"column_role": string(g.Role),
						},
						Page: g.Page,
					})
				}
			}
		}
	}
	return signals
}

// checkStructure covers the semantic sub-kinds: line items exceeding the
// final total, a sub-total exceeding the final total, and duplicate line
// items, by content or by occupying the same physical region.
func (d *Detector) checkStructure(bill *models.Bill, rows []RowGeometry) []models.FraudSignal {
	var signals []models.FraudSignal

	if bill.FinalTotal != nil {
		var sum float64
		for _, it := range bill.LineItems {
			if it.Amount != nil {
				sum += *it.Amount
			}
		}
		if sum > bill.FinalTotal.Value+d.cfg.TotalReconciliationTolerance {
			signals = append(signals, models.FraudSignal{
				Kind:     models.SignalStructuralAnomaly,
				Severity: models.SeverityHigh,
				Message: fmt.Sprintf("line items sum to %.2f, exceeding final total %.2f",
					sum, bill.FinalTotal.Value),
				Evidence: map[string]any{
					"sub_kind":         "LINE_ITEMS_EXCEED_TOTAL",
					"line_items_total": sum,
					"final_total":      bill.FinalTotal.Value,
				},
				Page: bill.FinalTotal.Page,
			})
		}

		for _, c := range bill.TotalCandidates {
			if c.Kind == models.KindSubtotal && c.Value > bill.FinalTotal.Value {
				idx := c.RowIndex
				signals = append(signals, models.FraudSignal{
					Kind:     models.SignalStructuralAnomaly,
					Severity: models.SeverityHigh,
					Message: fmt.Sprintf("sub-total %q (%.2f) exceeds final total %.2f",
						c.Label, c.Value, bill.FinalTotal.Value),
					Evidence: map[string]any{
						"sub_kind":    "SUBTOTAL_EXCEEDS_TOTAL",
						"subtotal":    c.Value,
						"final_total": bill.FinalTotal.Value,
					},
					Page:     c.Page,
					RowIndex: &idx,
				})
			}
		}
	}

	signals = append(signals, d.checkDuplicates(bill.LineItems, rows)...)
	return signals
}

func (d *Detector) checkDuplicates(items []models.LineItem, rows []RowGeometry) []models.FraudSignal {
	var signals []models.FraudSignal

	type key struct {
		desc   string
		amount float64
		page   int
	}
	seen := map[key]bool{}
	for i := range items {
		item := &items[i]
		if item.Amount == nil || strings.TrimSpace(item.Description) == "" {
			continue
		}
		k := key{normalizeDesc(item.Description), *item.Amount, item.Page}
		if seen[k] {
			idx := item.RowIndex
			signals = append(signals, models.FraudSignal{
				Kind:     models.SignalStructuralAnomaly,
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("duplicate line item %q (%.2f)", item.Description, *item.Amount),
				Evidence: map[string]any{
					"sub_kind":    "DUPLICATE_LINE_ITEM",
					"description": item.Description,
					"amount":      *item.Amount,
				},
				Page:     item.Page,
				RowIndex: &idx,
			})
		}
		seen[k] = true
	}

	// Two "different" rows occupying nearly the same region of the page
	// point at a pasted-over row rather than genuine repetition.
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			a, b := rows[i], rows[j]
			if a.Page != b.Page || a.RowIndex == b.RowIndex {
				continue
			}
			if iou := a.BBox.IoU(b.BBox); iou > d.cfg.DuplicateBBoxIoU {
				idx := b.RowIndex
				signals = append(signals, models.FraudSignal{
					Kind:     models.SignalStructuralAnomaly,
					Severity: models.SeverityHigh,
					Message:  fmt.Sprintf("rows %d and %d overlap (IoU %.2f)", a.RowIndex, b.RowIndex, iou),
					Evidence: map[string]any{
						"sub_kind":  "DUPLICATE_ROW_REGION",
						"row_a":     a.RowIndex,
						"row_b":     b.RowIndex,
						"iou":       iou,
						"threshold": d.cfg.DuplicateBBoxIoU,
					},
					Page:     a.Page,
					RowIndex: &idx,
				})
			}
		}
	}
	return signals
}

func normalizeDesc(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func median(tokens []models.Token, f func(models.Token) float64) float64 {
	vals := make([]float64, len(tokens))
	for i, t := range tokens {
		vals[i] = f(t)
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
