// Package extract reconstructs structured, itemized billing data from
// noisy, geometrically-described OCR token streams and validates the
// result for internal consistency.
//
// The pipeline per page: cluster tokens into rows, infer column bands from
// horizontal gaps, route total-keyword rows to total detection, and build
// line items from the rest. Across pages the final total is selected by
// keyword priority and the line items are reconciled against it. The core
// is synchronous and pure over immutable tokens: no locks, no I/O, no
// suspension points, so a serving layer can run requests in parallel and
// under external deadlines without special hooks.
package extract

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"billscan/internal/fraud"
	"billscan/internal/logger"
	"billscan/pkg/models"
)

// Extractor sequences row clustering, column mapping, line-item synthesis,
// total detection, reconciliation and fraud detection for one request.
type Extractor struct {
	cfg Config
	log zerolog.Logger
}

// New returns an extractor bound to a threshold snapshot. The config is
// copied; later mutation by the caller does not affect a running request.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg, log: logger.WithComponent("extract")}
}

// Extract turns a token set into a bill. The only hard-failure path is a
// document with no extractable structure at all; every other anomaly
// degrades to processing notes, confidence penalties and fraud signals.
func (e *Extractor) Extract(input models.TokenSet) models.ExtractionResult {
	tokens := withDefaultConfidence(input.Tokens, e.cfg.DefaultTokenConfidence)

	if reason, ok := e.readable(tokens); !ok {
		e.log.Warn().Str("reason", reason).Int("tokens", len(tokens)).Msg("document rejected")
		return models.ExtractionResult{Meta: models.Meta{
			Status: models.StatusFailed,
			Reason: models.FailureReasonUnreadable,
		}}
	}

	var (
		notes      []string
		items      []models.LineItem
		candidates []models.TotalCandidate
		groups     []fraud.ColumnGroup
		geometries []fraud.RowGeometry
		pagesSeen  int
	)

	for _, page := range pageNumbers(tokens) {
		pagesSeen++
		pageTokens := tokensForPage(tokens, page)
		rows := ClusterRows(pageTokens, e.cfg.YCoordinateTolerance)
		bands := DetectBands(rows, e.cfg.MinColumnGap)
		keywords := e.cfg.keywordsForPage(page)

		groups = append(groups, columnGroups(page, rows, bands)...)

		for _, row := range rows {
			// Mutually exclusive classification: a keyword row becomes a
			// total candidate and never a line item.
			if kw := matchTotalKeyword(keywords, row.Text()); kw != nil {
				if cand := totalCandidateFromRow(row, kw, &e.cfg); cand != nil {
					candidates = append(candidates, *cand)
				} else {
					notes = append(notes, fmt.Sprintf(
						"page %d row %d: total keyword without numeric value", page, row.RowIndex))
				}
				continue
			}

			item := BuildLineItem(row, bands, &e.cfg)
			if item == nil {
				continue
			}
			if item.Confidence < e.cfg.LowConfidenceThreshold {
				notes = append(notes, fmt.Sprintf(
					"page %d row %d: low line-item confidence %.2f", page, row.RowIndex, item.Confidence))
			}
			items = append(items, *item)
			geometries = append(geometries, fraud.RowGeometry{
				Page: page, RowIndex: row.RowIndex, BBox: row.BBox(),
			})
		}
	}

	if len(items) == 0 {
		notes = append(notes, "no line items extracted")
	}

	final, promoted := SelectFinalTotal(candidates)
	switch {
	case final == nil:
		notes = append(notes, "no final total detected")
	case promoted:
		notes = append(notes, fmt.Sprintf(
			"final total promoted from sub-total %q with confidence penalty", final.Label))
	}

	aggregates := Reconcile(items, final, &e.cfg)
	if aggregates.ReconciliationStatus == models.ReconciliationMismatch {
		notes = append(notes, fmt.Sprintf(
			"line items total %.2f does not reconcile with detected final total %.2f (difference %.2f)",
			aggregates.LineItemsTotal, final.Value, aggregates.Difference))
	}

	bill := &models.Bill{
		LineItems:       items,
		TotalCandidates: candidates,
		FinalTotal:      final,
		Aggregates:      aggregates,
	}

	detector := fraud.NewDetector(fraud.Config{
		MinOCRConfidence:             e.cfg.MinOCRConfidence,
		ArithmeticTolerancePercent:   e.cfg.ArithmeticTolerancePercent,
		TotalReconciliationTolerance: e.cfg.TotalReconciliationTolerance,
		FontHeightVarianceThreshold:  e.cfg.FontHeightVarianceThreshold,
		BBoxAreaVarianceThreshold:    e.cfg.BBoxAreaVarianceThreshold,
		DuplicateBBoxIoU:             e.cfg.DuplicateBBoxIoU,
	})
	bill.FraudSignals = detector.Detect(bill, tokens, groups, geometries)

	e.log.Info().
		Int("pages", pagesSeen).
		Int("line_items", len(items)).
		Int("total_candidates", len(candidates)).
		Int("fraud_signals", len(bill.FraudSignals)).
		Str("reconciliation", string(aggregates.ReconciliationStatus)).
		Msg("extraction complete")

	return models.ExtractionResult{
		Meta: models.Meta{
			Status:          models.StatusSuccess,
			PagesProcessed:  pagesSeen,
			ModelConfidence: meanItemConfidence(items),
			ProcessingNotes: notes,
		},
		Bill: bill,
	}
}

// readable is the input-rejection gate: the document must contain tokens,
// some numeric content (bills carry numbers) and a minimally trustworthy
// mean OCR confidence. Anything past this gate degrades gracefully instead
// of failing.
func (e *Extractor) readable(tokens []models.Token) (string, bool) {
	if len(tokens) == 0 {
		return "empty token set", false
	}
	numeric := 0
	var confSum float64
	for _, t := range tokens {
		if isNumericText(t.Text) {
			numeric++
		}
		confSum += t.Confidence
	}
	if numeric == 0 {
		return "no numeric structure", false
	}
	if confSum/float64(len(tokens)) < e.cfg.MinReadableConfidence {
		return "mean OCR confidence below readability floor", false
	}
	return "", true
}

// withDefaultConfidence copies the tokens, substituting the configured
// default for absent (zero) confidence scores. The caller's slice is never
// mutated.
func withDefaultConfidence(tokens []models.Token, def float64) []models.Token {
	out := make([]models.Token, len(tokens))
	copy(out, tokens)
	for i := range out {
		if out[i].Confidence == 0 {
			out[i].Confidence = def
		}
	}
	return out
}

func pageNumbers(tokens []models.Token) []int {
	seen := map[int]struct{}{}
	var pages []int
	for _, t := range tokens {
		if _, ok := seen[t.Page]; !ok {
			seen[t.Page] = struct{}{}
			pages = append(pages, t.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

func tokensForPage(tokens []models.Token, page int) []models.Token {
	var out []models.Token
	for _, t := range tokens {
		if t.Page == page {
			out = append(out, t)
		}
	}
	return out
}

func columnGroups(page int, rows []Row, bands []ColumnBand) []fraud.ColumnGroup {
	if len(bands) == 0 {
		return nil
	}
	byBand := make([][]models.Token, len(bands))
	for _, row := range rows {
		for _, t := range row.Tokens {
			i := bandIndex(bands, t)
			byBand[i] = append(byBand[i], t)
		}
	}
	var groups []fraud.ColumnGroup
	for i, toks := range byBand {
		if len(toks) == 0 {
			continue
		}
		groups = append(groups, fraud.ColumnGroup{
			Page:   page,
			Role:   bands[i].Role,
			Tokens: toks,
		})
	}
	return groups
}

func meanItemConfidence(items []models.LineItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.Confidence
	}
	return sum / float64(len(items))
}
