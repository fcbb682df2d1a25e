package extract

import "billscan/pkg/models"

// TotalKeyword is one entry of the total-detection vocabulary. Higher
// priority wins when several keywords match across a document.
type TotalKeyword struct {
	Phrase   string
	Kind     models.TotalKind
	Priority int
}

// Config collects every tunable threshold used during one extraction.
// A snapshot is taken at the start of a request; changing a value never
// requires code changes elsewhere.
type Config struct {
	// MinOCRConfidence is the floor below which a token is flagged as
	// low-confidence by fraud detection.
	MinOCRConfidence float64

	// LowConfidenceThreshold marks line items whose combined confidence
	// warrants a processing note.
	LowConfidenceThreshold float64

	// MinReadableConfidence is the mean token confidence below which the
	// whole document is rejected as unreadable.
	MinReadableConfidence float64

	// DefaultTokenConfidence substitutes for tokens that arrive without a
	// confidence score (zero value). Missing confidence is degraded input,
	// not an error.
	DefaultTokenConfidence float64

	// ArithmeticTolerancePercent is the allowed deviation of quantity times
	// unit price from the stated amount, as a percentage of the amount.
	ArithmeticTolerancePercent float64

	// TotalReconciliationTolerance is the absolute tolerance when comparing
	// summed line items against the detected final total.
	TotalReconciliationTolerance float64

	// TotalReconciliationRelativePercent is the relative tolerance knob for
	// the same comparison. The effective tolerance is the larger of the
	// absolute and the relative value.
	TotalReconciliationRelativePercent float64

	// YCoordinateTolerance groups tokens into rows by vertical proximity.
	YCoordinateTolerance float64

	// MinColumnGap is the horizontal gap that separates two column bands.
	MinColumnGap float64

	// FontHeightVarianceThreshold flags a token whose bbox height deviates
	// from its column-band median by more than this ratio.
	FontHeightVarianceThreshold float64

	// BBoxAreaVarianceThreshold flags a token whose bbox area exceeds the
	// band median by more than this ratio.
	BBoxAreaVarianceThreshold float64

	// DuplicateBBoxIoU is the overlap above which two distinct rows are
	// considered the same physical region (overwrite suspicion).
	DuplicateBBoxIoU float64

	// MaxPlausibleLineAmount bounds the expected range of a single bill
	// line; amounts outside it incur a confidence penalty.
	MaxPlausibleLineAmount float64

	// Confidence weighting per source: raw OCR, structural completeness,
	// column-mapping certainty. Should sum to 1.
	WeightOCR        float64
	WeightStructural float64
	WeightColumn     float64

	// Currency reported on total candidates.
	Currency string

	// TotalKeywords is the ordered vocabulary for total detection.
	TotalKeywords []TotalKeyword

	// HeaderKeywords identify a column-header row so it is not mistaken
	// for a line item.
	HeaderKeywords []string

	// PageLabels carries advisory page-type labels keyed by page number.
	// Extraction works identically with none supplied.
	PageLabels map[int]models.PageType
}

// DefaultConfig returns the production thresholds. Values are tuned
// against real OCR noise on scanned Indian hospital bills.
func DefaultConfig() Config {
	return Config{
		MinOCRConfidence:                   0.60,
		LowConfidenceThreshold:             0.70,
		MinReadableConfidence:              0.30,
		DefaultTokenConfidence:             0.50,
		ArithmeticTolerancePercent:         3.0,
		TotalReconciliationTolerance:       5.0,
		TotalReconciliationRelativePercent: 0.5,
		YCoordinateTolerance:               5.0,
		MinColumnGap:                       20.0,
		FontHeightVarianceThreshold:        2.0,
		BBoxAreaVarianceThreshold:          3.0,
		DuplicateBBoxIoU:                   0.85,
		MaxPlausibleLineAmount:             10_000_000,
		WeightOCR:                          0.4,
		WeightStructural:                   0.3,
		WeightColumn:                       0.3,
		Currency:                           "INR",
		TotalKeywords:                      defaultTotalKeywords(),
		HeaderKeywords: []string{
			"particulars", "description", "item", "service", "procedure",
			"qty", "quantity", "rate", "unit price", "amount",
		},
	}
}

func defaultTotalKeywords() []TotalKeyword {
	return []TotalKeyword{
		{Phrase: "grand total", Kind: models.KindFinalTotal, Priority: 70},
		{Phrase: "net payable", Kind: models.KindFinalTotal, Priority: 60},
		{Phrase: "amount to pay", Kind: models.KindFinalTotal, Priority: 50},
		{Phrase: "total amount", Kind: models.KindFinalTotal, Priority: 40},
		{Phrase: "final total", Kind: models.KindFinalTotal, Priority: 30},
		{Phrase: "total payable", Kind: models.KindFinalTotal, Priority: 20},
		{Phrase: "amount payable", Kind: models.KindFinalTotal, Priority: 15},
		{Phrase: "total", Kind: models.KindFinalTotal, Priority: 10},

		{Phrase: "subtotal", Kind: models.KindSubtotal, Priority: 16},
		{Phrase: "sub total", Kind: models.KindSubtotal, Priority: 15},
		{Phrase: "room charges total", Kind: models.KindSubtotal, Priority: 13},
		{Phrase: "consultation charges", Kind: models.KindSubtotal, Priority: 12},
		{Phrase: "pharmacy charges", Kind: models.KindSubtotal, Priority: 11},
		{Phrase: "lab charges", Kind: models.KindSubtotal, Priority: 10},
		{Phrase: "procedure charges", Kind: models.KindSubtotal, Priority: 9},
	}
}

// keywordsForPage returns the vocabulary biased by the advisory page label,
// if any. A pharmacy page boosts pharmacy-related subtotal keywords so that
// a "Pharmacy Charges" row outranks generic subtotals there.
func (c *Config) keywordsForPage(page int) []TotalKeyword {
	label, ok := c.PageLabels[page]
	if !ok || label != models.PagePharmacy {
		return c.TotalKeywords
	}
	biased := make([]TotalKeyword, len(c.TotalKeywords))
	copy(biased, c.TotalKeywords)
	for i := range biased {
		if biased[i].Kind == models.KindSubtotal && biased[i].Phrase == "pharmacy charges" {
			biased[i].Priority += 5
		}
	}
	return biased
}
