package models

import (
	"encoding/json"
	"fmt"
)

// BBox is an axis-aligned bounding box in page coordinates.
// It serializes as the four-element array [x1, y1, x2, y2] used by
// OCR token interchange files.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area.
func (b BBox) Area() float64 { return b.Width() * b.Height() }

// CenterX returns the horizontal center of the box.
func (b BBox) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// CenterY returns the vertical center of the box.
func (b BBox) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// IoU returns the intersection-over-union overlap of two boxes,
// 0 when they are disjoint and 1 when they coincide.
func (b BBox) IoU(o BBox) float64 {
	ix := min(b.X2, o.X2) - max(b.X1, o.X1)
	iy := min(b.Y2, o.Y2) - max(b.Y1, o.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON decodes a [x1, y1, x2, y2] array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	if len(coords) != 4 {
		return fmt.Errorf("bbox: expected 4 coordinates, got %d", len(coords))
	}
	b.X1, b.Y1, b.X2, b.Y2 = coords[0], coords[1], coords[2], coords[3]
	return nil
}

// Token is a single OCR-recognized text fragment with its position on the
// page and the recognition confidence reported by the OCR engine.
// Tokens are immutable once ingested.
type Token struct {
	Text       string  `json:"text"`
	BBox       BBox    `json:"bbox"`
	Page       int     `json:"page"`       // 1-based page number
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
}

// TokenSet is the input contract of the extraction core: an unordered
// collection of tokens for one document. Pages need not be contiguous and
// no ordering is required; the core sorts internally.
type TokenSet struct {
	Tokens     []Token        `json:"tokens"`
	TotalPages int            `json:"total_pages,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ColumnRole is the semantic role of a column band on a page.
type ColumnRole string

const (
	RoleDescription ColumnRole = "DESCRIPTION"
	RoleQuantity    ColumnRole = "QUANTITY"
	RoleUnitPrice   ColumnRole = "UNIT_PRICE"
	RoleAmount      ColumnRole = "AMOUNT"
	RoleUnknown     ColumnRole = "UNKNOWN"
)

// LineItem is one billed entry reconstructed from a table row.
// Quantity, unit price and amount are each optional because OCR may miss a
// cell; Derived lists the fields that were computed rather than observed.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Page        int      `json:"page"`
	RowIndex    int      `json:"row_index"`
	Confidence  float64  `json:"confidence"`
	Derived     []string `json:"derived,omitempty"`
}

// HasObserved reports whether the named field was read from the document
// rather than derived from the other two numeric fields.
func (li *LineItem) HasObserved(field string) bool {
	for _, d := range li.Derived {
		if d == field {
			return false
		}
	}
	switch field {
	case "quantity":
		return li.Quantity != nil
	case "unit_price":
		return li.UnitPrice != nil
	case "amount":
		return li.Amount != nil
	}
	return false
}

// TotalKind distinguishes sub-totals from final-total candidates.
type TotalKind string

const (
	KindSubtotal   TotalKind = "SUBTOTAL"
	KindFinalTotal TotalKind = "FINAL_TOTAL"
)

// TotalCandidate is a total-like row detected by keyword match. Multiple
// candidates may exist per bill; exactly one FINAL_TOTAL is selected.
type TotalCandidate struct {
	Label    string    `json:"label"`
	Value    float64   `json:"value"`
	Currency string    `json:"currency"`
	Page     int       `json:"page"`
	Kind     TotalKind `json:"kind"`
	Priority int       `json:"priority"` // higher wins
	RowIndex int       `json:"row_index"`
}

// ReconciliationStatus is the outcome of comparing summed line items
// against the detected final total.
type ReconciliationStatus string

const (
	ReconciliationMatched        ReconciliationStatus = "MATCHED"
	ReconciliationMismatch       ReconciliationStatus = "MISMATCH"
	ReconciliationUnreconcilable ReconciliationStatus = "UNRECONCILABLE"
)

// Aggregates holds derived totals; recomputed whenever line items or the
// selected final total change, never independently mutated.
type Aggregates struct {
	LineItemsTotal       float64              `json:"line_items_total"`
	DetectedFinalTotal   *float64             `json:"detected_final_total,omitempty"`
	Difference           float64              `json:"difference"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status"`
}

// FraudSignalKind enumerates anomaly categories.
type FraudSignalKind string

const (
	SignalArithmeticMismatch FraudSignalKind = "ARITHMETIC_MISMATCH"
	SignalFontInconsistency  FraudSignalKind = "FONT_INCONSISTENCY"
	SignalOverwriteDetected  FraudSignalKind = "OVERWRITE_DETECTED"
	SignalOCRLowConfidence   FraudSignalKind = "OCR_LOW_CONFIDENCE"
	SignalStructuralAnomaly  FraudSignalKind = "STRUCTURAL_ANOMALY"
)

// Severity ranks fraud signals.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// FraudSignal is a typed, severity-ranked anomaly flag attached to a bill.
// The list on a bill is append-only; duplicates are never removed.
type FraudSignal struct {
	Kind     FraudSignalKind `json:"kind"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	Evidence map[string]any  `json:"evidence,omitempty"`
	Page     int             `json:"page,omitempty"`
	RowIndex *int            `json:"row_index,omitempty"`
}

// PageType is an advisory page classification label. Extraction works with
// no label supplied; a label only biases keyword selection.
type PageType string

const (
	PageBillDetail PageType = "Bill Detail"
	PageFinalBill  PageType = "Final Bill"
	PagePharmacy   PageType = "Pharmacy"
)

// Bill owns everything reconstructed for one extraction request.
type Bill struct {
	LineItems       []LineItem       `json:"line_items"`
	TotalCandidates []TotalCandidate `json:"total_candidates"`
	FinalTotal      *TotalCandidate  `json:"final_total,omitempty"`
	Aggregates      Aggregates       `json:"aggregates"`
	FraudSignals    []FraudSignal    `json:"fraud_signals"`
}

// Status of an extraction request.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// FailureReasonUnreadable is the single machine-readable reason emitted when
// the document has no extractable bill structure at all.
const FailureReasonUnreadable = "UNREADABLE_OR_INVALID_DOCUMENT"

// Meta carries processing metadata alongside the bill.
type Meta struct {
	Status          Status   `json:"status"`
	PagesProcessed  int      `json:"pages_processed,omitempty"`
	ModelConfidence float64  `json:"model_confidence,omitempty"`
	ProcessingNotes []string `json:"processing_notes,omitempty"`
	Reason          string   `json:"reason,omitempty"` // set when Status is FAILED
}

// ExtractionResult is the complete output of one extraction request.
// Bill is nil when Status is FAILED.
type ExtractionResult struct {
	Meta Meta  `json:"meta"`
	Bill *Bill `json:"bill,omitempty"`
}

// Float64 returns a pointer to v; helper for optional numeric fields.
func Float64(v float64) *float64 { return &v }
