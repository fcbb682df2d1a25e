package extract

import (
	"strings"

	"billscan/pkg/models"
)

// BuildLineItem converts a classified row into a line item, or returns nil
// when the row is not one (separator, header, or no content at all).
//
// Rules, in order:
//  1. tokens mapped to DESCRIPTION (including folded UNKNOWN) concatenate
//     into the description; a row with neither description nor numeric
//     content is rejected;
//  2. QUANTITY/UNIT_PRICE/AMOUNT cells are parsed with OCR-tolerant numeric
//     normalization;
//  3. exactly one missing numeric field may be derived from the other two;
//     with two missing the row is still accepted, at a confidence penalty;
//  4. confidence blends mean token OCR confidence, a derivation penalty and
//     a plausibility penalty on the amount.
//
// Total/sub-total keyword rows must be routed to total detection before
// this is called; header rows are rejected here.
func BuildLineItem(row Row, bands []ColumnBand, cfg *Config) *models.LineItem {
	var descParts []string
	var qtyParts, rateParts, amountParts []string

	for _, t := range row.Tokens {
		switch roleFor(bands, t) {
		case models.RoleQuantity:
			qtyParts = append(qtyParts, t.Text)
		case models.RoleUnitPrice:
			rateParts = append(rateParts, t.Text)
		case models.RoleAmount:
			amountParts = append(amountParts, t.Text)
		default:
			descParts = append(descParts, t.Text)
		}
	}

	description := strings.TrimSpace(strings.Join(descParts, " "))
	quantity := parseCell(qtyParts)
	unitPrice := parseCell(rateParts)
	amount := parseCell(amountParts)

	numericFields := 0
	for _, f := range []*float64{quantity, unitPrice, amount} {
		if f != nil {
			numericFields++
		}
	}

	// A row with no numeric content cannot carry or derive an amount:
	// separator, section label, or decorative rule.
	if numericFields == 0 {
		return nil
	}
	// Column-header rows occasionally carry stray numbers; keyword density
	// identifies them.
	if isHeaderRow(description, cfg) {
		return nil
	}

	item := &models.LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      amount,
		Page:        row.Page,
		RowIndex:    row.RowIndex,
	}

	deriveMissingField(item)

	item.Confidence = scoreConfidence(row, item, numericFields, cfg)
	return item
}

func parseCell(parts []string) *float64 {
	if len(parts) == 0 {
		return nil
	}
	if v, ok := parseNumber(strings.Join(parts, " ")); ok {
		return models.Float64(v)
	}
	return nil
}

func isHeaderRow(text string, cfg *Config) bool {
	norm := normalizeText(text)
	hits := 0
	for _, kw := range cfg.HeaderKeywords {
		if strings.Contains(norm, kw) {
			hits++
		}
	}
	return hits >= 2
}

// deriveMissingField fills in at most one of quantity, unit price or amount
// when the other two were observed. Rows missing two fields are left as-is;
// the confidence penalty covers them.
func deriveMissingField(item *models.LineItem) {
	switch {
	case item.Amount == nil && item.Quantity != nil && item.UnitPrice != nil:
		item.Amount = models.Float64(*item.Quantity * *item.UnitPrice)
		item.Derived = append(item.Derived, "amount")
	case item.Quantity == nil && item.Amount != nil && item.UnitPrice != nil && *item.UnitPrice != 0:
		item.Quantity = models.Float64(*item.Amount / *item.UnitPrice)
		item.Derived = append(item.Derived, "quantity")
	case item.UnitPrice == nil && item.Amount != nil && item.Quantity != nil && *item.Quantity != 0:
		item.UnitPrice = models.Float64(*item.Amount / *item.Quantity)
		item.Derived = append(item.Derived, "unit_price")
	}
}

// scoreConfidence is the weighted blend described in the package rules.
// The result is clamped to [0, 1]; low rows are flagged upstream, never
// dropped.
func scoreConfidence(row Row, item *models.LineItem, observedFields int, cfg *Config) float64 {
	var sum float64
	for _, t := range row.Tokens {
		c := t.Confidence
		if c == 0 {
			c = cfg.DefaultTokenConfidence
		}
		sum += c
	}
	ocr := sum / float64(len(row.Tokens))

	structural := 1.0
	structural -= 0.2 * float64(len(item.Derived))
	if observedFields <= 1 {
		// Two of three numeric fields missing and underivable.
		structural -= 0.3
	}

	column := 1.0
	if item.Amount != nil && (*item.Amount < 0 || *item.Amount > cfg.MaxPlausibleLineAmount) {
		column -= 0.3
	}
	if item.Description == "" {
		column -= 0.2
	}

	score := cfg.WeightOCR*ocr + cfg.WeightStructural*structural + cfg.WeightColumn*column
	return min(1.0, max(0.0, score))
}
