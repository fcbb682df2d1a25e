package extract

import (
	"math"
	"sort"

	"billscan/pkg/models"
)

// ColumnBand is a horizontal x-range on a page carrying one semantic role.
// Bands are derived once per page from all rows, so a row with a blank cell
// still aligns with the page-wide grid.
type ColumnBand struct {
	Role models.ColumnRole
	XMin float64
	XMax float64
}

// DetectBands infers the column bands of a page from the left edges of all
// tokens across all rows. A horizontal gap of at least minGap between
// consecutive distinct x-positions marks a column boundary. Bands are then
// labeled by content heuristics; any band without at least weak majority
// evidence stays UNKNOWN and its tokens are folded into the description
// downstream rather than dropped.
func DetectBands(rows []Row, minGap float64) []ColumnBand {
	xs := collectLeftEdges(rows)
	if len(xs) == 0 {
		return nil
	}

	bands := []ColumnBand{{Role: models.RoleUnknown, XMin: xs[0], XMax: xs[0]}}
	for _, x := range xs[1:] {
		last := &bands[len(bands)-1]
		if x-last.XMax >= minGap {
			bands = append(bands, ColumnBand{Role: models.RoleUnknown, XMin: x, XMax: x})
			continue
		}
		last.XMax = x
	}

	classifyBands(bands, rows)
	return bands
}

func collectLeftEdges(rows []Row) []float64 {
	seen := map[float64]struct{}{}
	var xs []float64
	for _, row := range rows {
		for _, t := range row.Tokens {
			if _, ok := seen[t.BBox.X1]; ok {
				continue
			}
			seen[t.BBox.X1] = struct{}{}
			xs = append(xs, t.BBox.X1)
		}
	}
	sort.Float64s(xs)
	return xs
}

// bandIndex locates the band containing the token's left edge, falling
// back to the band with the nearest center.
func bandIndex(bands []ColumnBand, t models.Token) int {
	x := t.BBox.X1
	for i, b := range bands {
		if x >= b.XMin && x <= b.XMax {
			return i
		}
	}
	best, bestDist := 0, math.MaxFloat64
	for i, b := range bands {
		d := abs(x - (b.XMin+b.XMax)/2)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

type bandStats struct {
	total      int
	numeric    int
	alphabetic int
	smallInts  int // numeric values that look like item counts
	values     []float64
}

// classifyBands assigns semantic roles using content statistics gathered
// across every row on the page:
//
//   - the rightmost predominantly numeric band is AMOUNT
//   - a middle numeric band whose values are mostly small integers is
//     QUANTITY (leftmost such band when several qualify)
//   - remaining numeric bands between DESCRIPTION and AMOUNT are UNIT_PRICE
//   - the leftmost predominantly alphabetic band is DESCRIPTION
func classifyBands(bands []ColumnBand, rows []Row) {
	stats := make([]bandStats, len(bands))
	for _, row := range rows {
		for _, t := range row.Tokens {
			i := bandIndex(bands, t)
			stats[i].total++
			if isNumericText(t.Text) {
				stats[i].numeric++
				if v, ok := parseNumber(t.Text); ok {
					stats[i].values = append(stats[i].values, v)
					if v == math.Trunc(v) && v >= 0 && v < 100 {
						stats[i].smallInts++
					}
				}
			} else {
				stats[i].alphabetic++
			}
		}
	}

	numericMajority := func(i int) bool {
		return stats[i].total > 0 && stats[i].numeric*2 > stats[i].total
	}
	alphaMajority := func(i int) bool {
		return stats[i].total > 0 && stats[i].alphabetic*2 > stats[i].total
	}

	amountIdx := -1
	for i := len(bands) - 1; i >= 0; i-- {
		if numericMajority(i) {
			amountIdx = i
			bands[i].Role = models.RoleAmount
			break
		}
	}

	descIdx := -1
	for i := range bands {
		if i == amountIdx {
			continue
		}
		if alphaMajority(i) {
			descIdx = i
			bands[i].Role = models.RoleDescription
			break
		}
	}

	// Middle numeric bands. Quantities are small whole numbers far more
	// often than prices are, which separates the two when both are numeric.
	quantityAssigned := false
	for i := descIdx + 1; i < len(bands); i++ {
		if i == amountIdx || i == descIdx || !numericMajority(i) {
			continue
		}
		if !quantityAssigned && stats[i].smallInts*2 > stats[i].numeric {
			bands[i].Role = models.RoleQuantity
			quantityAssigned = true
			continue
		}
		if bands[i].Role == models.RoleUnknown {
			bands[i].Role = models.RoleUnitPrice
		}
	}
}

// roleFor maps a token onto its band's role. UNKNOWN folds into
// DESCRIPTION so no token is silently dropped.
func roleFor(bands []ColumnBand, t models.Token) models.ColumnRole {
	if len(bands) == 0 {
		return models.RoleDescription
	}
	role := bands[bandIndex(bands, t)].Role
	if role == models.RoleUnknown {
		return models.RoleDescription
	}
	return role
}
