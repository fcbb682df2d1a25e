package extract

import (
	"sort"
	"strings"

	"billscan/pkg/models"
)

// Row is an ordered set of tokens on one page judged to lie on the same
// horizontal text line. Rows are created here and never mutated downstream.
type Row struct {
	Tokens   []models.Token
	Page     int
	YCenter  float64
	RowIndex int // top-to-bottom order on the page
}

// Text returns the row's tokens joined left-to-right.
func (r *Row) Text() string {
	parts := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// BBox returns the union bounding box of the row's tokens.
func (r *Row) BBox() models.BBox {
	if len(r.Tokens) == 0 {
		return models.BBox{}
	}
	bb := r.Tokens[0].BBox
	for _, t := range r.Tokens[1:] {
		bb.X1 = min(bb.X1, t.BBox.X1)
		bb.Y1 = min(bb.Y1, t.BBox.Y1)
		bb.X2 = max(bb.X2, t.BBox.X2)
		bb.Y2 = max(bb.Y2, t.BBox.Y2)
	}
	return bb
}

// rightmostNumber scans the row's tokens right-to-left and returns the
// first parseable numeric value.
func (r *Row) rightmostNumber() (float64, bool) {
	for i := len(r.Tokens) - 1; i >= 0; i-- {
		if v, ok := parseNumber(r.Tokens[i].Text); ok {
			return v, true
		}
	}
	return 0, false
}

// ClusterRows groups one page's tokens into horizontal rows.
//
// Tokens are sorted by vertical center, then greedily assigned to the last
// open row while the distance to the row's center stays within tolerance.
// The row center is the running mean of its members, so a slightly skewed
// page drifts with the text instead of splitting a physical line in two.
// Within each row tokens are ordered left-to-right.
func ClusterRows(tokens []models.Token, tolerance float64) []Row {
	if len(tokens) == 0 {
		return nil
	}

	sorted := make([]models.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, yj := sorted[i].BBox.CenterY(), sorted[j].BBox.CenterY()
		if yi != yj {
			return yi < yj
		}
		return sorted[i].BBox.X1 < sorted[j].BBox.X1
	})

	rows := []Row{{
		Tokens:  []models.Token{sorted[0]},
		Page:    sorted[0].Page,
		YCenter: sorted[0].BBox.CenterY(),
	}}

	for _, tok := range sorted[1:] {
		last := &rows[len(rows)-1]
		y := tok.BBox.CenterY()
		if abs(y-last.YCenter) <= tolerance {
			// Incremental mean keeps the tolerance anchored to the whole
			// line, not just the previous token.
			n := float64(len(last.Tokens))
			last.YCenter = (last.YCenter*n + y) / (n + 1)
			last.Tokens = append(last.Tokens, tok)
			continue
		}
		rows = append(rows, Row{
			Tokens:  []models.Token{tok},
			Page:    tok.Page,
			YCenter: y,
		})
	}

	for i := range rows {
		sort.SliceStable(rows[i].Tokens, func(a, b int) bool {
			return rows[i].Tokens[a].BBox.X1 < rows[i].Tokens[b].BBox.X1
		})
		rows[i].RowIndex = i
	}
	return rows
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
