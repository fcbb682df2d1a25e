package ocr

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"billscan/pkg/models"
)

// LoadTokenSet reads a token interchange file. The file holds a JSON
// TokenSet: a token array plus page count, with bounding boxes encoded
// as [x1, y1, x2, y2] arrays.
func LoadTokenSet(path string) (models.TokenSet, error) {
	const op = "LoadTokenSet"

	f, err := os.Open(path)
	if err != nil {
		return models.TokenSet{}, wrapErr(op, err, fmt.Sprintf("cannot open %s", path))
	}
	defer f.Close()

	return DecodeTokenSet(f)
}

// DecodeTokenSet decodes a JSON TokenSet from a reader.
func DecodeTokenSet(r io.Reader) (models.TokenSet, error) {
	const op = "DecodeTokenSet"

	var ts models.TokenSet
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ts); err != nil {
		return models.TokenSet{}, wrapErr(op, ErrInvalidTokenFile, err.Error())
	}

	for i, tok := range ts.Tokens {
		if tok.Page <= 0 {
			return models.TokenSet{}, wrapErr(op, ErrInvalidTokenFile,
				fmt.Sprintf("token %d has non-positive page %d", i, tok.Page))
		}
		if tok.BBox.X2 < tok.BBox.X1 || tok.BBox.Y2 < tok.BBox.Y1 {
			return models.TokenSet{}, wrapErr(op, ErrInvalidTokenFile,
				fmt.Sprintf("token %d has inverted bounding box", i))
		}
	}

	if ts.TotalPages == 0 {
		for _, tok := range ts.Tokens {
			if tok.Page > ts.TotalPages {
				ts.TotalPages = tok.Page
			}
		}
	}
	return ts, nil
}
