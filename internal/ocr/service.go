// Package ocr turns documents into positioned OCR tokens for the
// extraction core.
//
// Two cloud providers are supported behind one interface: Google Cloud
// Vision (document text detection, word-level tokens) and Google Document
// AI (OCR processor page tokens). A JSON token-file loader covers offline
// input and testing; its format is the TokenSet interchange shape in
// pkg/models.
//
// Required Environment Variables (cloud providers):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Provider Limitations:
//   - Maximum file size: 20MB for synchronous processing
//   - Vision: maximum 5 pages per synchronous request
//   - Supported formats: PDF, TIFF
package ocr

import (
	"context"
	"io"

	"billscan/pkg/models"
)

// TokenSource extracts positioned tokens from a document.
type TokenSource interface {
	// ExtractTokens runs OCR on the document and returns every recognized
	// word as a token with bounding box, page number and confidence.
	ExtractTokens(ctx context.Context, document io.Reader) (*TokenResult, error)
}

// TokenResult is the output of a token source.
type TokenResult struct {
	// Tokens are the recognized words in provider reading order.
	Tokens []models.Token `json:"tokens"`

	// PageCount is the number of pages processed.
	PageCount int `json:"page_count"`

	// MeanConfidence is the average recognition confidence across tokens.
	MeanConfidence float64 `json:"mean_confidence"`
}

// TokenSet converts the result into the extraction core's input contract.
func (r *TokenResult) TokenSet() models.TokenSet {
	return models.TokenSet{Tokens: r.Tokens, TotalPages: r.PageCount}
}
