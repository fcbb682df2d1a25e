package ocr

import (
	"errors"
	"fmt"
)

// Common token-extraction errors
var (
	// ErrDocumentTooLarge is returned when the document exceeds the provider's
	// synchronous processing limit (20MB for both Vision and Document AI).
	ErrDocumentTooLarge = errors.New("document exceeds the maximum size limit (20MB)")

	// ErrInvalidPDF is returned when the provided data is not a valid PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrOCRFailed is returned when the OCR provider fails to process the document.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrTooManyPages is returned when the PDF has too many pages for
	// synchronous Vision processing (5 pages).
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrNoTokens is returned when the provider detected no positioned text
	// in the document.
	ErrNoTokens = errors.New("document contains no recognizable text tokens")

	// ErrInvalidTokenFile is returned when a token interchange file cannot
	// be decoded.
	ErrInvalidTokenFile = errors.New("invalid token file")
)

// TokenSourceError wraps errors with context about the failing token source.
type TokenSourceError struct {
	// Op is the operation that failed (e.g., "ExtractTokens", "LoadTokenSet").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *TokenSourceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *TokenSourceError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *TokenSourceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapErr wraps an error as a TokenSourceError unless it already is one.
func wrapErr(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var tsErr *TokenSourceError
	if errors.As(err, &tsErr) {
		return err
	}
	return &TokenSourceError{Op: op, Err: err, Details: details}
}
