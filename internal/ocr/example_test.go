package ocr_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"billscan/internal/ocr"
)

// Example demonstrates basic token extraction from a PDF.
func Example() {
	// Load .env file (using godotenv in main)
	// This should be done in your main() function:
	//
	// if err := godotenv.Load(); err != nil {
	//     log.Printf("Warning: Could not load .env file: %v", err)
	// }

	// Create context with timeout for OCR processing
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create token source - credentials handled internally from environment
	source, err := ocr.NewGoogleVisionTokenSource(ctx)
	if err != nil {
		log.Fatalf("Failed to create token source: %v", err)
	}
	defer source.Close()

	// Open PDF file
	pdfFile, err := os.Open("sample_bill.pdf")
	if err != nil {
		log.Fatalf("Failed to open PDF: %v", err)
	}
	defer pdfFile.Close()

	// Extract positioned tokens
	result, err := source.ExtractTokens(ctx, pdfFile)
	if err != nil {
		log.Fatalf("Failed to extract tokens: %v", err)
	}

	fmt.Printf("Extracted %d tokens from %d pages (mean confidence %.2f)\n",
		len(result.Tokens), result.PageCount, result.MeanConfidence)
}

// ExampleLoadTokenSet demonstrates offline extraction from a saved token file.
func ExampleLoadTokenSet() {
	tokenSet, err := ocr.LoadTokenSet("tokens.json")
	if err != nil {
		log.Fatalf("Failed to load token file: %v", err)
	}

	fmt.Printf("Loaded %d tokens over %d pages\n", len(tokenSet.Tokens), tokenSet.TotalPages)
}

// ExampleDocumentAITokenSource demonstrates the Document AI engine and its
// error handling.
func ExampleDocumentAITokenSource() {
	ctx := context.Background()

	source, err := ocr.NewDocumentAITokenSource(ctx)
	if err != nil {
		// Handle credential errors
		if err == ocr.ErrMissingCredentials {
			log.Fatalf("Set GOOGLE_PROJECT_ID and GOOGLE_PROCESSOR_ID, plus Google credentials")
		}
		log.Fatalf("Failed to create token source: %v", err)
	}
	defer source.Close()

	pdfFile, err := os.Open("large_bill.pdf")
	if err != nil {
		log.Fatalf("Failed to open PDF: %v", err)
	}
	defer pdfFile.Close()

	result, err := source.ExtractTokens(ctx, pdfFile)
	if err != nil {
		switch {
		case err == ocr.ErrDocumentTooLarge:
			log.Printf("PDF is too large for processing. Maximum size is 20MB.")
			return
		case err == ocr.ErrInvalidPDF:
			log.Printf("The file is not a valid PDF document.")
			return
		case err == ocr.ErrNoTokens:
			log.Printf("No readable text found in the document.")
			return
		default:
			log.Fatalf("Token extraction failed: %v", err)
		}
	}

	fmt.Printf("Successfully processed %d pages\n", result.PageCount)
}
