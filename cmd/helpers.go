package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"billscan/internal/config"
	"billscan/internal/ocr"
)

// validatePDFFile checks if the file exists, is readable, and appears to be a PDF
func validatePDFFile(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", pdfPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", pdfPath).
			Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", pdfPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// createTokenSource creates the OCR token source selected by --engine.
func createTokenSource(ctx context.Context, engine string, log zerolog.Logger) (ocr.TokenSource, func() error, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""

	if !hasCredentials {
		log.Error().Msg("Google Cloud credentials not configured")
		return nil, nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. Use Application Default Credentials (if gcloud is configured):\n" +
			"   gcloud auth application-default login\n\n" +
			"4. Check that your .env file contains the credentials variables")
	}

	switch engine {
	case "vision":
		src, err := ocr.NewGoogleVisionTokenSource(ctx)
		if err != nil {
			return nil, nil, wrapCredentialError(err, log)
		}
		return src, src.Close, nil
	case "documentai":
		src, err := ocr.NewDocumentAITokenSource(ctx)
		if err != nil {
			return nil, nil, wrapCredentialError(err, log)
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown OCR engine %q (expected vision or documentai)", engine)
	}
}

func wrapCredentialError(err error, log zerolog.Logger) error {
	if errors.Is(err, ocr.ErrMissingCredentials) {
		log.Error().
			Err(err).
			Msg("Google Cloud credentials validation failed")
		return fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n"+
			"1. Credentials file exists and is readable\n"+
			"2. JSON format is valid\n"+
			"3. Service account has proper permissions\n\n"+
			"Original error: %w", err)
	}
	log.Error().
		Err(err).
		Msg("Failed to create token source")
	return fmt.Errorf("failed to create token source: %w", err)
}

// handleTokenSourceError provides user-friendly error messages for OCR failures
func handleTokenSourceError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Token extraction failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, ocr.ErrDocumentTooLarge):
		return fmt.Errorf("PDF file is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages (maximum 5 pages for Vision). Try splitting into smaller files or use --engine documentai")
	case errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrNoTokens):
		return fmt.Errorf("no readable text found in the document. The PDF may contain only images or be corrupted")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "auth:"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.\n\nOriginal error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED") ||
		strings.Contains(errStr, "permission"):
		return fmt.Errorf("permission denied. Ensure the service account has access to the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("token extraction failed: %w", err)
	}
}

// loadConfig loads env-backed configuration, falling back to defaults when
// validation fails so offline commands keep working.
func loadConfig(log zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Configuration invalid, using defaults")
		return nil
	}
	return cfg
}

// writeJSON marshals v and writes it to the output path, or stdout when
// the path is empty.
func writeJSON(v any, outputPath string, pretty bool) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}
