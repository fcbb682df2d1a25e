package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"billscan/internal/logger"
	"billscan/pkg/models"
)

// DocumentAIConfig holds configuration for the Document AI token source.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu"). Must match
	// where the processor was created.
	Location string

	// ProcessorID is the Document AI OCR processor ID.
	ProcessorID string

	// ProcessorVersion selects a particular processor version; empty uses
	// the default.
	ProcessorVersion string

	// Timeout bounds a single ProcessDocument call. Default 60s.
	Timeout time.Duration
}

// DocumentAITokenSource implements TokenSource using a Document AI OCR
// processor. Document AI reports token geometry per page, which maps
// directly onto the extraction core's input contract.
type DocumentAITokenSource struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAITokenSource creates a token source with credentials from
// the environment.
// Requires: GOOGLE_PROJECT_ID (or GOOGLE_CLOUD_PROJECT), DOCUMENT_AI_PROCESSOR_ID.
// Optional: GOOGLE_LOCATION (defaults to "us").
func NewDocumentAITokenSource(ctx context.Context) (*DocumentAITokenSource, error) {
	const op = "NewDocumentAITokenSource"

	config := DocumentAIConfig{
		ProjectID:   firstEnv("GOOGLE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
		Location:    firstEnv("GOOGLE_LOCATION", "GOOGLE_CLOUD_LOCATION"),
		ProcessorID: firstEnv("GOOGLE_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID"),
		Timeout:     60 * time.Second,
	}
	if config.ProjectID == "" {
		return nil, wrapErr(op, ErrMissingCredentials, "GOOGLE_PROJECT_ID or GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, wrapErr(op, ErrMissingCredentials, "GOOGLE_PROCESSOR_ID or DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, wrapErr(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAITokenSource{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// NewDocumentAITokenSourceWithConfig creates a token source with explicit
// config and client (for testing).
func NewDocumentAITokenSourceWithConfig(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAITokenSource {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAITokenSource{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// ExtractTokens processes the document and returns one token per Document
// AI page token.
func (s *DocumentAITokenSource) ExtractTokens(ctx context.Context, document io.Reader) (*TokenResult, error) {
	const op = "ExtractTokens"

	data, err := io.ReadAll(document)
	if err != nil {
		return nil, wrapErr(op, err, "failed to read document data")
	}
	if len(data) > MaxFileSizeBytes {
		return nil, wrapErr(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return nil, wrapErr(op, ErrInvalidPDF, "missing PDF header")
	}

	processCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: s.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := s.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, s.classifyError(op, err)
	}
	if resp.Document == nil {
		return nil, wrapErr(op, ErrOCRFailed, "no document in response")
	}

	result, err := tokensFromDocument(resp.Document)
	if err != nil {
		return nil, wrapErr(op, err, "failed to extract tokens")
	}
	s.log.Info().
		Int("pages", result.PageCount).
		Int("tokens", len(result.Tokens)).
		Float64("mean_confidence", result.MeanConfidence).
		Msg("Document AI token extraction complete")
	return result, nil
}

func tokensFromDocument(doc *documentaipb.Document) (*TokenResult, error) {
	var tokens []models.Token
	var confSum float64

	for pageIdx, page := range doc.Pages {
		for _, pageToken := range page.Tokens {
			layout := pageToken.Layout
			if layout == nil {
				continue
			}
			text := strings.TrimSpace(anchorText(doc.Text, layout.TextAnchor))
			if text == "" {
				continue
			}
			bbox, ok := boundsFromDocumentPoly(layout.BoundingPoly, page)
			if !ok {
				continue
			}
			tok := models.Token{
				Text:       text,
				BBox:       bbox,
				Page:       pageIdx + 1,
				Confidence: float64(layout.Confidence),
			}
			tokens = append(tokens, tok)
			confSum += tok.Confidence
		}
	}

	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	return &TokenResult{
		Tokens:         tokens,
		PageCount:      len(doc.Pages),
		MeanConfidence: confSum / float64(len(tokens)),
	}, nil
}

// anchorText resolves a text anchor against the document's full text.
func anchorText(fullText string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var sb strings.Builder
	for _, seg := range anchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(fullText) || start >= end {
			continue
		}
		sb.WriteString(fullText[start:end])
	}
	return sb.String()
}

func boundsFromDocumentPoly(poly *documentaipb.BoundingPoly, page *documentaipb.Document_Page) (models.BBox, bool) {
	if poly == nil {
		return models.BBox{}, false
	}

	var xs, ys []float64
	for _, v := range poly.Vertices {
		xs = append(xs, float64(v.X))
		ys = append(ys, float64(v.Y))
	}
	if len(xs) == 0 && page.Dimension != nil {
		w, h := float64(page.Dimension.Width), float64(page.Dimension.Height)
		for _, v := range poly.NormalizedVertices {
			xs = append(xs, float64(v.X)*w)
			ys = append(ys, float64(v.Y)*h)
		}
	}
	if len(xs) == 0 {
		return models.BBox{}, false
	}

	bb := models.BBox{X1: xs[0], Y1: ys[0], X2: xs[0], Y2: ys[0]}
	for i := 1; i < len(xs); i++ {
		bb.X1 = min(bb.X1, xs[i])
		bb.Y1 = min(bb.Y1, ys[i])
		bb.X2 = max(bb.X2, xs[i])
		bb.Y2 = max(bb.Y2, ys[i])
	}
	return bb, true
}

func (s *DocumentAITokenSource) processorName() string {
	if s.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			s.config.ProjectID, s.config.Location, s.config.ProcessorID, s.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		s.config.ProjectID, s.config.Location, s.config.ProcessorID)
}

// classifyError maps Document AI failures onto the package sentinels.
func (s *DocumentAITokenSource) classifyError(op string, err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return wrapErr(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "NOT_FOUND"):
		return wrapErr(op, ErrOCRFailed, fmt.Sprintf("processor not found: %s", s.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return wrapErr(op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "context deadline exceeded"):
		return wrapErr(op, context.DeadlineExceeded, "processing timeout")
	default:
		return wrapErr(op, ErrOCRFailed, errStr)
	}
}

// Close closes the underlying Document AI client.
func (s *DocumentAITokenSource) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
