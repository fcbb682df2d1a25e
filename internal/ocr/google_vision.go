package ocr

import (
	"context"
	"fmt"
	"io"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"billscan/pkg/models"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

// GoogleVisionTokenSource implements TokenSource using Google Cloud Vision
// document text detection. Each detected word becomes one token with its
// bounding box and confidence; symbol-level detail is collapsed into words
// because the extraction core reasons about word geometry.
type GoogleVisionTokenSource struct {
	client *vision.ImageAnnotatorClient
}

// NewGoogleVisionTokenSource creates a token source with credentials from
// the environment. It expects either GOOGLE_APPLICATION_CREDENTIALS path or
// GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionTokenSource(ctx context.Context) (*GoogleVisionTokenSource, error) {
	const op = "NewGoogleVisionTokenSource"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, wrapErr(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, wrapErr(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, wrapErr(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &GoogleVisionTokenSource{client: client}, nil
}

// NewGoogleVisionTokenSourceWithClient creates a token source with an
// explicit client (for testing).
func NewGoogleVisionTokenSourceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionTokenSource {
	return &GoogleVisionTokenSource{client: client}
}

// ExtractTokens runs document text detection on a PDF and returns one
// token per recognized word.
func (g *GoogleVisionTokenSource) ExtractTokens(ctx context.Context, document io.Reader) (*TokenResult, error) {
	const op = "ExtractTokens"

	pdfBytes, err := io.ReadAll(document)
	if err != nil {
		return nil, wrapErr(op, err, "failed to read document data")
	}
	if len(pdfBytes) > MaxFileSizeBytes {
		return nil, wrapErr(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, wrapErr(op, ErrInvalidPDF, "missing PDF header")
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, wrapErr(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, wrapErr(op, ErrOCRFailed, "no response from Vision API")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, wrapErr(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	return tokensFromVisionResponse(fileResp)
}

// tokensFromVisionResponse walks page > block > paragraph > word and emits
// one token per word.
func tokensFromVisionResponse(fileResp *visionpb.AnnotateFileResponse) (*TokenResult, error) {
	pageCount := len(fileResp.Responses)
	if pageCount == 0 {
		return nil, ErrNoTokens
	}
	if pageCount > MaxPagesSync {
		return nil, wrapErr("tokensFromVisionResponse", ErrTooManyPages, fmt.Sprintf("document has %d pages", pageCount))
	}

	var tokens []models.Token
	var confSum float64

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("error processing page %d: %s", pageIdx+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		for _, pageInfo := range page.FullTextAnnotation.Pages {
			for _, block := range pageInfo.Blocks {
				for _, paragraph := range block.Paragraphs {
					for _, word := range paragraph.Words {
						tok, ok := wordToken(word, pageIdx+1, pageInfo)
						if !ok {
							continue
						}
						tokens = append(tokens, tok)
						confSum += tok.Confidence
					}
				}
			}
		}
	}

	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	return &TokenResult{
		Tokens:         tokens,
		PageCount:      pageCount,
		MeanConfidence: confSum / float64(len(tokens)),
	}, nil
}

func wordToken(word *visionpb.Word, page int, pageInfo *visionpb.Page) (models.Token, bool) {
	var text string
	for _, sym := range word.Symbols {
		text += sym.Text
	}
	if text == "" {
		return models.Token{}, false
	}

	bbox, ok := boundsFromPoly(word.BoundingBox, pageInfo)
	if !ok {
		return models.Token{}, false
	}

	return models.Token{
		Text:       text,
		BBox:       bbox,
		Page:       page,
		Confidence: float64(word.Confidence),
	}, true
}

// boundsFromPoly converts a Vision bounding poly to an axis-aligned box.
// Vision reports absolute vertices for images and normalized vertices for
// PDFs; normalized coordinates are scaled by the page dimensions.
func boundsFromPoly(poly *visionpb.BoundingPoly, pageInfo *visionpb.Page) (models.BBox, bool) {
	if poly == nil {
		return models.BBox{}, false
	}

	var xs, ys []float64
	for _, v := range poly.Vertices {
		xs = append(xs, float64(v.X))
		ys = append(ys, float64(v.Y))
	}
	if len(xs) == 0 {
		w, h := float64(pageInfo.Width), float64(pageInfo.Height)
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

// Close closes the underlying Vision client.
func (g *GoogleVisionTokenSource) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
