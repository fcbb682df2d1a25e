package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"billscan/internal/extract"
	"billscan/internal/logger"
	"billscan/internal/pageclass"
)

var scanCmd = &cobra.Command{
	Use:   "scan [pdf-file]",
	Short: "OCR a bill PDF and run the full extraction pipeline",
	Long: `Process a scanned bill PDF end to end: run cloud OCR to get positioned
tokens, classify the pages, reconstruct line items and totals, reconcile
against the stated total and flag tampering indicators.

Two OCR engines are supported:
  vision      Google Cloud Vision document text detection (default)
  documentai  Google Document AI OCR processor

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string

For --engine documentai additionally:
  GOOGLE_PROJECT_ID, GOOGLE_PROCESSOR_ID (and optionally GOOGLE_LOCATION)

For --llm page classification:
  OPENAI_API_KEY`,
	Example: `  # Scan with Vision OCR, result to stdout
  billscan scan bill.pdf

  # Scan with Document AI and save the result
  billscan scan bill.pdf --engine documentai -o result.json

  # Keep the intermediate tokens for later offline runs
  billscan scan bill.pdf --tokens-out tokens.json

  # Classify pages with an LLM instead of keyword rules
  billscan scan bill.pdf --llm`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
	scanCmd.Flags().String("engine", "vision", "OCR engine: vision or documentai")
	scanCmd.Flags().String("tokens-out", "", "Also write the extracted tokens to this path")
	scanCmd.Flags().Bool("llm", false, "Use LLM page classification (falls back to rules)")
	scanCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")
	engine, _ := cmd.Flags().GetString("engine")
	tokensOut, _ := cmd.Flags().GetString("tokens-out")
	useLLM, _ := cmd.Flags().GetBool("llm")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]
	log.Info().
		Str("file", pdfPath).
		Str("engine", engine).
		Bool("llm", useLLM).
		Msg("Starting scan")

	fileInfo, err := validatePDFFile(pdfPath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	source, closeSource, err := createTokenSource(ctx, engine, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeSource(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close token source")
		}
	}()

	pdfFile, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer func() {
		if closeErr := pdfFile.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close PDF file")
		}
	}()

	startTime := time.Now()
	tokenResult, err := source.ExtractTokens(ctx, pdfFile)
	if err != nil {
		return handleTokenSourceError(err, log)
	}
	log.Info().
		Int("pages", tokenResult.PageCount).
		Int("tokens", len(tokenResult.Tokens)).
		Int64("size", fileInfo.Size()).
		Dur("duration", time.Since(startTime)).
		Msg("OCR completed")

	tokenSet := tokenResult.TokenSet()
	if tokensOut != "" {
		if err := writeJSON(tokenSet, tokensOut, pretty); err != nil {
			return fmt.Errorf("failed to write token file: %w", err)
		}
		log.Info().Str("file", tokensOut).Msg("Token file written")
	}

	appCfg := loadConfig(log)
	cfg := extract.DefaultConfig()
	if appCfg != nil {
		cfg = appCfg.ExtractionConfig()
	}

	var classifier pageclass.Classifier = pageclass.NewRuleClassifier()
	if useLLM {
		key := os.Getenv("OPENAI_API_KEY")
		model := ""
		if appCfg != nil {
			key, model = appCfg.OpenAIAPIKey, appCfg.OpenAIModel
		}
		if key == "" {
			log.Warn().Msg("OPENAI_API_KEY not set, using rule-based page classification")
		} else {
			classifier = pageclass.NewLLMClassifier(openai.NewClient(key), model)
		}
	}
	labels, err := pageclass.ClassifyAll(ctx, classifier, tokenSet.Tokens)
	if err != nil {
		log.Warn().Err(err).Msg("Page classification failed, continuing without labels")
	} else if len(cfg.PageLabels) == 0 {
		cfg.PageLabels = labels
	}

	result := extract.New(cfg).Extract(tokenSet)

	log.Info().
		Str("status", string(result.Meta.Status)).
		Dur("total_duration", time.Since(startTime)).
		Msg("Scan finished")

	return writeJSON(result, outputPath, pretty)
}
