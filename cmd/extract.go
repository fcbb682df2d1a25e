package cmd

import (
	"github.com/spf13/cobra"

	"billscan/internal/extract"
	"billscan/internal/logger"
	"billscan/internal/ocr"
	"billscan/internal/pageclass"
)

var extractCmd = &cobra.Command{
	Use:   "extract [token-file]",
	Short: "Reconstruct line items and totals from an OCR token file",
	Long: `Rebuild the itemized bill from a token interchange file (JSON tokens
with bounding boxes, page numbers and confidences) produced by an earlier
scan or by an external OCR pipeline.

The output is the full extraction result: line items, total candidates,
the selected final total, reconciliation status and fraud signals.

Extraction is fully offline; no cloud credentials are required.`,
	Example: `  # Extract to stdout
  billscan extract tokens.json

  # Pretty-printed result to a file
  billscan extract tokens.json --pretty -o result.json

  # Bias total detection with rule-based page labels
  billscan extract tokens.json --classify`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
	extractCmd.Flags().Bool("classify", false, "Run rule-based page classification before extraction")
	extractCmd.Flags().Float64("y-tolerance", 0, "Override row clustering tolerance")
	extractCmd.Flags().Float64("column-gap", 0, "Override minimum column gap")
	extractCmd.Flags().Float64("total-tolerance", 0, "Override absolute reconciliation tolerance")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")
	classify, _ := cmd.Flags().GetBool("classify")

	tokenPath := args[0]
	log.Info().
		Str("file", tokenPath).
		Bool("classify", classify).
		Msg("Starting extraction")

	tokenSet, err := ocr.LoadTokenSet(tokenPath)
	if err != nil {
		return err
	}

	cfg := extract.DefaultConfig()
	if appCfg := loadConfig(log); appCfg != nil {
		cfg = appCfg.ExtractionConfig()
	}
	if v, _ := cmd.Flags().GetFloat64("y-tolerance"); v > 0 {
		cfg.YCoordinateTolerance = v
	}
	if v, _ := cmd.Flags().GetFloat64("column-gap"); v > 0 {
		cfg.MinColumnGap = v
	}
	if v, _ := cmd.Flags().GetFloat64("total-tolerance"); v > 0 {
		cfg.TotalReconciliationTolerance = v
	}

	if classify {
		labels, err := pageclass.ClassifyAll(cmd.Context(), pageclass.NewRuleClassifier(), tokenSet.Tokens)
		if err != nil {
			log.Warn().Err(err).Msg("Page classification failed, continuing without labels")
		} else {
			cfg.PageLabels = labels
		}
	}

	result := extract.New(cfg).Extract(tokenSet)

	log.Info().
		Str("status", string(result.Meta.Status)).
		Int("pages", result.Meta.PagesProcessed).
		Msg("Extraction finished")

	return writeJSON(result, outputPath, pretty)
}
