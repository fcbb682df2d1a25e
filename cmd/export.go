package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billscan/internal/export"
	"billscan/internal/extract"
	"billscan/internal/logger"
	"billscan/internal/ocr"
	"billscan/pkg/models"
)

var exportCmd = &cobra.Command{
	Use:   "export [token-file]",
	Short: "Render an extraction result as an XLSX review workbook",
	Long: `Produce an XLSX workbook for manual claim review with one sheet each
for line items, totals and fraud signals.

The input is a token interchange file; extraction runs first. With
--result, a previously saved extraction result JSON is rendered directly
and no extraction happens.`,
	Example: `  # Extract and export in one step
  billscan export tokens.json -o review.xlsx

  # Render a saved extraction result
  billscan export --result result.json -o review.xlsx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "review.xlsx", "Output workbook path")
	exportCmd.Flags().String("result", "", "Render this extraction result JSON instead of extracting")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	outputPath, _ := cmd.Flags().GetString("output")
	resultPath, _ := cmd.Flags().GetString("result")

	var result models.ExtractionResult
	switch {
	case resultPath != "":
		data, err := os.ReadFile(resultPath)
		if err != nil {
			return fmt.Errorf("failed to read result file: %w", err)
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("failed to decode result file: %w", err)
		}
	case len(args) == 1:
		tokenSet, err := ocr.LoadTokenSet(args[0])
		if err != nil {
			return err
		}
		cfg := extract.DefaultConfig()
		if appCfg := loadConfig(log); appCfg != nil {
			cfg = appCfg.ExtractionConfig()
		}
		result = extract.New(cfg).Extract(tokenSet)
	default:
		return fmt.Errorf("provide a token file or --result")
	}

	workbook, err := export.NewService().WorkbookXLSX(result)
	if err != nil {
		return fmt.Errorf("failed to render workbook: %w", err)
	}
	if err := os.WriteFile(outputPath, workbook, 0644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	log.Info().Str("file", outputPath).Msg("Workbook written")
	return nil
}
