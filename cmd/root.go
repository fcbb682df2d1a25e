package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "billscan",
	Short: "billscan - reconstruct and audit itemized hospital bills from OCR output",
	Long: `billscan rebuilds the tabular structure of scanned hospital bills from
positioned OCR tokens, reconciles line items against the stated total and
flags tampering indicators for claim review.

Input is either a PDF (processed through a cloud OCR engine) or a token
interchange file produced by an earlier scan. Output is a JSON extraction
result or an XLSX review workbook.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("billscan executed")

		fmt.Println("billscan - hospital bill reconstruction and audit")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
