package cmd

import (
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"billscan/internal/logger"
	"billscan/internal/ocr"
	"billscan/internal/pageclass"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [token-file]",
	Short: "Classify bill pages as Bill Detail, Final Bill or Pharmacy",
	Long: `Label each page of a token interchange file with its page type.
Labels are advisory: they bias total detection during extraction but are
never required for it.

By default a keyword-rule classifier is used. With --llm an OpenAI chat
model labels the pages; the rule classifier remains the fallback for any
page the model cannot label.`,
	Example: `  # Rule-based classification
  billscan classify tokens.json

  # LLM classification (requires OPENAI_API_KEY)
  billscan classify tokens.json --llm -o labels.json`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	classifyCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
	classifyCmd.Flags().Bool("llm", false, "Use LLM page classification (falls back to rules)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("classify")

	outputPath, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")
	useLLM, _ := cmd.Flags().GetBool("llm")

	tokenSet, err := ocr.LoadTokenSet(args[0])
	if err != nil {
		return err
	}

	var classifier pageclass.Classifier = pageclass.NewRuleClassifier()
	if useLLM {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			log.Warn().Msg("OPENAI_API_KEY not set, using rule-based page classification")
		} else {
			classifier = pageclass.NewLLMClassifier(openai.NewClient(key), os.Getenv("OPENAI_MODEL"))
		}
	}

	labels, err := pageclass.ClassifyAll(cmd.Context(), classifier, tokenSet.Tokens)
	if err != nil {
		return err
	}

	log.Info().Int("pages", len(labels)).Msg("Pages classified")
	return writeJSON(labels, outputPath, pretty)
}
