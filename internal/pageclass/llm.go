package pageclass

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"billscan/internal/logger"
	"billscan/pkg/models"
)

// maxSampleTokens bounds the text sample sent to the model; a page prefix
// is enough to tell a pharmacy sheet from a final-bill summary.
const maxSampleTokens = 100

// LLMClassifier asks a chat model to label the page and falls back to the
// rule-based classifier on any failure or unrecognized answer. Network
// errors therefore never fail a classification request.
type LLMClassifier struct {
	client *openai.Client
	model  string
	rules  *RuleClassifier
	log    zerolog.Logger
}

// NewLLMClassifier wraps an OpenAI client. An empty model selects
// gpt-4o-mini.
func NewLLMClassifier(client *openai.Client, model string) *LLMClassifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMClassifier{
		client: client,
		model:  model,
		rules:  NewRuleClassifier(),
		log:    logger.WithComponent("pageclass-llm"),
	}
}

// ClassifyPage implements Classifier.
func (c *LLMClassifier) ClassifyPage(ctx context.Context, tokens []models.Token, pageNum int) (models.PageType, error) {
	sample := tokens
	if len(sample) > maxSampleTokens {
		sample = sample[:maxSampleTokens]
	}
	parts := make([]string, len(sample))
	for i, t := range sample {
		parts[i] = t.Text
	}

	prompt := fmt.Sprintf(`Classify this hospital bill page into one of these categories:
1. "Bill Detail" - itemized list of charges/services
2. "Final Bill" - summary and final total amount
3. "Pharmacy" - medication/pharmaceutical items

Page text sample:
%s

Respond with ONLY one of: Bill Detail, Final Bill, or Pharmacy`, strings.Join(parts, " "))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.log.Warn().Err(err).Int("page", pageNum).Msg("LLM classification failed, using rules")
		return c.rules.ClassifyPage(ctx, tokens, pageNum)
	}
	if len(resp.Choices) == 0 {
		return c.rules.ClassifyPage(ctx, tokens, pageNum)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	switch models.PageType(answer) {
	case models.PageBillDetail, models.PageFinalBill, models.PagePharmacy:
		c.log.Debug().Int("page", pageNum).Str("label", answer).Msg("LLM classified page")
		return models.PageType(answer), nil
	}
	c.log.Warn().Int("page", pageNum).Str("answer", answer).Msg("unrecognized LLM answer, using rules")
	return c.rules.ClassifyPage(ctx, tokens, pageNum)
}
