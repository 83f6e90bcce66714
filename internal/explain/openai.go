package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/models"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const systemPrompt = "You explain technician dispatch recommendations to a dispatcher. Be brief and factual."

// OpenAIExplainer asks a chat completion model for the explanation.
type OpenAIExplainer struct {
	client *openai.Client
	model  shared.ChatModel
}

// NewOpenAIExplainer builds the client. An empty baseURL uses the public API.
func NewOpenAIExplainer(apiKey, baseURL, model string, timeout time.Duration) *OpenAIExplainer {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(shared.ChatModelGPT4oMini)
	}
	c := openai.NewClient(opts...)
	return &OpenAIExplainer{client: &c, model: shared.ChatModel(model)}
}

func (e *OpenAIExplainer) Explain(ctx context.Context, job *models.Job, tech *models.Technician, rec models.Recommendation) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(job, tech, rec)),
		},
		MaxTokens:   openai.Int(160),
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return "", errors.NewExplanationFailedError(fmt.Errorf("openai: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewExplanationFailedError(fmt.Errorf("openai: no choices returned"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.NewExplanationFailedError(fmt.Errorf("empty explanation"))
	}
	return text, nil
}
