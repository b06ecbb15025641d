package generator

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM completes prompts through the chat completions API.
type OpenAILLM struct {
	Opts []option.RequestOption
}

func NewOpenAILLM(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key missing")
	}
	// each stage is attempted once; the SDK retries twice by default
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{Opts: opts}, nil
}

func (o *OpenAILLM) Kind() ProviderKind { return ProviderOpenAI }

// Complete sends prompt.System as the system message followed by prompt.User.
func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt, model string) (string, error) {
	if model == "" {
		return "", errors.New("openai: model is required")
	}
	client := openai.NewClient(o.Opts...)

	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt.System),
	}
	if prompt.User != "" {
		msgs = append(msgs, openai.UserMessage(prompt.User))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if prompt.Temperature > 0 {
		params.Temperature = openai.Float(prompt.Temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
