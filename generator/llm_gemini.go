package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiLLM implements LLMClient with Gemini text generation.
type GeminiLLM struct {
	client *genai.Client
}

func NewGeminiLLM(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key missing")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiLLM{client: client}, nil
}

func (g *GeminiLLM) Kind() ProviderKind { return ProviderGemini }

// Complete sends prompt.System as the only content turn. Gemini runs at the model's
// default sampling; prompt.Temperature only applies to OpenAI.
func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt, model string) (string, error) {
	if model == "" {
		return "", errors.New("gemini: model is required")
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt.System), nil)
	if err != nil {
		return "", err
	}
	return ResponseText(resp), nil
}

type textStrategy func(resp *genai.GenerateContentResponse) string

// responseTextStrategies are tried in order until one yields non-blank text.
var responseTextStrategies = []textStrategy{
	topLevelText,
	candidatePartsText,
}

// ResponseText extracts the generated text from resp, or "" when there is none.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, strategy := range responseTextStrategies {
		if text := strategy(resp); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// topLevelText is resp.Text() for responses whose first candidate is fully populated.
func topLevelText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	first := resp.Candidates[0]
	if first == nil || first.Content == nil {
		return ""
	}
	for _, part := range first.Content.Parts {
		if part == nil {
			return ""
		}
	}
	return resp.Text()
}

// candidatePartsText concatenates every text part of every candidate.
func candidatePartsText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part == nil {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
