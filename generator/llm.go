package generator

import (
	"context"
	"errors"
	"strings"
)

// ProviderKind tags the LLMClient variants.
type ProviderKind string

const (
	ProviderGemini ProviderKind = "gemini"
	ProviderOpenAI ProviderKind = "openai"
)

// LLMClient abstracts the model backends so the pipeline never branches on provider internals.
type LLMClient interface {
	Kind() ProviderKind
	Complete(ctx context.Context, prompt Prompt, model string) (string, error)
}

// Credentials are the API keys supplied with a request.
type Credentials struct {
	GoogleAPIKey string
	OpenAIAPIKey string
}

// ErrNoCredentials is returned when neither key is present.
var ErrNoCredentials = errors.New("at least one API key (Google Gemini or OpenAI) is required")

// SelectProvider picks the provider for creds. Gemini wins whenever its key is set.
func SelectProvider(creds Credentials) (ProviderKind, error) {
	switch {
	case strings.TrimSpace(creds.GoogleAPIKey) != "":
		return ProviderGemini, nil
	case strings.TrimSpace(creds.OpenAIAPIKey) != "":
		return ProviderOpenAI, nil
	default:
		return "", ErrNoCredentials
	}
}

// LLMSettings configures a concrete client.
type LLMSettings struct {
	APIKey  string
	BaseURL string
}

// NewLLM builds the client selected by creds.
func NewLLM(ctx context.Context, creds Credentials) (LLMClient, error) {
	kind, err := SelectProvider(creds)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ProviderGemini:
		return NewGeminiLLM(ctx, &LLMSettings{APIKey: strings.TrimSpace(creds.GoogleAPIKey)})
	default:
		return NewOpenAILLM(&LLMSettings{APIKey: strings.TrimSpace(creds.OpenAIAPIKey)})
	}
}
