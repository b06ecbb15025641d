package generator

import (
	"context"
	"fmt"
	"sync"
)

// MockLLM is a scripted LLMClient that never calls an external model.
// Responses and Errors are keyed by stage; a stage without a scripted
// response echoes a small Markdown document.
type MockLLM struct {
	Provider  ProviderKind
	Responses map[Stage]string
	Errors    map[Stage]error

	mu      sync.Mutex
	calls   []Stage
	prompts []Prompt
	models  []string
}

func (m *MockLLM) Kind() ProviderKind {
	if m.Provider == "" {
		return ProviderGemini
	}
	return m.Provider
}

func (m *MockLLM) Complete(ctx context.Context, prompt Prompt, model string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt.Stage)
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.Errors[prompt.Stage]; ok {
		return "", err
	}
	if text, ok := m.Responses[prompt.Stage]; ok {
		return text, nil
	}
	return fmt.Sprintf("# Sample ebook\n\nOutput of the %s stage.\n", prompt.Stage), nil
}

// Calls returns the stages called so far, in order.
func (m *MockLLM) Calls() []Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Stage(nil), m.calls...)
}

// Prompts returns the prompts received so far, in order.
func (m *MockLLM) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}

// Models returns the model names received so far, in order.
func (m *MockLLM) Models() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.models...)
}
