// internal/providers/openai/provider.go
// Package openai provides a Provider for OpenAI's chat completions API and the many
// servers that speak it (Ollama, llama.cpp, vLLM, OpenRouter).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/llmeval/internal/providers"
)

const (
	// DefaultBaseURL is OpenAI's public API.
	DefaultBaseURL = "https://api.openai.com/v1"
	// OllamaBaseURL is Ollama's OpenAI-compatible endpoint on its default port.
	OllamaBaseURL = "http://localhost:11434/v1"
)

// Provider implements providers.Provider over /chat/completions.
type Provider struct {
	client  *http.Client
	name    string
	baseURL string
	apiKey  string
	model   string
}

// New constructs a Provider. name labels log lines and errors ("openai", "ollama").
// An empty apiKey sends no Authorization header.
func New(name, model, apiKey, baseURL string, timeout time.Duration) *Provider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		client:  providers.HTTPClient(timeout),
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     *int `json:"prompt_tokens"`
		CompletionTokens *int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends prompt as a single user message.
func (p *Provider) Complete(ctx context.Context, prompt string, params map[string]any) (string, providers.Usage, error) {
	payload := providers.MergeParams(map[string]any{
		"model":    p.model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}, adaptParams(p.model, params))
	payload["model"] = p.model

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var parsed chatResponse
	err := providers.PostJSON(ctx, p.client, providers.Request{
		Provider: p.name,
		Model:    p.model,
		URL:      p.baseURL + "/chat/completions",
		Path:     "/chat/completions",
		Headers:  headers,
		Body:     payload,
	}, &parsed)
	if err != nil {
		return "", providers.Usage{}, err
	}
	if len(parsed.Choices) == 0 {
		return "", providers.Usage{}, fmt.Errorf("%s: chat response contained no choices", p.name)
	}

	usage := providers.Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// adaptParams rewrites parameters that newer OpenAI models reject: reasoning models
// take no temperature, and several families want max_completion_tokens.
func adaptParams(model string, params map[string]any) map[string]any {
	out := providers.MergeParams(nil, params)
	if hasAnyPrefix(model, "o1", "o3", "o4") {
		delete(out, "temperature")
	}
	if v, ok := out["max_tokens"]; ok && hasAnyPrefix(model, "gpt-5", "gpt-4.1", "o1", "o3", "o4") {
		out["max_completion_tokens"] = v
		delete(out, "max_tokens")
	}
	return out
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
