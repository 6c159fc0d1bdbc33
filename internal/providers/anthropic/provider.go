// internal/providers/anthropic/provider.go
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/llmeval/internal/providers"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// Provider calls the Anthropic Messages API.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func New(model, apiKey, baseURL string, timeout time.Duration) *Provider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		client:  providers.HTTPClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  *int `json:"input_tokens"`
		OutputTokens *int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends prompt as one user message. max_tokens is required by the API and
// defaults to 4096.
func (p *Provider) Complete(ctx context.Context, prompt string, params map[string]any) (string, providers.Usage, error) {
	payload := providers.MergeParams(map[string]any{
		"max_tokens": defaultMaxTokens,
	}, params)
	payload["model"] = p.model
	payload["messages"] = []map[string]string{{"role": "user", "content": prompt}}

	var parsed messagesResponse
	err := providers.PostJSON(ctx, p.client, providers.Request{
		Provider: "anthropic",
		Model:    p.model,
		URL:      p.baseURL + "/v1/messages",
		Path:     "/v1/messages",
		Headers: map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": apiVersion,
		},
		Body: payload,
	}, &parsed)
	if err != nil {
		return "", providers.Usage{}, err
	}

	var parts []string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", providers.Usage{}, fmt.Errorf("anthropic: response contained no text blocks")
	}
	return strings.Join(parts, ""), providers.Usage{
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}, nil
}
