// internal/providers/google/provider.go
package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwiater/llmeval/internal/providers"
)

const (
	DefaultBaseURL   = "https://generativelanguage.googleapis.com"
	defaultMaxTokens = 4096
)

// Provider calls the Gemini generateContent endpoint.
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

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     *int `json:"promptTokenCount"`
		CandidatesTokenCount *int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Complete maps max_tokens and temperature onto generationConfig; other params are
// not supported by this endpoint shape and are ignored.
func (p *Provider) Complete(ctx context.Context, prompt string, params map[string]any) (string, providers.Usage, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: int(providers.Number(params, "max_tokens", defaultMaxTokens)),
			Temperature:     providers.Number(params, "temperature", 0),
		},
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(p.model))
	var parsed generateResponse
	err := providers.PostJSON(ctx, p.client, providers.Request{
		Provider: "google",
		Model:    p.model,
		URL:      p.baseURL + path + "?key=" + url.QueryEscape(p.apiKey),
		Path:     path,
		Body:     body,
	}, &parsed)
	if err != nil {
		return "", providers.Usage{}, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", providers.Usage{}, fmt.Errorf("google: response contained no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, providers.Usage{
		InputTokens:  parsed.UsageMetadata.PromptTokenCount,
		OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
	}, nil
}
