// internal/providers/provider.go

// Package providers defines the completion interface shared by every model backend and
// the HTTP plumbing the JSON-over-HTTP backends have in common.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/llmeval/internal/logging"
)

const (
	dirOut = "LLMEVAL->LLM"
	dirIn  = "LLM->LLMEVAL"
)

// Usage reports token counts when the backend returns them.
type Usage struct {
	InputTokens  *int
	OutputTokens *int
}

// Provider sends a single-turn prompt to a model and returns the response text.
// Implementations make exactly one attempt; callers decide what a failure means.
type Provider interface {
	Complete(ctx context.Context, prompt string, params map[string]any) (string, Usage, error)
}

// Request describes one JSON POST to a provider endpoint.
type Request struct {
	Provider string
	Model    string
	URL      string
	// Path is used in error messages in place of the full URL, which may carry a key.
	Path    string
	Headers map[string]string
	Body    any
}

// PostJSON sends req and decodes a 2xx JSON response into out. Both directions are
// written to the request log.
func PostJSON(ctx context.Context, client *http.Client, req Request, out any) error {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", req.Provider, err)
	}
	logging.LogRequest(dirOut, req.Provider, req.Model, body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", req.Provider, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", req.Provider, err)
	}
	logging.LogRequest(dirIn, req.Provider, req.Model, raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s returned %s: %s", req.Provider, req.Path, resp.Status, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.Provider, err)
	}
	return nil
}

// MergeParams returns base with params layered on top, leaving both inputs untouched.
func MergeParams(base map[string]any, params map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(params))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Number reads a numeric parameter, returning def when absent or not numeric.
func Number(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// HTTPClient returns the client used by HTTP providers.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, ForceAttemptHTTP2: true},
	}
}
