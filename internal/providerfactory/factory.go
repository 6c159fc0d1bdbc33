// internal/providerfactory/factory.go
package providerfactory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mwiater/llmeval/internal/appconfig"
	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/providers"
	"github.com/mwiater/llmeval/internal/providers/anthropic"
	"github.com/mwiater/llmeval/internal/providers/bedrock"
	"github.com/mwiater/llmeval/internal/providers/google"
	"github.com/mwiater/llmeval/internal/providers/openai"
)

const (
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai_compatible"
	ProviderOllama           = "ollama"
	ProviderAnthropic        = "anthropic"
	ProviderGoogle           = "google"
	ProviderBedrock          = "bedrock"

	// noKey in api_key_env marks a hosted endpoint that needs no credentials.
	noKey = "none"

	ollamaTimeout = 600 * time.Second
)

type constructor func(ctx context.Context, m appconfig.ModelConfig, apiKey string) (providers.Provider, error)

var registry = map[string]constructor{
	ProviderOpenAI: func(_ context.Context, m appconfig.ModelConfig, key string) (providers.Provider, error) {
		return openai.New(ProviderOpenAI, m.Model, key, m.BaseURL, m.RequestTimeout()), nil
	},
	ProviderOpenAICompatible: func(_ context.Context, m appconfig.ModelConfig, key string) (providers.Provider, error) {
		if strings.TrimSpace(m.BaseURL) == "" {
			return nil, fmt.Errorf("%w: provider %s requires base_url", appconfig.ErrConfig, ProviderOpenAICompatible)
		}
		return openai.New(ProviderOpenAICompatible, m.Model, key, m.BaseURL, m.RequestTimeout()), nil
	},
	ProviderOllama: func(_ context.Context, m appconfig.ModelConfig, key string) (providers.Provider, error) {
		base := m.BaseURL
		if strings.TrimSpace(base) == "" {
			base = openai.OllamaBaseURL
		}
		timeout := ollamaTimeout
		if m.TimeoutSeconds > 0 {
			timeout = m.RequestTimeout()
		}
		return openai.New(ProviderOllama, m.Model, key, base, timeout), nil
	},
	ProviderAnthropic: func(_ context.Context, m appconfig.ModelConfig, key string) (providers.Provider, error) {
		return anthropic.New(m.Model, key, m.BaseURL, m.RequestTimeout()), nil
	},
	ProviderGoogle: func(_ context.Context, m appconfig.ModelConfig, key string) (providers.Provider, error) {
		return google.New(m.Model, key, m.BaseURL, m.RequestTimeout()), nil
	},
	ProviderBedrock: func(ctx context.Context, m appconfig.ModelConfig, _ string) (providers.Provider, error) {
		return bedrock.New(ctx, m.Model, m.Region, m.BaseURL)
	},
}

// keyless providers authenticate some other way, or not at all.
var keyless = map[string]bool{
	ProviderOllama:  true,
	ProviderBedrock: true,
}

// Names lists the supported provider identifiers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the provider described by m. The API key is read from the environment
// variable named in api_key_env; a named variable that is unset or empty is a
// configuration error.
func New(ctx context.Context, m appconfig.ModelConfig) (providers.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(m.Provider))
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q (supported: %s)", appconfig.ErrConfig, m.Provider, strings.Join(Names(), ", "))
	}

	key, err := resolveKey(name, m.APIKeyEnv)
	if err != nil {
		return nil, err
	}

	p, err := build(ctx, m, key)
	if err != nil {
		return nil, err
	}
	logging.LogEvent("provider ready: %s model=%s", name, m.Model)
	return p, nil
}

// ForModel looks up name in cfg and builds its provider.
func ForModel(ctx context.Context, cfg appconfig.Config, name string) (providers.Provider, appconfig.ModelConfig, error) {
	m, err := cfg.Model(name)
	if err != nil {
		return nil, appconfig.ModelConfig{}, err
	}
	p, err := New(ctx, m)
	if err != nil {
		return nil, m, fmt.Errorf("model %s: %w", name, err)
	}
	return p, m, nil
}

func resolveKey(provider, env string) (string, error) {
	env = strings.TrimSpace(env)
	switch {
	case strings.EqualFold(env, noKey):
		return "", nil
	case env == "":
		if keyless[provider] {
			return "", nil
		}
		return "", fmt.Errorf("%w: provider %s requires api_key_env", appconfig.ErrConfig, provider)
	}
	key := strings.TrimSpace(os.Getenv(env))
	if key == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", appconfig.ErrConfig, env)
	}
	return key, nil
}
