// internal/providers/bedrock/provider.go

// Package bedrock serves models hosted on Amazon Bedrock through the Converse API.
// Credentials come from the default AWS chain, so no api_key_env is needed.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/mwiater/llmeval/internal/logging"
	"github.com/mwiater/llmeval/internal/providers"
)

const defaultMaxTokens = 4096

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Provider wraps a bedrockruntime client.
type Provider struct {
	client converseAPI
	model  string
}

// New loads the default AWS configuration for region (or the environment's region
// when empty). A non-empty endpoint overrides the service URL.
func New(ctx context.Context, model, region, endpoint string) (*Provider, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) Complete(ctx context.Context, prompt string, params map[string]any) (string, providers.Usage, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.model),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(providers.Number(params, "max_tokens", defaultMaxTokens))),
			Temperature: aws.Float32(float32(providers.Number(params, "temperature", 0))),
		},
	}
	logging.LogRequest("LLMEVAL->LLM", "bedrock", p.model, map[string]any{"prompt": prompt, "params": params})

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return "", providers.Usage{}, fmt.Errorf("bedrock: converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", providers.Usage{}, errors.New("bedrock: response contained no message")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	logging.LogRequest("LLM->LLMEVAL", "bedrock", p.model, sb.String())

	var usage providers.Usage
	if out.Usage != nil {
		usage.InputTokens = intPtr(out.Usage.InputTokens)
		usage.OutputTokens = intPtr(out.Usage.OutputTokens)
	}
	return sb.String(), usage, nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
