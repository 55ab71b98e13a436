package provider

import (
	"context"
	"fmt"
	"os"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// newOllama constructs a chat model backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	host := cfg.Ollama.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: host,
		Model:   cfg.Ollama.Model,
	})
}

// newOpenAI constructs a chat model backed by the OpenAI API.
func newOpenAI(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	maxTokens := cfg.Tuning.MaxTokens
	temp := cfg.Tuning.Temperature
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.OpenAI.Model,
		APIKey:      cfg.OpenAI.APIKey,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
}

// newAzure constructs a chat model backed by Azure OpenAI Service.
func newAzure(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	mcfg := &einoopenai.ChatModelConfig{
		Model:      cfg.AzureOpenAI.Deployment,
		APIKey:     cfg.AzureOpenAI.APIKey,
		BaseURL:    cfg.AzureOpenAI.Endpoint,
		ByAzure:    true,
		APIVersion: cfg.AzureOpenAI.APIVersion,
		// Use the deployment name as-is — the default mapper strips dots/colons
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	}

	// o-series and codex deployments reject max_tokens and temperature.
	if !isAzureReasoningModel(cfg.AzureOpenAI.Deployment) {
		maxTokens := cfg.Tuning.MaxTokens
		temp := cfg.Tuning.Temperature
		mcfg.MaxTokens = &maxTokens
		mcfg.Temperature = &temp
	}

	return einoopenai.NewChatModel(ctx, mcfg) //nolint:wrapcheck // constructor passthrough
}

// newBedrock constructs a chat model backed by AWS Bedrock, via its
// OpenAI-compatible runtime endpoint. Authentication uses the Bedrock API key
// (AWS_BEARER_TOKEN_BEDROCK); the full SigV4 credential chain is not wired.
// TODO: switch to a dedicated Bedrock adapter when eino-ext ships one.
func newBedrock(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	apiKey := os.Getenv("AWS_BEARER_TOKEN_BEDROCK")
	if apiKey == "" {
		return nil, fmt.Errorf("provider: AWS_BEARER_TOKEN_BEDROCK is required for bedrock backend")
	}
	maxTokens := cfg.Tuning.MaxTokens
	temp := cfg.Tuning.Temperature
	return einoark.NewChatModel(ctx, &einoark.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.Bedrock.ModelID,
		APIKey:      apiKey,
		BaseURL:     fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/openai/v1", cfg.Bedrock.AWSRegion),
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
}

// newGemini constructs a chat model backed by Google Gemini (AI Studio).
func newGemini(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create Gemini client: %w", err)
	}
	return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
		Client: client,
		Model:  cfg.Gemini.Model,
	})
}
