package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// AWSConfigLoader resolves AWS SDK settings. Only Bedrock needs it.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// BuildLLMClient wires the configured provider, an optional fallback
// provider, and per-provider instrumentation. When no provider can be built
// it returns an llm.UnavailableClient so the dialogue layer answers with its
// fallback reply instead of the process failing to start. The returned
// closer releases provider resources.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, observer llm.Observer, logger *logging.Logger) (llm.Client, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	build := func(provider string) llm.Client {
		client, closer, err := buildProvider(ctx, cfg, provider, loadAWS)
		if err != nil {
			logger.Warn("llm provider unavailable", "provider", provider, "error", err)
			return nil
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		logger.Info("llm provider configured", "provider", provider)
		return llm.NewInstrumentedClient(provider, client, observer)
	}

	primary := build(cfg.LLMProvider)
	var fallback llm.Client
	if fb := cfg.LLMFallbackProvider; fb != "" && fb != cfg.LLMProvider {
		fallback = build(fb)
	}

	switch {
	case primary != nil && fallback != nil:
		return llm.NewFallbackClient(primary, fallback, logger.Component("llm")), closeAll, nil
	case primary != nil:
		return primary, closeAll, nil
	case fallback != nil:
		logger.Warn("primary llm provider unavailable; using fallback only", "provider", cfg.LLMFallbackProvider)
		return fallback, closeAll, nil
	default:
		logger.Warn("no llm provider configured; replies will use the fallback apology")
		return llm.UnavailableClient{Reason: "no provider for " + cfg.LLMProvider}, closeAll, nil
	}
}

func buildProvider(ctx context.Context, cfg *appconfig.Config, provider string, loadAWS AWSConfigLoader) (llm.Client, func(), error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "groq", "openai":
		client, err := llm.NewOpenAIClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required")
		}
		if loadAWS == nil {
			return nil, nil, fmt.Errorf("bootstrap: aws config loader is required for bedrock")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil, nil
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}
}
