package experiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Configuration keys read into ProviderConfig. Several spellings are
// accepted since treatments are authored for different client libraries.
var (
	apiKeyKeys  = []string{"api_key", "openai_api_key", "anthropic_api_key", "google_api_key"}
	baseURLKeys = []string{"base_url", "openai_api_base", "anthropic_api_url", "server_url"}
)

func newOpenAI(_ context.Context, cfg ProviderConfig) (llms.Model, error) {
	var opts []openai.Option
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if org := stringOption(cfg.Options, "organization"); org != "" {
		opts = append(opts, openai.WithOrganization(org))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai model: %w", err)
	}
	return m, nil
}

func newAnthropic(_ context.Context, cfg ProviderConfig) (llms.Model, error) {
	var opts []anthropic.Option
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	m, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic model: %w", err)
	}
	return m, nil
}

func newGoogleAI(ctx context.Context, cfg ProviderConfig) (llms.Model, error) {
	var opts []googleai.Option
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}
	if cfg.APIKey != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
	}
	m, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create googleai model: %w", err)
	}
	return m, nil
}

func newOllama(_ context.Context, cfg ProviderConfig) (llms.Model, error) {
	var opts []ollama.Option
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama model: %w", err)
	}
	return m, nil
}

// providerConfig builds the factory input from a filtered configuration.
func providerConfig(provider string, conf map[string]any) ProviderConfig {
	return ProviderConfig{
		Provider: provider,
		Model:    stringOption(conf, "model", "model_name"),
		APIKey:   stringOption(conf, apiKeyKeys...),
		BaseURL:  stringOption(conf, baseURLKeys...),
		Options:  conf,
	}
}

// callOptions maps generation parameters of the configuration to
// langchaingo call options.
func callOptions(conf map[string]any) []llms.CallOption {
	var opts []llms.CallOption
	if v, ok := floatOption(conf, "temperature"); ok {
		opts = append(opts, llms.WithTemperature(v))
	}
	if v, ok := floatOption(conf, "max_tokens", "max_output_tokens", "num_predict"); ok {
		opts = append(opts, llms.WithMaxTokens(int(v)))
	}
	if v, ok := floatOption(conf, "top_p"); ok {
		opts = append(opts, llms.WithTopP(v))
	}
	if v, ok := floatOption(conf, "top_k"); ok {
		opts = append(opts, llms.WithTopK(int(v)))
	}
	if v, ok := floatOption(conf, "seed"); ok {
		opts = append(opts, llms.WithSeed(int(v)))
	}
	if stops := stringsOption(conf, "stop"); len(stops) > 0 {
		opts = append(opts, llms.WithStopWords(stops))
	}
	return opts
}

func stringOption(conf map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := conf[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func floatOption(conf map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := conf[k].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

func stringsOption(conf map[string]any, key string) []string {
	switch v := conf[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
