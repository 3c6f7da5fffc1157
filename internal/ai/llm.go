// Package ai talks to language model providers and turns their answers
// into extraction schemas.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// LLMProvider specifies which LLM backend to use.
type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderGroq   LLMProvider = "groq"
	ProviderCustom LLMProvider = "custom"
)

// Default endpoints per provider. Custom has none.
const (
	DefaultOllamaEndpoint = "http://localhost:11434"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultGroqEndpoint   = "https://api.groq.com/openai/v1"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMClient communicates with an LLM provider.
type LLMClient struct {
	cfg    config.AIConfig
	http   *resty.Client
	logger *slog.Logger
}

// NewLLMClient creates a new LLM client. The endpoint defaults to the
// provider's public API when cfg.Endpoint is empty.
func NewLLMClient(cfg config.AIConfig, logger *slog.Logger) (*LLMClient, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint(LLMProvider(cfg.Provider))
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("provider %q requires an endpoint", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "DocScrape/"+config.Version)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &LLMClient{
		cfg:    cfg,
		http:   client,
		logger: logger.With("component", "llm_client", "provider", cfg.Provider),
	}, nil
}

// DefaultEndpoint returns the public API root for a provider.
func DefaultEndpoint(p LLMProvider) string {
	switch p {
	case ProviderOllama:
		return DefaultOllamaEndpoint
	case ProviderOpenAI:
		return DefaultOpenAIEndpoint
	case ProviderGroq:
		return DefaultGroqEndpoint
	default:
		return ""
	}
}

// DefaultModel returns the model used when none is configured for a
// provider.
func DefaultModel(p LLMProvider) string {
	switch p {
	case ProviderOllama:
		return "llama3.2"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGroq:
		return "meta-llama/llama-4-scout-17b-16e-instruct"
	default:
		return ""
	}
}

// Generate sends a prompt to the LLM and returns the response text.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var (
		out string
		err error
	)
	switch LLMProvider(c.cfg.Provider) {
	case ProviderOllama:
		out, err = c.generateOllama(ctx, prompt)
	case ProviderOpenAI, ProviderGroq:
		out, err = c.generateChat(ctx, prompt)
	case ProviderCustom:
		out, err = c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
	if err != nil {
		return "", err
	}

	c.logger.Debug("completion received",
		"model", c.cfg.Model,
		"prompt_chars", len(prompt),
		"response_chars", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", payload, &result); err != nil {
		return "", err
	}
	return result.Response, nil
}

// generateChat speaks the OpenAI chat completions API, which Groq also
// implements.
func (c *LLMClient) generateChat(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: no API key for %s", types.ErrOracleUnavailable, c.cfg.Provider)
	}

	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", c.cfg.Provider)
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrOracleUnavailable, err)
	}
	if resp.IsError() {
		return "", statusError(resp)
	}
	return resp.String(), nil
}

// post sends a JSON payload to endpoint+path and decodes the JSON answer
// into result.
func (c *LLMClient) post(ctx context.Context, path string, payload, result any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		ForceContentType("application/json").
		Post(strings.TrimRight(c.cfg.Endpoint, "/") + path)
	if err != nil {
		return fmt.Errorf("%w: %s request: %v", types.ErrOracleUnavailable, c.cfg.Provider, err)
	}
	if resp.IsError() {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Errorf("%w: HTTP %d: %s", types.ErrOracleUnavailable, resp.StatusCode(), body)
}

// ResolveAPIKey picks the API key for the configured provider: the
// configured value (flag or DOCSCRAPE_AI_API_KEY) first, then the
// provider's conventional environment variable.
func ResolveAPIKey(cfg config.AIConfig) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	if key := os.Getenv(config.EnvPrefix + "_AI_API_KEY"); key != "" {
		return key
	}
	switch LLMProvider(cfg.Provider) {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	default:
		return ""
	}
}
