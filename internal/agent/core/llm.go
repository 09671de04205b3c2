package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mohammad-safakhou/chronicler/config"
)

// LLMProvider is the reasoning service contract. Chat sends an ordered
// message history to a configured model and returns the completion text with
// prompt/completion token counts.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string) (string, int64, int64, error)
	ModelFor(stage string) string
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo describes a configured model.
type ModelInfo struct {
	Name            string
	MaxTokens       int
	CostPer1KInput  float64
	CostPer1KOutput float64
}

// OpenAIProvider implements LLMProvider against any OpenAI-compatible chat
// completions API. Groq exposes the same wire format, so one implementation
// covers both providers; only BaseURL and key differ.
type OpenAIProvider struct {
	config config.LLMConfig
	models map[string]ModelInfo
	client *http.Client
}

// NewLLMProvider creates the reasoning service client from configuration.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case "openai", "groq":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
}

// NewOpenAIProvider creates a provider for OpenAI or Groq.
func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	provider := &OpenAIProvider{
		config: cfg,
		models: make(map[string]ModelInfo),
		client: &http.Client{Timeout: cfg.Timeout},
	}

	for key, model := range cfg.Models {
		provider.models[key] = ModelInfo{
			Name:            model.Name,
			MaxTokens:       model.MaxTokens,
			CostPer1KInput:  model.CostPer1K,
			CostPer1KOutput: model.CostPer1KOutput,
		}
	}

	return provider
}

// ModelFor returns the configured model key for a pipeline stage, falling
// back to the routing fallback entry.
func (p *OpenAIProvider) ModelFor(stage string) string {
	var key string
	switch stage {
	case StagePlanner:
		key = p.config.Routing.Planning
	case StageResearcher, StageReporter:
		key = p.config.Routing.Research
	case StageChecker:
		key = p.config.Routing.Verification
	}
	if key == "" {
		key = p.config.Routing.Fallback
	}
	return key
}

// Chat sends the message history to the chat completions endpoint.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string) (string, int64, int64, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("CHRONICLER_LLM_API_KEY")
	}
	if apiKey == "" {
		return "", 0, 0, fmt.Errorf("LLM API key not configured")
	}

	m, ok := p.config.Models[model]
	if !ok {
		return "", 0, 0, fmt.Errorf("model %s not configured", model)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	body, err := json.Marshal(chatReq{
		Model:       apiModel,
		Messages:    messages,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshal: %w", err)
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		switch p.config.Provider {
		case "groq":
			baseURL = "https://api.groq.com/openai/v1"
		default:
			baseURL = "https://api.openai.com/v1"
		}
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", 0, 0, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, 0, fmt.Errorf("chat completions status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("no choices")
	}

	return out.Choices[0].Message.Content, int64(out.Usage.PromptTokens), int64(out.Usage.CompletionTokens), nil
}

// CalculateCost calculates the cost for a given number of tokens.
func (p *OpenAIProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	info, ok := p.models[model]
	if !ok {
		return 0.0
	}

	inputCost := float64(inputTokens) / 1000.0 * info.CostPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * info.CostPer1KOutput
	return inputCost + outputCost
}
