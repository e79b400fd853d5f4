package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIProvider implements Provider over the OpenAI chat completions API,
// or any server speaking it when a base URL is configured.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewOpenAIProvider constructs a provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger zerolog.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With().Str("component", "llm.openai").Logger(),
	}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) ModelID() string { return p.model }

// Complete sends a blocking chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	var msgs []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
	}
	if n := req.MaxTokens; n > 0 {
		creq.MaxTokens = n
	} else if p.maxTokens > 0 {
		creq.MaxTokens = p.maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, p.mapError(err)
	}
	if len(resp.Choices) == 0 {
		p.logger.Warn().Str("model", model).Msg("openai returned no choices")
		return &CompletionResponse{}, nil
	}

	out := &CompletionResponse{
		Text:         resp.Choices[0].Message.Content,
		StopReason:   string(resp.Choices[0].FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	p.logger.Debug().
		Str("model", model).
		Str("finish_reason", out.StopReason).
		Int("in_tokens", out.InputTokens).
		Int("out_tokens", out.OutputTokens).
		Msg("openai complete")
	return out, nil
}

// mapError converts go-openai errors into APIError so retry policy applies.
func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := aerrors.NewAPIError(p.Name(), apiErr.HTTPStatusCode, apiErr.Message)
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			e.Err = aerrors.ErrAuthFailure
		}
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &aerrors.APIError{Service: p.Name(), StatusCode: reqErr.HTTPStatusCode, Message: "request failed", Err: reqErr.Err}
	}
	return fmt.Errorf("openai: %w", err)
}
