package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitforge/fitforge/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrModelNotFound      = errors.New("model not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Client is an OpenAI-compatible chat completion client.
type Client struct {
	name       string
	httpClient *resty.Client
}

// Config configures the OpenAI-compatible client.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(cfg Config) *Client {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: client,
	}

	client.OnBeforeRequest(func(rc *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("provider", c.name).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("LLM API request")
		return nil
	})

	client.OnAfterResponse(func(rc *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", c.name).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("LLM API response")
		return nil
	})

	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// ChatCompletion runs a chat completion request.
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	wireReq := &ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	wireReq.Messages = make([]ChatMessage, len(req.Messages))
	for i, msg := range req.Messages {
		wireReq.Messages[i] = ChatMessage{Role: msg.Role, Content: msg.Content}
	}

	var wireResp ChatCompletionResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(wireReq).
		SetResult(&wireResp).
		SetError(&errResp).
		Post("/v1/chat/completions")

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	out := &providers.ChatResponse{
		ID:    wireResp.ID,
		Model: wireResp.Model,
		Usage: providers.Usage{
			PromptTokens:     wireResp.Usage.PromptTokens,
			CompletionTokens: wireResp.Usage.CompletionTokens,
			TotalTokens:      wireResp.Usage.TotalTokens,
		},
	}
	out.Choices = make([]providers.Choice, len(wireResp.Choices))
	for i, choice := range wireResp.Choices {
		out.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: choice.FinishReason,
		}
	}

	return out, nil
}

// HealthCheck verifies the endpoint is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	var result ModelsResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Get("/v1/models")

	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if resp.IsError() {
		return c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	return nil
}

func (c *Client) handleErrorResponse(statusCode int, errResp *ErrorResponse) error {
	if errResp.Error.Message == "" {
		return fmt.Errorf("API error: status %d", statusCode)
	}

	baseErr := fmt.Errorf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)

	switch statusCode {
	case 401:
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, baseErr)
	case 429:
		return fmt.Errorf("%w: %v", ErrRateLimitExceeded, baseErr)
	case 404:
		return fmt.Errorf("%w: %v", ErrModelNotFound, baseErr)
	case 400:
		return fmt.Errorf("%w: %v", ErrInvalidRequest, baseErr)
	case 503:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, baseErr)
	default:
		return baseErr
	}
}
