package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// Generator sends a prompt to a chat completion model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (models.Answer, error)
}

// Client is a Generator for any OpenAI-compatible chat completion API
// (Groq by default).
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key for %s", models.ErrRemoteGeneration, llmConfig.BaseURL)
	}
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Initializing chat client")

	timeout := time.Duration(llmConfig.TimeoutSecs) * time.Second
	cfg := openai.DefaultConfig(key)
	if llmConfig.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(llmConfig.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		model:       llmConfig.Model,
		temperature: llmConfig.Temperature,
		timeout:     timeout,
	}, nil
}

// Generate returns the first choice of a single-message chat completion.
// A response with no choices is a successful, empty Answer.
func (c *Client) Generate(ctx context.Context, prompt string) (models.Answer, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return models.Answer{}, remoteError(err)
	}
	log.Debug().Str("model", resp.Model).Int("choices", len(resp.Choices)).
		Int("total_tokens", resp.Usage.TotalTokens).Dur("took", time.Since(start)).Msg("Chat completion")

	if len(resp.Choices) == 0 {
		log.Warn().Str("model", c.model).Msg("Chat completion returned no choices")
		return models.Answer{Model: resp.Model, Empty: true}, nil
	}
	choice := resp.Choices[0]
	return models.Answer{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func remoteError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &models.RemoteError{
			Kind:       models.ErrRemoteGeneration,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" {
			msg = reqErr.HTTPStatus
		}
		return &models.RemoteError{
			Kind:       models.ErrRemoteGeneration,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return &models.RemoteError{Kind: models.ErrRemoteGeneration, Message: err.Error(), Err: err}
}
