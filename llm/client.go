package llm

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/nijaru/yt-summary/config"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

var ErrModelNotFound = errors.New("model not found on backend")

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client talks to an Ollama server through its OpenAI-compatible API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

func NewClient(cfg config.LLMConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.requestTemperature(),
	})
	if err != nil {
		return "", errors.Wrapf(err, "chat completion with %s", c.model)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Errorf("chat completion with %s returned no choices", c.model)
	}

	logrus.WithFields(logrus.Fields{
		"model":         c.model,
		"prompt_chars":  len(prompt),
		"prompt_tokens": resp.Usage.PromptTokens,
		"output_tokens": resp.Usage.CompletionTokens,
		"duration":      time.Since(start),
	}).Debug("Model call completed")

	return resp.Choices[0].Message.Content, nil
}

// Temperature is omitted from the request body when zero, which lets the
// server fall back to its own default. Send the smallest positive value instead.
func (c *Client) requestTemperature() float32 {
	if c.temperature <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return c.temperature
}

// Ping checks the backend is reachable and has the configured model pulled.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return errors.Wrap(err, "list models")
	}
	for _, m := range list.Models {
		if m.ID == c.model || strings.TrimSuffix(m.ID, ":latest") == c.model {
			return nil
		}
	}
	return errors.Wrap(ErrModelNotFound, c.model)
}
