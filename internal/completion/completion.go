// Package completion talks to an OpenAI-compatible chat completion endpoint.
package completion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"echomind/internal/domain"
)

const (
	DefaultModel        = "gpt-4-turbo-preview"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 500
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultSystemPrompt = "You are EchoMind, a helpful and intelligent AI assistant. Provide accurate and concise answers."
)

// Config configures the completion client. Zero values select the defaults above:
// temperature 0.7 and 500 max tokens unless overridden.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
	// MaxRetries of zero means DefaultMaxRetries; a negative value disables retries.
	MaxRetries int
}

// Client sends prompts to a chat completion model. Transient failures are retried
// by the openai-go client; quota and credential failures are not.
type Client struct {
	client      oai.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int64
}

func NewClient(cfg Config) *Client {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMiddleware(stopRetryOnQuota),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if err := ValidateAPIKey(key); err != nil {
		log.WithField("env", cfg.APIKeyEnv).Warn("completion API key is missing or malformed, completions are disabled")
	} else {
		opts = append(opts, option.WithAPIKey(key))
	}

	return &Client{
		client:      oai.NewClient(opts...),
		apiKey:      key,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete returns the model's answer to prompt under the given system instruction.
// An empty answer is retried once before it is reported.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	const op = "completion.Complete"
	if err := ValidateAPIKey(c.apiKey); err != nil {
		return "", domain.E(domain.KindConfiguration, op, err)
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		text, err := c.complete(ctx, prompt, systemPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !domain.IsKind(err, domain.KindEmptyResponse) {
			break
		}
		log.WithField("attempt", attempt+1).Warn("completion returned no content")
	}
	return "", lastErr
}

func (c *Client) complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	const op = "completion.Complete"
	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(prompt),
		},
		Model:       oai.ChatModel(c.model),
		Temperature: oai.Float(c.temperature),
		MaxTokens:   oai.Int(c.maxTokens),
	})
	if err != nil {
		return "", classify(op, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", domain.Errorf(domain.KindEmptyResponse, op, "client didn't return any content choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return domain.E(domain.KindUnknown, op, err)
	}
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		// No HTTP response: connection failure or timeout.
		return domain.E(domain.KindTransient, op, err)
	}
	switch {
	case isQuota(apiErr.Code) || isQuota(apiErr.Type):
		return domain.E(domain.KindQuotaExceeded, op, err)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.Code == "invalid_api_key":
		return domain.E(domain.KindInvalidCredentials, op, err)
	case apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode == http.StatusConflict,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode >= http.StatusInternalServerError:
		return domain.E(domain.KindTransient, op, err)
	default:
		return domain.E(domain.KindUnknown, op, err)
	}
}

func isQuota(s string) bool {
	return s == "insufficient_quota"
}

// stopRetryOnQuota marks exhausted-quota responses as non-retryable. They share the
// 429 status with rate limiting, which openai-go retries by default.
func stopRetryOnQuota(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	res, err := next(req)
	if err != nil || res == nil || res.StatusCode != http.StatusTooManyRequests {
		return res, err
	}
	body, readErr := io.ReadAll(res.Body)
	_ = res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(body))
	if readErr == nil && bytes.Contains(body, []byte("insufficient_quota")) {
		res.Header.Set("x-should-retry", "false")
	}
	return res, nil
}
