package openai

import (
	"context"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"echomind/internal/domain"
)

const (
	DefaultModel   = "text-embedding-ada-002"
	DefaultTimeout = 30 * time.Second
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
// It never retries; retry policy belongs to the caller.
type Client struct {
	client     oai.Client
	model      string
	dimension  int
	configured bool
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey string
	Model  string
	// Dimension, when non-zero, rejects vectors of any other length.
	Dimension int
	Timeout   time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
// A missing API key leaves the client usable but every Embed call fails with a
// configuration error.
func NewClient(cfg Config) *Client {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	t := cfg.Timeout
	if t == 0 {
		t = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(t),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if key == "" {
		log.WithField("env", cfg.APIKeyEnv).Warn("embedding API key is not set, embeddings are disabled")
	} else {
		opts = append(opts, option.WithAPIKey(key))
	}

	return &Client{
		client:     oai.NewClient(opts...),
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		configured: key != "",
	}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai/" + c.model }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	const op = "embedding.Embed"
	if strings.TrimSpace(text) == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "input text is empty")
	}
	if !c.configured {
		return nil, domain.Errorf(domain.KindConfiguration, op, "embedding API key is not set")
	}

	resp, err := c.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Input: oai.EmbeddingNewParamsInputUnion{OfString: oai.String(text)},
		Model: oai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, domain.E(domain.KindEmbedding, op, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, domain.Errorf(domain.KindEmbedding, op, "no embedding returned")
	}
	v := resp.Data[0].Embedding
	if c.dimension > 0 && len(v) != c.dimension {
		return nil, domain.Errorf(domain.KindEmbedding, op, "embedding has %d dimensions, expected %d", len(v), c.dimension)
	}
	return v, nil
}
