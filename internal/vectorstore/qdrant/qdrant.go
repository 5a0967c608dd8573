package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"echomind/internal/domain"
	"echomind/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection for vectors of the given dimension.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant answers 409 when the collection already exists.
	err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil, http.StatusConflict)
	return wrap("qdrant.Init", err)
}

func (s *Storage) Upsert(ctx context.Context, rec domain.Record) error {
	if len(rec.Vector) == 0 {
		return errors.New("empty vector")
	}
	body := map[string]any{"points": []map[string]any{{
		"id":     rec.ID.String(),
		"vector": rec.Vector,
		"payload": map[string]any{
			"conversation_id": rec.ConversationID.String(),
			"role":            string(rec.Role),
			"content":         rec.Content,
		},
	}}}
	err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
	return wrap("qdrant.Upsert", err)
}

func (s *Storage) Query(ctx context.Context, vector []float64, threshold float64, limit int) ([]domain.SimilarMessage, error) {
	req := map[string]any{
		"vector":          vector,
		"limit":           vectorstore.Limit(limit),
		"score_threshold": threshold,
		"with_payload":    true,
	}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, wrap("qdrant.Query", err)
	}
	results := make([]domain.SimilarMessage, 0, len(resp.Result))
	for _, r := range resp.Result {
		// score_threshold is inclusive on the server side.
		if r.Score <= threshold {
			continue
		}
		hit := domain.SimilarMessage{Similarity: r.Score}
		if id, err := uuid.Parse(r.ID); err == nil {
			hit.ID = id
		}
		if v, ok := r.Payload["content"].(string); ok {
			hit.Content = v
		}
		results = append(results, hit)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	return results, nil
}

// DeleteConversation drops every point of the conversation.
func (s *Storage) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   "conversation_id",
				"match": map[string]any{"value": conversationID.String()},
			}},
		},
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
	return wrap("qdrant.DeleteConversation", err)
}

type statusError struct {
	method string
	url    string
	status int
	text   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.text)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any, okStatuses ...int) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	for _, code := range okStatuses {
		if resp.StatusCode == code {
			return nil
		}
	}
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, status: resp.StatusCode, text: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// wrap reports transport failures and server errors as an unavailable store; client
// errors (bad request, wrong dimension) keep their own kind.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) && se.status < http.StatusInternalServerError {
		return domain.E(domain.KindUnknown, op, err)
	}
	return domain.E(domain.KindStoreUnavailable, op, err)
}
