package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echomind/internal/domain"
)

type embeddingServer struct {
	hits   atomic.Int32
	status int
	body   string
	input  atomic.Value
}

func (s *embeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	var req struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.input.Store(req.Input + "|" + req.Model)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func newTestClient(t *testing.T, srv *embeddingServer, dimension int) *Client {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return NewClient(Config{
		BaseURL:   ts.URL + "/v1/",
		APIKey:    "sk-test-key-0123456789abcdef",
		Dimension: dimension,
		Timeout:   5 * time.Second,
	})
}

func TestEmbed(t *testing.T) {
	srv := &embeddingServer{
		status: http.StatusOK,
		body:   `{"object":"list","model":"text-embedding-ada-002","data":[{"object":"embedding","index":0,"embedding":[0.25,0.5,0.75]}],"usage":{"prompt_tokens":2,"total_tokens":2}}`,
	}
	c := newTestClient(t, srv, 3)

	v, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, v)
	assert.Equal(t, "hello world|text-embedding-ada-002", srv.input.Load())
	assert.Equal(t, "openai/text-embedding-ada-002", c.Name())
}

func TestEmbedErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		dimension int
		text      string
		kind      domain.Kind
		hits      int32
	}{
		{
			name:   "empty input is rejected locally",
			status: http.StatusOK,
			text:   "   ",
			kind:   domain.KindValidation,
			hits:   0,
		},
		{
			name:   "missing data",
			status: http.StatusOK,
			body:   `{"object":"list","data":[]}`,
			text:   "hi",
			kind:   domain.KindEmbedding,
			hits:   1,
		},
		{
			name:      "dimension mismatch",
			status:    http.StatusOK,
			body:      `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,2]}]}`,
			dimension: 3,
			text:      "hi",
			kind:      domain.KindEmbedding,
			hits:      1,
		},
		{
			name:   "server error is not retried",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"boom","type":"server_error"}}`,
			text:   "hi",
			kind:   domain.KindEmbedding,
			hits:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &embeddingServer{status: tt.status, body: tt.body}
			c := newTestClient(t, srv, tt.dimension)
			_, err := c.Embed(context.Background(), tt.text)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, tt.hits, srv.hits.Load())
		})
	}
}

func TestEmbedWithoutKey(t *testing.T) {
	c := NewClient(Config{APIKeyEnv: "ECHOMIND_TEST_UNSET_KEY"})
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}
