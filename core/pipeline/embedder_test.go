package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/siherrmann/geoalert/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 4

// countingEmbedFunc returns a fixed vector and counts its calls.
func countingEmbedFunc(calls *int32, received *[]string) EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(calls, 1)
		if received != nil {
			*received = append(*received, text)
		}
		return []float32{0.1, 0.2, 0.3, 0.4}, nil
	}
}

func TestEmbedderEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty text returns zero vector without upstream call", func(t *testing.T) {
		var calls int32
		cache := NewEmbeddingCache(time.Minute, 10)
		e := NewEmbedder(countingEmbedFunc(&calls, nil), cache, testDimension, time.Second, nil)

		for _, text := range []string{"", "   ", "\n\t"} {
			outcome := e.Embed(ctx, text)
			assert.Equal(t, model.ZeroVector(testDimension), outcome.Value)
			assert.True(t, outcome.IsSuccess())
		}
		assert.Equal(t, int32(0), calls, "Expected no upstream call for empty text")
		assert.Equal(t, 0, cache.Len(), "Expected empty text not to be cached")
	})

	t.Run("Second call is served from cache", func(t *testing.T) {
		var calls int32
		e := NewEmbedder(countingEmbedFunc(&calls, nil), NewEmbeddingCache(time.Minute, 10), testDimension, time.Second, nil)

		first := e.Embed(ctx, "floods in Tabuk")
		second := e.Embed(ctx, "floods in Tabuk")

		assert.Equal(t, first.Value, second.Value)
		assert.Equal(t, int32(1), calls, "Expected a single upstream call")
	})

	t.Run("Texts sharing the key prefix share the embedding", func(t *testing.T) {
		var calls int32
		e := NewEmbedder(countingEmbedFunc(&calls, nil), NewEmbeddingCache(time.Minute, 10), testDimension, time.Second, nil)

		prefix := strings.Repeat("x", CacheKeyRunes)
		a := e.Embed(ctx, prefix+" about Tabuk")
		b := e.Embed(ctx, prefix+" about Jeddah")

		assert.Equal(t, a.Value, b.Value)
		assert.Equal(t, int32(1), calls, "Expected the second text to hit the cache")
	})

	t.Run("Upstream receives trimmed and truncated text", func(t *testing.T) {
		var calls int32
		var received []string
		e := NewEmbedder(countingEmbedFunc(&calls, &received), nil, testDimension, time.Second, nil)

		e.Embed(ctx, "  floods  ")
		e.Embed(ctx, strings.Repeat("ب", MaxEmbedRunes+100))

		require.Len(t, received, 2)
		assert.Equal(t, "floods", received[0])
		assert.Equal(t, MaxEmbedRunes, len([]rune(received[1])))
	})

	t.Run("Upstream failure degrades to zero vector", func(t *testing.T) {
		cache := NewEmbeddingCache(time.Minute, 10)
		e := NewEmbedder(func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("service unavailable")
		}, cache, testDimension, time.Second, nil)

		outcome := e.Embed(ctx, "floods")
		assert.Equal(t, model.ZeroVector(testDimension), outcome.Value)
		assert.Equal(t, model.StatusDegraded, outcome.Status)
		assert.ErrorContains(t, outcome.Err, "service unavailable")
		assert.Equal(t, 0, cache.Len(), "Expected failures not to be cached")
	})

	t.Run("Wrong dimension counts as failure", func(t *testing.T) {
		e := NewEmbedder(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 2}, nil
		}, nil, testDimension, time.Second, nil)

		outcome := e.Embed(ctx, "floods")
		assert.Equal(t, model.StatusDegraded, outcome.Status)
		assert.Len(t, outcome.Value, testDimension)
	})

	t.Run("Timeout degrades to zero vector", func(t *testing.T) {
		e := NewEmbedder(func(ctx context.Context, text string) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil, testDimension, 10*time.Millisecond, nil)

		outcome := e.Embed(ctx, "floods")
		assert.Equal(t, model.StatusDegraded, outcome.Status)
		assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
		assert.True(t, model.IsZeroVector(outcome.Value))
	})

	t.Run("Mutating a result does not affect the cache", func(t *testing.T) {
		var calls int32
		e := NewEmbedder(countingEmbedFunc(&calls, nil), NewEmbeddingCache(time.Minute, 10), testDimension, time.Second, nil)

		first := e.Embed(ctx, "floods")
		first.Value[0] = 42

		second := e.Embed(ctx, "floods")
		assert.Equal(t, float32(0.1), second.Value[0])
	})
}

func TestPrepareText(t *testing.T) {
	assert.Equal(t, "", PrepareText("  "))
	assert.Equal(t, "a b", PrepareText(" a b "))
	assert.Len(t, []rune(PrepareText(strings.Repeat("z", MaxEmbedRunes*2))), MaxEmbedRunes)
}

func TestOpenAIEmbedder(t *testing.T) {
	t.Run("Embedding request against a fake endpoint", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"object":"list","model":"text-embedding-ada-002","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0,1]}],"usage":{"prompt_tokens":2,"total_tokens":2}}`)
		}))
		defer server.Close()

		client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
		embed := OpenAIEmbedder(client, "text-embedding-ada-002", NewUpstreamLimiter(100, 1))

		vector, err := embed(context.Background(), "floods")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.25, 0, 1}, vector)
		assert.Equal(t, "/embeddings", path)
	})

	t.Run("Server error is returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"boom","type":"server_error"}}`)
		}))
		defer server.Close()

		client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
		embed := OpenAIEmbedder(client, "text-embedding-ada-002", nil)

		_, err := embed(context.Background(), "floods")
		assert.Error(t, err)
	})

	t.Run("Canceled context fails at the limiter", func(t *testing.T) {
		client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL("http://127.0.0.1:1/"), option.WithMaxRetries(0))
		embed := OpenAIEmbedder(client, "text-embedding-ada-002", NewUpstreamLimiter(0.001, 1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := embed(ctx, "floods")
		assert.Error(t, err)
	})
}

func TestDefaultEmbedder(t *testing.T) {
	t.Run("Generate embedding for text", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
		}

		embed, err := DefaultEmbedder()
		require.NoError(t, err)

		embedding, err := embed(context.Background(), "Flash flooding in Tabuk")
		require.NoError(t, err)
		assert.Equal(t, LocalEmbeddingDimension, len(embedding), "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
		assert.False(t, model.IsZeroVector(embedding), "Embedding should contain non-zero values")
	})
}
