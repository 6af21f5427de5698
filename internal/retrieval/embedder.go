package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

// Embedder turns text into vectors. langchaingo's embeddings.Embedder satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ErrEmbedderUnavailable is returned when no embedding credentials are configured.
var ErrEmbedderUnavailable = errors.New("embedder is not configured")

// NewGeminiEmbedder builds a Gemini embedding client for model.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (Embedder, error) {
	if apiKey == "" {
		return nil, ErrEmbedderUnavailable
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(100),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to construct embedder: %w", err)
	}
	return embedder, nil
}

const embeddingKeyPrefix = "chem:emb:"

// CachedEmbedder memoizes query embeddings in Redis. Cache failures are
// logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	next   Embedder
	client *redis.Client
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedEmbedder(next Embedder, client *redis.Client, model string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{next: next, client: client, model: model, ttl: ttl, logger: logger}
}

// EmbedDocuments is not cached; documents are embedded once per ingestion.
func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jsonErr := json.Unmarshal(cached, &vec); jsonErr == nil {
			return vec, nil
		}
		c.logger.Warn("discarding corrupt cached embedding", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(vec); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(setErr))
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingKeyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}
