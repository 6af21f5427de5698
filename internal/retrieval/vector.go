package retrieval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/metrics"
)

var tracer = otel.Tracer("github.com/chemistry/api/internal/retrieval")

// Searcher finds the documents nearest to an embedding.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]Document, error)
}

// VectorRetriever embeds the query and searches the vector index.
type VectorRetriever struct {
	embedder Embedder
	searcher Searcher
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

func NewVectorRetriever(embedder Embedder, searcher Searcher, logger *zap.Logger, rec *metrics.Recorder) *VectorRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorRetriever{embedder: embedder, searcher: searcher, logger: logger, metrics: rec}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, nil
	}
	if r.embedder == nil {
		r.metrics.ObserveRetrieval("unavailable")
		return nil, ErrEmbedderUnavailable
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.metrics.ObserveRetrieval("error")
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	docs, err := r.searcher.Search(ctx, vec, k)
	if err != nil {
		r.metrics.ObserveRetrieval("error")
		return nil, err
	}

	if len(docs) == 0 {
		r.metrics.ObserveRetrieval("empty")
	} else {
		r.metrics.ObserveRetrieval("hit")
	}
	span.SetAttributes(attribute.Int("documents", len(docs)))
	r.logger.Debug("retrieved documents", zap.Int("k", k), zap.Int("documents", len(docs)))
	return docs, nil
}
