package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/retrieval"
)

const (
	ChunkSize    = 1000
	ChunkOverlap = 100

	// minContentLength is the shortest record text worth indexing.
	minContentLength = 50
)

// contentKeys are tried in order for a record's text.
var contentKeys = []string{"content", "text", "deskripsi"}

// ErrNoDocuments means no record carried usable text.
var ErrNoDocuments = errors.New("gagal memuat dokumen: periksa key konten utama di JSON")

// Store replaces the whole vector index.
type Store interface {
	Replace(ctx context.Context, chunks []retrieval.Chunk) error
}

// Result summarizes a completed rebuild.
type Result struct {
	Documents int
	Chunks    int
	Duration  time.Duration
}

// Message is the human readable summary returned to operators.
func (r Result) Message() string {
	return fmt.Sprintf("Ingestion berhasil! %d chunks dari %d dokumen telah disimpan ke Vector DB.", r.Chunks, r.Documents)
}

// Pipeline loads compound records, splits and embeds them, and rebuilds the index.
type Pipeline struct {
	embedder retrieval.Embedder
	store    Store
	splitter textsplitter.TextSplitter
	logger   *zap.Logger
}

func NewPipeline(embedder retrieval.Embedder, store Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(ChunkSize),
			textsplitter.WithChunkOverlap(ChunkOverlap),
		),
		logger: logger,
	}
}

// RunFile rebuilds the index from the JSON array in path.
func (p *Pipeline) RunFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("file JSON %s tidak ditemukan: %w", path, err)
	}
	defer f.Close()
	return p.Run(ctx, f)
}

// Run rebuilds the index from a JSON array of compound records.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Result, error) {
	start := time.Now()
	if p.embedder == nil {
		return Result{}, retrieval.ErrEmbedderUnavailable
	}

	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return Result{}, fmt.Errorf("failed to decode records: %w", err)
	}

	docs := Documents(records)
	if len(docs) == 0 {
		return Result{}, ErrNoDocuments
	}

	chunks, err := p.split(docs)
	if err != nil {
		return Result{}, err
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.store.Replace(ctx, chunks); err != nil {
		return Result{}, err
	}

	res := Result{Documents: len(docs), Chunks: len(chunks), Duration: time.Since(start)}
	p.logger.Info("index rebuilt",
		zap.Int("documents", res.Documents),
		zap.Int("chunks", res.Chunks),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (p *Pipeline) split(docs []retrieval.Document) ([]retrieval.Chunk, error) {
	chunks := make([]retrieval.Chunk, 0, len(docs))
	for _, doc := range docs {
		segments, err := p.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split document: %w", err)
		}
		for _, seg := range segments {
			if seg = strings.TrimSpace(seg); seg == "" {
				continue
			}
			chunks = append(chunks, retrieval.Chunk{
				ID:       uuid.New(),
				Content:  seg,
				Metadata: doc.Metadata,
			})
		}
	}
	return chunks, nil
}

// Documents converts raw records into indexable documents. Records whose
// text is 50 characters or shorter are skipped; metadata keeps scalar fields only.
func Documents(records []map[string]any) []retrieval.Document {
	docs := make([]retrieval.Document, 0, len(records))
	for _, rec := range records {
		content := contentOf(rec)
		if len([]rune(content)) <= minContentLength {
			continue
		}
		docs = append(docs, retrieval.Document{Content: content, Metadata: ScalarMetadata(rec)})
	}
	return docs
}

func contentOf(rec map[string]any) string {
	for _, key := range contentKeys {
		if s, ok := rec[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ScalarMetadata drops nested, list and null values.
func ScalarMetadata(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		switch v.(type) {
		case string, bool, float64, int, int64:
			out[k] = v
		}
	}
	return out
}
