package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
)

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// DB is the subset of *pgxpool.Pool used by the stores.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Chunk is an embedded piece of a source document.
type Chunk struct {
	ID        uuid.UUID
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// PGVectorStore keeps chunks and their embeddings in a pgvector table.
type PGVectorStore struct {
	db         DB
	tableIdent string
	dimension  int
}

func NewPGVectorStore(db DB, table string, dimension int) *PGVectorStore {
	return &PGVectorStore{
		db:         db,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		dimension:  dimension,
	}
}

// Search returns the k chunks nearest to query by cosine distance.
// A missing table yields no documents and no error.
func (s *PGVectorStore) Search(ctx context.Context, query []float32, k int) ([]Document, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("pgvector: query dimension mismatch (got %d want %d)", len(query), s.dimension)
	}
	stmt := fmt.Sprintf(
		"SELECT content, metadata, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 ASC LIMIT $2",
		s.tableIdent,
	)
	rows, err := s.db.Query(ctx, stmt, pgvector.NewVector(query), k)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, k)
	for rows.Next() {
		var (
			content     string
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(&content, &metadataRaw, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		meta := make(map[string]any)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &meta); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
			}
		}
		meta["score"] = score
		docs = append(docs, Document{Content: content, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return docs, nil
}

// Replace swaps the table contents for chunks in one transaction.
func (s *PGVectorStore) Replace(ctx context.Context, chunks []Chunk) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("pgvector: commit: %w", commitErr)
		}
	}()

	if _, err = tx.Exec(ctx, "DELETE FROM "+s.tableIdent); err != nil {
		return fmt.Errorf("pgvector: clear: %w", err)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, content, metadata, embedding, created_at) VALUES ($1, $2, $3, $4, $5)",
		s.tableIdent,
	)
	now := time.Now().UTC()
	for i := range chunks {
		c := chunks[i]
		if len(c.Embedding) != s.dimension {
			return fmt.Errorf("pgvector: chunk %s dimension mismatch (got %d want %d)", c.ID, len(c.Embedding), s.dimension)
		}
		metadata, marshalErr := json.Marshal(c.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("pgvector: marshal metadata for %s: %w", c.ID, marshalErr)
		}
		if _, err = tx.Exec(ctx, stmt, c.ID, c.Content, metadata, pgvector.NewVector(c.Embedding), now); err != nil {
			return fmt.Errorf("pgvector: insert %s: %w", c.ID, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks, zero when the table is absent.
func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.tableIdent).Scan(&n); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return n, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
