package retrieval

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGVectorStore_Search(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGVectorStore(mock, "compound_chunks", 3)
	mock.ExpectQuery(`SELECT content, metadata, 1 - \(embedding <=> \$1\) AS score FROM "compound_chunks"`).
		WithArgs(pgxmock.AnyArg(), 2).
		WillReturnRows(pgxmock.NewRows([]string{"content", "metadata", "score"}).
			AddRow("Air adalah pelarut universal.", []byte(`{"nama_senyawa":"Air"}`), 0.91).
			AddRow("Etanol mudah terbakar.", []byte(`{}`), 0.75))

	docs, err := store.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 2)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Air adalah pelarut universal.", docs[0].Content)
	assert.Equal(t, "Air", docs[0].Metadata["nama_senyawa"])
	assert.InDelta(t, 0.91, docs[0].Metadata["score"], 1e-9)
	assert.Equal(t, "Etanol mudah terbakar.", docs[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_SearchMissingTableIsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGVectorStore(mock, "compound_chunks", 2)
	mock.ExpectQuery("SELECT content").
		WithArgs(pgxmock.AnyArg(), 3).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "compound_chunks" does not exist`})

	docs, err := store.Search(context.Background(), []float32{1, 0}, 3)

	assert.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_SearchDimensionMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGVectorStore(mock, "compound_chunks", 768)

	_, err = store.Search(context.Background(), []float32{1, 0}, 3)

	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestPGVectorStore_Replace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGVectorStore(mock, "compound_chunks", 2)
	chunks := []Chunk{
		{ID: uuid.New(), Content: "a", Metadata: map[string]any{"cid": 702}, Embedding: []float32{1, 0}},
		{ID: uuid.New(), Content: "b", Metadata: map[string]any{}, Embedding: []float32{0, 1}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "compound_chunks"`).WillReturnResult(pgxmock.NewResult("DELETE", 7))
	for _, c := range chunks {
		mock.ExpectExec(`INSERT INTO "compound_chunks"`).
			WithArgs(c.ID, c.Content, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Replace(context.Background(), chunks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_ReplaceRollsBackOnBadChunk(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGVectorStore(mock, "compound_chunks", 2)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err = store.Replace(context.Background(), []Chunk{{ID: uuid.New(), Content: "a", Embedding: []float32{1}}})

	assert.ErrorContains(t, err, "dimension mismatch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGVectorStore(mock, "compound_chunks", 2)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "compound_chunks"`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnError(&pgconn.PgError{Code: "42P01"})

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
