package database

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_AreEmbeddedInPairs(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)

	var up, down int
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			up++
		case strings.HasSuffix(n, ".down.sql"):
			down++
		}
	}
	assert.Equal(t, 2, up)
	assert.Equal(t, up, down)
}

func TestMigrations_CreateVectorTable(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/000001_create_compound_chunks.up.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.Contains(t, sql, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, sql, "embedding   vector(768)")
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer r.Close()

	assert.NoError(t, r.Ping(context.Background()))
	assert.NotNil(t, r.Client())
}

func TestNewRedis_InvalidURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}
