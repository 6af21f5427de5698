package querylog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/eventbus"
	"github.com/chemistry/api/internal/models"
)

// previewLength bounds the stored query text.
const previewLength = 200

// Execer is the subset of *pgxpool.Pool used by Repository.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists audit rows in query_logs.
type Repository struct {
	db Execer
}

func NewRepository(db Execer) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, entry models.QueryLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO query_logs (id, request_id, endpoint, path, structured, outcome, latency_ms, query_preview, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.RequestID, entry.Endpoint, entry.Path, entry.Structured,
		entry.Outcome, entry.LatencyMS, entry.QueryPreview, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	return nil
}

// Publisher is satisfied by *eventbus.Publisher.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Auditor records every routed request. Failures are logged and swallowed.
type Auditor struct {
	repo      *Repository
	publisher Publisher
	logger    *zap.Logger
}

// NewAuditor accepts nil for either sink.
func NewAuditor(repo *Repository, publisher Publisher, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{repo: repo, publisher: publisher, logger: logger}
}

// Entry describes one served or failed request.
type Entry struct {
	RequestID  string
	Endpoint   string
	Path       string
	Structured bool
	Outcome    string
	Latency    time.Duration
	Query      string
}

// Record writes entry to the database and publishes it.
func (a *Auditor) Record(ctx context.Context, e Entry) {
	if a == nil {
		return
	}
	now := time.Now().UTC()
	id := uuid.New()

	if a.repo != nil {
		err := a.repo.Insert(ctx, models.QueryLog{
			ID:           id,
			RequestID:    e.RequestID,
			Endpoint:     e.Endpoint,
			Path:         e.Path,
			Structured:   e.Structured,
			Outcome:      e.Outcome,
			LatencyMS:    e.Latency.Milliseconds(),
			QueryPreview: Preview(e.Query),
			CreatedAt:    now,
		})
		if err != nil {
			a.logger.Warn("query audit not stored", zap.Error(err))
		}
	}

	if a.publisher != nil {
		err := a.publisher.Publish(ctx, eventbus.SubjectAnswerServed, models.AnswerServedEvent{
			ID:         id,
			Endpoint:   e.Endpoint,
			Path:       e.Path,
			Structured: e.Structured,
			Outcome:    e.Outcome,
			LatencyMS:  e.Latency.Milliseconds(),
			Timestamp:  now,
		})
		if err != nil {
			a.logger.Warn("query audit not published", zap.Error(err))
		}
	}
}

// Preview truncates q to previewLength characters.
func Preview(q string) string {
	r := []rune(q)
	if len(r) <= previewLength {
		return q
	}
	return string(r[:previewLength])
}
