package querylog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/eventbus"
	"github.com/chemistry/api/internal/models"
)

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []any
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, v)
	return p.err
}

func TestAuditor_RecordsAndPublishes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO query_logs").
		WithArgs(pgxmock.AnyArg(), "req-1", "/api/v1/ask", "grounded", false, "ok", int64(1500), "Apa itu etanol?", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	pub := &capturePublisher{}
	a := NewAuditor(NewRepository(mock), pub, zap.NewNop())

	a.Record(context.Background(), Entry{
		RequestID: "req-1",
		Endpoint:  "/api/v1/ask",
		Path:      "grounded",
		Outcome:   "ok",
		Latency:   1500 * time.Millisecond,
		Query:     "Apa itu etanol?",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, pub.events, 1)
	assert.Equal(t, eventbus.SubjectAnswerServed, pub.subjects[0])
	event, ok := pub.events[0].(models.AnswerServedEvent)
	require.True(t, ok)
	assert.Equal(t, "grounded", event.Path)
	assert.Equal(t, int64(1500), event.LatencyMS)
}

func TestAuditor_SwallowsFailures(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO query_logs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	pub := &capturePublisher{err: errors.New("nats down")}
	a := NewAuditor(NewRepository(mock), pub, nil)

	assert.NotPanics(t, func() {
		a.Record(context.Background(), Entry{Endpoint: "/api/v1/combine", Outcome: "rate_limited"})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, pub.events, 1)
}

func TestAuditor_NilSinks(t *testing.T) {
	var nilAuditor *Auditor
	assert.NotPanics(t, func() {
		nilAuditor.Record(context.Background(), Entry{})
		NewAuditor(nil, nil, nil).Record(context.Background(), Entry{})
	})
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "pendek", Preview("pendek"))
	long := strings.Repeat("ä", 250)
	assert.Equal(t, strings.Repeat("ä", 200), Preview(long))
}
