package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/generation"
	"github.com/chemistry/api/internal/metrics"
	"github.com/chemistry/api/internal/prompt"
	"github.com/chemistry/api/internal/retrieval"
	"github.com/chemistry/api/internal/structured"
)

const sentinel = "tidak dapat menemukan jawaban yang relevan"

type fakeGenerator struct {
	mu      sync.Mutex
	results []generation.Result
	seen    []generation.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req generation.Request) generation.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, req)
	if len(g.results) == 0 {
		return generation.Result{Outcome: generation.OutcomeSuccess, Text: "jawaban", Attempts: 1}
	}
	res := g.results[0]
	g.results = g.results[1:]
	return res
}

type fakeRetriever struct {
	docs  []retrieval.Document
	err   error
	calls int
	gotK  int
	gotQ  string
}

func (r *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]retrieval.Document, error) {
	r.calls++
	r.gotK = k
	r.gotQ = query
	return r.docs, r.err
}

func ok(text string) generation.Result {
	return generation.Result{Outcome: generation.OutcomeSuccess, Text: text, Attempts: 1}
}

func failed(outcome generation.Outcome, detail string) generation.Result {
	return generation.Result{Outcome: outcome, Detail: detail, Attempts: 1}
}

func newRouter(ret retrieval.Retriever, gen Generator) *Router {
	return New(Config{
		LongQueryThreshold:    150,
		ComplexRequestMarkers: []string{"saya membutuhkan rekomendasi"},
		NoAnswerSentinel:      sentinel,
		TopK:                  3,
		Temperature:           0.7,
	}, ret, prompt.NewAssembler(), gen, zap.NewNop(), metrics.New(prometheus.NewRegistry()))
}

func groundingDocs() []retrieval.Document {
	return []retrieval.Document{
		{Content: "Natrium klorida (NaCl) larut dalam air."},
		{Content: "NaCl memiliki titik leleh 801 C."},
	}
}

func TestRoute_StructuredGoesDirectWithStrictJSON(t *testing.T) {
	ret := &fakeRetriever{docs: groundingDocs()}
	gen := &fakeGenerator{results: []generation.Result{ok("```json\n{\"nama_senyawa\":\"Gliserol\",\"skor_kecocokan\":95}\n```")}}
	r := newRouter(ret, gen)

	ans, err := r.Route(context.Background(), Query{Text: "rekomendasikan humektan", StructuredOutputRequired: true})

	require.NoError(t, err)
	assert.Equal(t, PathDirect, ans.Path)
	assert.Equal(t, "Gliserol", ans.Object["nama_senyawa"])
	assert.Equal(t, float64(95), ans.Object["skor_kecocokan"])
	assert.Zero(t, ret.calls)
	require.Len(t, gen.seen, 1)
	assert.Equal(t, generation.ModeStrictJSON, gen.seen[0].Mode)
	assert.Equal(t, generation.TierPrecise, gen.seen[0].Tier)
	assert.InDelta(t, 0.7, gen.seen[0].Temperature, 1e-9)
}

func TestRoute_StructuredMalformedOutput(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{ok("Maaf, saya tidak bisa.")}}
	r := newRouter(&fakeRetriever{}, gen)

	ans, err := r.Route(context.Background(), Query{Text: "x", StructuredOutputRequired: true})

	assert.Nil(t, ans)
	var malformed *structured.MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "Maaf, saya tidak bisa.", malformed.RawPrefix)
	assert.Len(t, gen.seen, 1)
}

func TestRoute_StructuredIgnoresLengthAndNeverFallsBack(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{
		ok(`{"catatan":"` + sentinel + `"}`),
	}}
	r := newRouter(&fakeRetriever{}, gen)

	ans, err := r.Route(context.Background(), Query{Text: "pendek", StructuredOutputRequired: true})

	require.NoError(t, err)
	assert.Equal(t, PathDirect, ans.Path)
	assert.Len(t, gen.seen, 1)
}

func TestRoute_LongQueryGoesDirect(t *testing.T) {
	ret := &fakeRetriever{docs: groundingDocs()}
	gen := &fakeGenerator{}
	r := newRouter(ret, gen)

	ans, err := r.Route(context.Background(), Query{Text: strings.Repeat("a", 150)})

	require.NoError(t, err)
	assert.Equal(t, PathDirect, ans.Path)
	assert.Zero(t, ret.calls)
	require.Len(t, gen.seen, 1)
	assert.Equal(t, generation.ModeFreeText, gen.seen[0].Mode)
	assert.Equal(t, generation.TierFast, gen.seen[0].Tier)
	assert.Equal(t, strings.Repeat("a", 150), gen.seen[0].Prompt)
}

func TestRoute_LengthCountsCharactersNotBytes(t *testing.T) {
	r := newRouter(&fakeRetriever{}, &fakeGenerator{})

	assert.Equal(t, PathGrounded, r.Decide(Query{Text: strings.Repeat("é", 149)}))
	assert.Equal(t, PathDirect, r.Decide(Query{Text: strings.Repeat("é", 150)}))
}

func TestDecide(t *testing.T) {
	r := newRouter(nil, nil)

	tests := []struct {
		name string
		q    Query
		want Path
	}{
		{name: "short factual", q: Query{Text: "Apa rumus molekul etanol?"}, want: PathGrounded},
		{name: "149 chars", q: Query{Text: strings.Repeat("x", 149)}, want: PathGrounded},
		{name: "150 chars", q: Query{Text: strings.Repeat("x", 150)}, want: PathDirect},
		{name: "marker", q: Query{Text: "saya membutuhkan rekomendasi pelarut"}, want: PathDirect},
		{name: "marker mixed case with spaces", q: Query{Text: "  Saya Membutuhkan Rekomendasi pupuk"}, want: PathDirect},
		{name: "marker not at start", q: Query{Text: "apakah saya membutuhkan rekomendasi?"}, want: PathGrounded},
		{name: "structured", q: Query{Text: "x", StructuredOutputRequired: true}, want: PathDirect},
		{name: "feedback ignored", q: Query{Text: "x", Feedback: strings.Repeat("f", 500)}, want: PathGrounded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Decide(tt.q))
		})
	}
}

func TestRoute_GroundedSuccess(t *testing.T) {
	ret := &fakeRetriever{docs: groundingDocs()}
	gen := &fakeGenerator{results: []generation.Result{ok("Titik leleh NaCl adalah 801 C.")}}
	r := newRouter(ret, gen)

	ans, err := r.Route(context.Background(), Query{Text: "Berapa titik leleh NaCl?"})

	require.NoError(t, err)
	assert.Equal(t, PathGrounded, ans.Path)
	assert.Equal(t, "Titik leleh NaCl adalah 801 C.", ans.Content)
	assert.Nil(t, ans.Object)
	assert.Equal(t, 3, ret.gotK)
	assert.Equal(t, "Berapa titik leleh NaCl?", ret.gotQ)
	require.Len(t, gen.seen, 1)
	assert.Contains(t, gen.seen[0].Prompt, "KONTEKS:\nNatrium klorida (NaCl) larut dalam air.\n---\nNaCl memiliki titik leleh 801 C.")
	assert.Equal(t, generation.ModeFreeText, gen.seen[0].Mode)
}

func TestRoute_SentinelTriggersSingleFallback(t *testing.T) {
	ret := &fakeRetriever{docs: groundingDocs()}
	gen := &fakeGenerator{results: []generation.Result{
		ok("Saya TIDAK DAPAT MENEMUKAN JAWABAN YANG RELEVAN dari dokumen yang tersedia."),
		ok("Benzena adalah hidrokarbon aromatik."),
	}}
	r := newRouter(ret, gen)

	ans, err := r.Route(context.Background(), Query{Text: "Apa itu benzena?"})

	require.NoError(t, err)
	assert.Equal(t, PathGroundedThenDirect, ans.Path)
	assert.Equal(t, "Benzena adalah hidrokarbon aromatik.", ans.Content)
	require.Len(t, gen.seen, 2)
	assert.Equal(t, "Apa itu benzena?", gen.seen[1].Prompt)
	assert.Equal(t, generation.ModeFreeText, gen.seen[1].Mode)
}

func TestRoute_FallbackAnswerWithSentinelIsReturned(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{
		ok(sentinel),
		ok("juga " + sentinel),
	}}
	r := newRouter(&fakeRetriever{docs: groundingDocs()}, gen)

	ans, err := r.Route(context.Background(), Query{Text: "q"})

	require.NoError(t, err)
	assert.Equal(t, PathGroundedThenDirect, ans.Path)
	assert.Len(t, gen.seen, 2)
}

func TestRoute_GroundedFailureFallsBack(t *testing.T) {
	for _, outcome := range []generation.Outcome{generation.OutcomeProviderError, generation.OutcomeClientError} {
		t.Run(outcome.String(), func(t *testing.T) {
			gen := &fakeGenerator{results: []generation.Result{
				failed(outcome, "boom"),
				ok("jawaban langsung"),
			}}
			r := newRouter(&fakeRetriever{docs: groundingDocs()}, gen)

			ans, err := r.Route(context.Background(), Query{Text: "q"})

			require.NoError(t, err)
			assert.Equal(t, PathGroundedThenDirect, ans.Path)
			assert.Equal(t, "jawaban langsung", ans.Content)
		})
	}
}

func TestRoute_FallbackFailureIsTerminal(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{
		ok(sentinel),
		failed(generation.OutcomeProviderError, "upstream 500"),
	}}
	r := newRouter(&fakeRetriever{docs: groundingDocs()}, gen)

	ans, err := r.Route(context.Background(), Query{Text: "q"})

	assert.Nil(t, ans)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindProviderError, rerr.Kind)
	assert.Equal(t, PathGroundedThenDirect, rerr.Path)
	assert.Equal(t, "upstream 500", rerr.Detail)
	assert.Len(t, gen.seen, 2)
}

func TestRoute_GroundedRateLimitIsTerminal(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{failed(generation.OutcomeRateLimited, "429")}}
	r := newRouter(&fakeRetriever{docs: groundingDocs()}, gen)

	_, err := r.Route(context.Background(), Query{Text: "q"})

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindRateLimited, rerr.Kind)
	assert.Equal(t, PathGrounded, rerr.Path)
	assert.Len(t, gen.seen, 1)
}

func TestRoute_DirectRateLimit(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{failed(generation.OutcomeRateLimited, "quota")}}
	r := newRouter(nil, gen)

	_, err := r.Route(context.Background(), Query{Text: "saya membutuhkan rekomendasi bahan"})

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindRateLimited, rerr.Kind)
	assert.Equal(t, PathDirect, rerr.Path)
}

func TestRoute_EmptyRetrievalStillGenerates(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{ok("Ozon adalah O3.")}}
	r := newRouter(&fakeRetriever{}, gen)

	ans, err := r.Route(context.Background(), Query{Text: "Apa itu ozon?"})

	require.NoError(t, err)
	assert.Equal(t, PathGrounded, ans.Path)
	require.Len(t, gen.seen, 1)
	assert.True(t, strings.HasPrefix(gen.seen[0].Prompt, prompt.UngroundedInstruction))
	assert.NotContains(t, gen.seen[0].Prompt, "KONTEKS")
}

func TestRoute_RetrievalErrorIsTreatedAsEmpty(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(&fakeRetriever{err: errors.New("connection refused")}, gen)

	ans, err := r.Route(context.Background(), Query{Text: "Apa itu ozon?"})

	require.NoError(t, err)
	assert.Equal(t, PathGrounded, ans.Path)
	assert.NotContains(t, gen.seen[0].Prompt, "KONTEKS")
}

func TestRoute_FeedbackReachesPromptOnEveryPath(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{ok(sentinel), ok("oke")}}
	r := newRouter(&fakeRetriever{docs: groundingDocs()}, gen)

	_, err := r.Route(context.Background(), Query{Text: "q", Feedback: "jawab dalam satu kalimat"})

	require.NoError(t, err)
	require.Len(t, gen.seen, 2)
	for _, req := range gen.seen {
		assert.Contains(t, req.Prompt, "Catatan pengguna:\njawab dalam satu kalimat")
	}
}

func TestRoute_NilGeneratorIsClientError(t *testing.T) {
	r := newRouter(nil, nil)

	_, err := r.Route(context.Background(), Query{Text: "q", StructuredOutputRequired: true})

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindClientError, rerr.Kind)
}

func TestRoute_CanceledContextSkipsFallback(t *testing.T) {
	gen := &fakeGenerator{results: []generation.Result{failed(generation.OutcomeClientError, "context canceled")}}
	r := newRouter(&fakeRetriever{docs: groundingDocs()}, gen)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Route(ctx, Query{Text: "q"})

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindClientError, rerr.Kind)
	assert.Len(t, gen.seen, 1)
}

func TestRoute_ConcurrentQueriesAreIndependent(t *testing.T) {
	gen := &fakeGenerator{}
	r := newRouter(&fakeRetriever{}, gen)

	var wg sync.WaitGroup
	paths := make([]Path, 20)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ans, err := r.Route(context.Background(), Query{Text: strings.Repeat("z", 150+i)})
			if err == nil {
				paths[i] = ans.Path
			}
		}(i)
	}
	wg.Wait()

	for _, p := range paths {
		assert.Equal(t, PathDirect, p)
	}
	assert.Len(t, gen.seen, 20)
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindRateLimited, Path: PathGrounded, Detail: "quota"}
	assert.Equal(t, "rate_limited on grounded path: quota", err.Error())
}
