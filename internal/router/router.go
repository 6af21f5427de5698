package router

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/generation"
	"github.com/chemistry/api/internal/metrics"
	"github.com/chemistry/api/internal/prompt"
	"github.com/chemistry/api/internal/retrieval"
	"github.com/chemistry/api/internal/structured"
)

var tracer = otel.Tracer("github.com/chemistry/api/internal/router")

// Generator is satisfied by *generation.Client.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) generation.Result
}

// Config holds the routing thresholds.
type Config struct {
	LongQueryThreshold    int
	ComplexRequestMarkers []string
	NoAnswerSentinel      string
	TopK                  int
	Temperature           float64
}

// Router picks a generation strategy per query and runs it. It holds no
// per-request state and is safe for concurrent use.
type Router struct {
	cfg       Config
	retriever retrieval.Retriever
	assembler *prompt.Assembler
	generator Generator
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

func New(cfg Config, retriever retrieval.Retriever, assembler *prompt.Assembler, generator Generator, logger *zap.Logger, rec *metrics.Recorder) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if assembler == nil {
		assembler = prompt.NewAssembler()
	}
	markers := make([]string, 0, len(cfg.ComplexRequestMarkers))
	for _, m := range cfg.ComplexRequestMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	cfg.ComplexRequestMarkers = markers
	cfg.NoAnswerSentinel = strings.ToLower(strings.TrimSpace(cfg.NoAnswerSentinel))
	return &Router{
		cfg:       cfg,
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		logger:    logger,
		metrics:   rec,
	}
}

// Decide returns the primary path for q without performing any I/O.
func (r *Router) Decide(q Query) Path {
	if q.StructuredOutputRequired || r.isComplex(q.Text) {
		return PathDirect
	}
	return PathGrounded
}

// Route answers q. Terminal generation failures are returned as *Error and
// unparseable structured output as *structured.MalformedOutputError.
func (r *Router) Route(ctx context.Context, q Query) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "router.Route")
	defer span.End()
	span.SetAttributes(attribute.Bool("structured", q.StructuredOutputRequired))

	answer, err := r.route(ctx, q)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var rerr *Error
		if errors.As(err, &rerr) {
			r.metrics.ObserveRoute(rerr.Path.String(), rerr.Kind.String())
		} else {
			r.metrics.ObserveRoute(PathDirect.String(), "malformed_output")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("path", answer.Path.String()))
	r.metrics.ObserveRoute(answer.Path.String(), "ok")
	return answer, nil
}

func (r *Router) route(ctx context.Context, q Query) (*Answer, error) {
	if q.StructuredOutputRequired {
		return r.structured(ctx, q)
	}
	if r.isComplex(q.Text) {
		r.logger.Debug("routing complex query directly", zap.Int("length", utf8.RuneCountInString(q.Text)))
		return r.direct(ctx, q, PathDirect)
	}
	return r.grounded(ctx, q)
}

func (r *Router) structured(ctx context.Context, q Query) (*Answer, error) {
	res := r.generate(ctx, prompt.WithFeedback(q.Text, q.Feedback), generation.TierPrecise, generation.ModeStrictJSON)
	if !res.Success() {
		return nil, errorFromResult(res, PathDirect)
	}
	obj, err := structured.Extract(res.Text)
	if err != nil {
		r.metrics.ObserveMalformedOutput()
		r.logger.Warn("structured output could not be parsed", zap.Error(err))
		return nil, err
	}
	return &Answer{Content: res.Text, Object: obj, Path: PathDirect}, nil
}

func (r *Router) direct(ctx context.Context, q Query, path Path) (*Answer, error) {
	res := r.generate(ctx, prompt.WithFeedback(q.Text, q.Feedback), generation.TierFast, generation.ModeFreeText)
	if !res.Success() {
		return nil, errorFromResult(res, path)
	}
	return &Answer{Content: res.Text, Path: path}, nil
}

func (r *Router) grounded(ctx context.Context, q Query) (*Answer, error) {
	docs := r.retrieve(ctx, q.Text)
	if len(docs) == 0 {
		r.metrics.ObserveGroundingEmpty()
		r.logger.Info("no grounding documents found, answering without context")
	}

	p := r.assembler.Assemble(prompt.WithFeedback(q.Text, q.Feedback), docs)
	res := r.generate(ctx, p.Text, generation.TierFast, generation.ModeFreeText)

	switch {
	case res.Success() && !r.isNoAnswer(res.Text):
		return &Answer{Content: res.Text, Path: PathGrounded}, nil
	case res.Outcome == generation.OutcomeRateLimited:
		return nil, errorFromResult(res, PathGrounded)
	case ctx.Err() != nil:
		return nil, errorFromResult(res, PathGrounded)
	}

	r.metrics.ObserveFallback()
	r.logger.Info("grounded answer unusable, falling back to direct generation",
		zap.String("outcome", res.Outcome.String()),
		zap.Bool("grounded", p.Grounded),
	)
	return r.direct(ctx, q, PathGroundedThenDirect)
}

// retrieve treats retrieval failures as an empty result.
func (r *Router) retrieve(ctx context.Context, text string) []retrieval.Document {
	if r.retriever == nil {
		return nil
	}
	docs, err := r.retriever.Retrieve(ctx, text, r.cfg.TopK)
	if err != nil {
		r.logger.Warn("retrieval failed, continuing without context", zap.Error(err))
		return nil
	}
	return docs
}

func (r *Router) generate(ctx context.Context, text string, tier generation.ModelTier, mode generation.ResponseMode) generation.Result {
	if r.generator == nil {
		return generation.Result{Outcome: generation.OutcomeClientError, Detail: "generator is not configured"}
	}
	return r.generator.Generate(ctx, generation.Request{
		Prompt:      text,
		Tier:        tier,
		Mode:        mode,
		Temperature: r.cfg.Temperature,
	})
}

func (r *Router) isComplex(text string) bool {
	if r.cfg.LongQueryThreshold > 0 && utf8.RuneCountInString(text) >= r.cfg.LongQueryThreshold {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, m := range r.cfg.ComplexRequestMarkers {
		if strings.HasPrefix(normalized, m) {
			return true
		}
	}
	return false
}

func (r *Router) isNoAnswer(text string) bool {
	return r.cfg.NoAnswerSentinel != "" && strings.Contains(strings.ToLower(text), r.cfg.NoAnswerSentinel)
}
