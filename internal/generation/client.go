package generation

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chemistry/api/internal/metrics"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2
	DefaultUnit        = time.Second

	// MaxDelay caps a single suspension.
	MaxDelay = time.Hour
)

var tracer = otel.Tracer("github.com/chemistry/api/internal/generation")

// Provider performs one upstream call. Rate limiting must be reported by
// wrapping ErrRateLimited, local faults by wrapping ErrClientFault.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options configures the retry policy of a Client.
type Options struct {
	MaxAttempts int
	BaseDelay   int
	Unit        time.Duration
}

// Client sends generation requests with bounded exponential backoff on rate limits.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	provider Provider
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Recorder

	// OnBackoff is called before each suspension. Tests use it to observe delays.
	OnBackoff func(attempt int, delay time.Duration)
}

// NewClient creates a generation client. Zero option values fall back to the defaults.
func NewClient(provider Provider, opts Options, logger *zap.Logger, rec *metrics.Recorder) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Unit <= 0 {
		opts.Unit = DefaultUnit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{provider: provider, opts: opts, logger: logger, metrics: rec}
}

// RetryState tracks one Generate invocation. It is never shared.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	BaseDelay   int
	Unit        time.Duration
}

// Exhausted reports whether the current attempt is the last one allowed.
func (s *RetryState) Exhausted() bool {
	return s.Attempt >= s.MaxAttempts-1
}

// Delay is Unit * BaseDelay^Attempt, saturating at MaxDelay. Attempt 0 yields one unit.
func (s *RetryState) Delay() time.Duration {
	base := time.Duration(s.BaseDelay)
	if base < 1 {
		base = 1
	}
	d := s.Unit
	for i := 0; i < s.Attempt; i++ {
		if d > MaxDelay/base {
			return MaxDelay
		}
		d *= base
	}
	return min(d, MaxDelay)
}

// RetryAfter is the suspension that would follow the final attempt, a hint
// for callers told to come back later.
func (c *Client) RetryAfter() time.Duration {
	s := RetryState{
		Attempt:     c.opts.MaxAttempts - 1,
		MaxAttempts: c.opts.MaxAttempts,
		BaseDelay:   c.opts.BaseDelay,
		Unit:        c.opts.Unit,
	}
	return s.Delay()
}

// Generate issues req until it succeeds, fails for a non-retryable reason, or
// runs out of attempts. It never returns an error; the outcome is in the Result.
func (c *Client) Generate(ctx context.Context, req Request) Result {
	ctx, span := tracer.Start(ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("tier", string(req.Tier)),
		attribute.String("mode", string(req.Mode)),
	)

	if c.provider == nil {
		res := Result{Outcome: OutcomeClientError, Detail: "generation provider is not configured"}
		c.finish(span, req, res)
		return res
	}

	state := &RetryState{
		MaxAttempts: c.opts.MaxAttempts,
		BaseDelay:   c.opts.BaseDelay,
		Unit:        c.opts.Unit,
	}

	var (
		text  string
		calls int
	)
	err := retry.Do(ctx, c.backoff(state), func(ctx context.Context) error {
		calls++
		out, callErr := c.provider.Complete(ctx, req)
		if callErr == nil {
			text = out
			return nil
		}
		if errors.Is(callErr, ErrRateLimited) {
			c.logger.Warn("generation rate limited",
				zap.Int("attempt", state.Attempt),
				zap.Int("max_attempts", state.MaxAttempts),
				zap.Error(callErr),
			)
			return retry.RetryableError(callErr)
		}
		return callErr
	})

	res := Result{Attempts: calls}
	switch {
	case err == nil:
		res.Outcome = OutcomeSuccess
		res.Text = text
	case errors.Is(err, ErrRateLimited):
		res.Outcome = OutcomeRateLimited
		res.Detail = err.Error()
	case errors.Is(err, ErrClientFault), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Outcome = OutcomeClientError
		res.Detail = err.Error()
	default:
		res.Outcome = OutcomeProviderError
		res.Detail = err.Error()
	}

	c.finish(span, req, res)
	return res
}

// backoff yields BaseDelay^attempt units after each rate-limited attempt and
// stops once the final attempt has been made, so no delay follows it.
func (c *Client) backoff(state *RetryState) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if state.Exhausted() {
			return 0, true
		}
		delay := state.Delay()
		if c.OnBackoff != nil {
			c.OnBackoff(state.Attempt, delay)
		}
		c.metrics.ObserveBackoff(delay)
		state.Attempt++
		return delay, false
	})
}

func (c *Client) finish(span trace.Span, req Request, res Result) {
	span.SetAttributes(
		attribute.String("outcome", res.Outcome.String()),
		attribute.Int("attempts", res.Attempts),
	)
	if !res.Success() {
		span.SetStatus(codes.Error, res.Detail)
		c.logger.Error("generation failed",
			zap.String("outcome", res.Outcome.String()),
			zap.String("tier", string(req.Tier)),
			zap.String("mode", string(req.Mode)),
			zap.Int("attempts", res.Attempts),
			zap.String("detail", res.Detail),
		)
	}
	c.metrics.ObserveGeneration(string(req.Tier), res.Outcome.String(), res.Attempts)
}
