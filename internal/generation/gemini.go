package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiProvider calls Google's Gemini models through langchaingo.
type GeminiProvider struct {
	model        llms.Model
	fastModel    string
	preciseModel string
}

// NewGeminiProvider creates a provider for the given API key. An empty key
// yields a provider whose every call fails as a client fault, so the service
// can still start and report itself degraded.
func NewGeminiProvider(ctx context.Context, apiKey, fastModel, preciseModel string) (*GeminiProvider, error) {
	p := &GeminiProvider{fastModel: fastModel, preciseModel: preciseModel}
	if apiKey == "" {
		return p, nil
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(fastModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	p.model = model
	return p, nil
}

// NewModelProvider wraps an existing llms.Model.
func NewModelProvider(model llms.Model, fastModel, preciseModel string) *GeminiProvider {
	return &GeminiProvider{model: model, fastModel: fastModel, preciseModel: preciseModel}
}

// Configured reports whether an upstream model is available.
func (p *GeminiProvider) Configured() bool {
	return p != nil && p.model != nil
}

// ModelFor returns the model name serving tier.
func (p *GeminiProvider) ModelFor(tier ModelTier) string {
	if tier == TierPrecise {
		return p.preciseModel
	}
	return p.fastModel
}

// Complete performs a single call. It never retries.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if !p.Configured() {
		return "", ClientFault(errors.New("GEMINI_API_KEY is not set"))
	}

	opts := []llms.CallOption{
		llms.WithModel(p.ModelFor(req.Tier)),
		llms.WithTemperature(req.Temperature),
	}
	if req.Mode == ModeStrictJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, p.model, req.Prompt, opts...)
	if err != nil {
		return "", classify(err)
	}
	return text, nil
}

// classify maps a provider error onto ErrRateLimited, ErrClientFault or leaves
// it as a plain provider error.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return RateLimited(err)
		case codes.Unauthenticated, codes.PermissionDenied:
			return ClientFault(err)
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return RateLimited(err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return ClientFault(err)
		}
		return err
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClientFault(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClientFault(err)
	}
	return err
}
