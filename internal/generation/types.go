package generation

import (
	"errors"
	"fmt"
)

// ModelTier selects between the fast and the precise model.
type ModelTier string

const (
	TierFast    ModelTier = "fast"
	TierPrecise ModelTier = "precise"
)

// ResponseMode tells the provider whether to constrain output to JSON.
type ResponseMode string

const (
	ModeFreeText   ResponseMode = "free_text"
	ModeStrictJSON ResponseMode = "strict_json"
)

// Request is a single generation call. It is never mutated between retries.
type Request struct {
	Prompt      string
	Tier        ModelTier
	Mode        ResponseMode
	Temperature float64
}

// Outcome tags a Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeProviderError
	OutcomeClientError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeClientError:
		return "client_error"
	}
	return "unknown"
}

// Result is the outcome of Client.Generate. Text is set only on success,
// Detail only on failures.
type Result struct {
	Outcome  Outcome
	Text     string
	Detail   string
	Attempts int
}

// Success reports whether the call produced text.
func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// Failed reports a provider or client failure. RateLimited is not included:
// it is an exhausted-retry outcome, not a fault of the request.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeProviderError || r.Outcome == OutcomeClientError
}

// Errors a Provider wraps to classify its failures. Anything else is
// treated as a non-retryable provider error.
var (
	ErrRateLimited = errors.New("generation: rate limited")
	ErrClientFault = errors.New("generation: client fault")
)

// RateLimited wraps err so that Client treats it as retryable.
func RateLimited(err error) error {
	return fmt.Errorf("%w: %v", ErrRateLimited, err)
}

// ClientFault wraps err as a local misconfiguration or transport failure.
func ClientFault(err error) error {
	return fmt.Errorf("%w: %v", ErrClientFault, err)
}
