package router

import (
	"fmt"

	"github.com/chemistry/api/internal/generation"
)

// Query is one inbound question.
type Query struct {
	Text                     string
	StructuredOutputRequired bool
	// Feedback is an optional note from the user. It is added to the prompt
	// but never influences routing.
	Feedback string
}

// Path records which strategy served a query.
type Path int

const (
	PathGrounded Path = iota
	PathDirect
	PathGroundedThenDirect
)

func (p Path) String() string {
	switch p {
	case PathGrounded:
		return "grounded"
	case PathDirect:
		return "direct"
	case PathGroundedThenDirect:
		return "grounded_then_direct"
	}
	return "unknown"
}

// Answer is a served response. Object is set only for structured queries.
type Answer struct {
	Content string
	Object  map[string]any
	Path    Path
}

// ErrorKind classifies a terminal generation failure.
type ErrorKind int

const (
	KindRateLimited ErrorKind = iota
	KindProviderError
	KindClientError
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindProviderError:
		return "provider_error"
	case KindClientError:
		return "client_error"
	}
	return "unknown"
}

// Error is returned by Route when generation fails for good.
type Error struct {
	Kind   ErrorKind
	Path   Path
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s on %s path: %s", e.Kind, e.Path, e.Detail)
}

func errorFromResult(res generation.Result, path Path) *Error {
	kind := KindProviderError
	switch res.Outcome {
	case generation.OutcomeRateLimited:
		kind = KindRateLimited
	case generation.OutcomeClientError:
		kind = KindClientError
	}
	return &Error{Kind: kind, Path: path, Detail: res.Detail}
}
