package structured

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// PrefixLength bounds the raw and candidate text kept in a MalformedOutputError.
const PrefixLength = 100

// MalformedOutputError reports model output that does not hold a JSON object.
type MalformedOutputError struct {
	Reason          string
	RawPrefix       string
	CandidatePrefix string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed structured output: %s (output starts with %q)", e.Reason, e.RawPrefix)
}

// Extract decodes the JSON object spanning the first '{' to the last '}' of raw.
// Text around the object, such as a preamble or code fence, is ignored.
func Extract(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, malformed("no JSON object found", raw, "")
	}

	candidate := raw[start : end+1]
	if !gjson.Valid(candidate) {
		return nil, malformed("invalid JSON", raw, candidate)
	}
	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() {
		return nil, malformed("not a JSON object", raw, candidate)
	}
	obj, ok := parsed.Value().(map[string]any)
	if !ok {
		return nil, malformed("not a JSON object", raw, candidate)
	}
	return obj, nil
}

func malformed(reason, raw, candidate string) *MalformedOutputError {
	return &MalformedOutputError{
		Reason:          reason,
		RawPrefix:       prefix(strings.TrimSpace(raw)),
		CandidatePrefix: prefix(candidate),
	}
}

// prefix returns the first PrefixLength characters of s.
func prefix(s string) string {
	r := []rune(s)
	if len(r) <= PrefixLength {
		return s
	}
	return string(r[:PrefixLength])
}
