package retrieval

import "context"

// Document is a unit of reference text. Metadata values are scalars
// (string, number or bool).
type Document struct {
	Content  string
	Metadata map[string]any
}

// Retriever returns up to k documents relevant to query, possibly none.
// An absent index yields an empty result, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// Contents returns the text of each document in order.
func Contents(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}
