// Package vector provides vector arithmetic and the content similarity index contract.
package vector

import "context"

// ContentIndex is a similarity search index over content embeddings.
type ContentIndex interface {
	// Query returns the content most similar to q.Vector, ordered by score descending.
	Query(ctx context.Context, q *Query) ([]Hit, error)

	// SupportsExclusion reports whether Query honours q.ExcludeIDs.
	// Callers must post-filter when it returns false.
	SupportsExclusion() bool
}

// Query describes a nearest-neighbour lookup.
type Query struct {
	Vector []float32
	// CandidatePool is the number of candidates an approximate index may examine.
	CandidatePool int
	TopK          int
	ExcludeIDs    []int32
}

// Hit is a single search result.
type Hit struct {
	ContentID int32   `json:"content_id"`
	Score     float32 `json:"score"` // higher is more similar
}
