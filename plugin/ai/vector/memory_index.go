package vector

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine ContentIndex held in memory.
type MemoryIndex struct {
	mu         sync.RWMutex
	embeddings map[int32][]float32
	exclusion  bool

	queries int
}

// NewMemoryIndex creates an empty MemoryIndex.
// When exclusion is false, Query ignores ExcludeIDs.
func NewMemoryIndex(exclusion bool) *MemoryIndex {
	return &MemoryIndex{
		embeddings: make(map[int32][]float32),
		exclusion:  exclusion,
	}
}

// Put stores or replaces the embedding of a content item.
func (m *MemoryIndex) Put(contentID int32, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[contentID] = embedding
}

// Queries returns how many times Query has been called.
func (m *MemoryIndex) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

func (m *MemoryIndex) SupportsExclusion() bool {
	return m.exclusion
}

func (m *MemoryIndex) Query(ctx context.Context, q *Query) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	excluded := map[int32]bool{}
	if m.exclusion {
		for _, id := range q.ExcludeIDs {
			excluded[id] = true
		}
	}

	hits := make([]Hit, 0, len(m.embeddings))
	for id, embedding := range m.embeddings {
		if excluded[id] || len(embedding) != len(q.Vector) {
			continue
		}
		hits = append(hits, Hit{
			ContentID: id,
			Score:     float32(CosineSimilarity(q.Vector, embedding)),
		})
	}

	// Sort by score descending, id ascending for stable output.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ContentID < hits[j].ContentID
	})

	if q.TopK > 0 && q.TopK < len(hits) {
		hits = hits[:q.TopK]
	}
	return hits, nil
}
