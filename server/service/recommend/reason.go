package recommend

import "encoding/json"

// Reason explains why an item was recommended.
// It is either PopularityFallback or SimilarityMatch.
type Reason interface {
	Kind() string
	isReason()
}

// PopularityFallback marks items served to users without a taste vector.
type PopularityFallback struct{}

// SimilarityMatch marks items found by taste vector similarity.
type SimilarityMatch struct {
	Score float32
}

const (
	ReasonPopularity = "popularity"
	ReasonSimilarity = "similarity"
)

func (PopularityFallback) Kind() string { return ReasonPopularity }
func (PopularityFallback) isReason()    {}

func (PopularityFallback) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
	}{Kind: ReasonPopularity})
}

func (SimilarityMatch) Kind() string { return ReasonSimilarity }
func (SimilarityMatch) isReason()    {}

func (m SimilarityMatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string  `json:"kind"`
		Score float32 `json:"score"`
	}{Kind: ReasonSimilarity, Score: m.Score})
}
