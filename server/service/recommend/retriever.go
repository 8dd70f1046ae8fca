// Package recommend serves content recommendations from a user's taste vector.
//
// Users without a taste vector get the most popular content. Everyone else
// gets the nearest neighbours of their taste vector in the ContentIndex,
// minus content they have already liked or finished.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/server/internal/observability"
	"github.com/hrygo/tastevec/store"
)

const (
	// DefaultLimit is used when the caller passes a non-positive limit.
	DefaultLimit = 10
	// MaxLimit caps the number of items per request.
	MaxLimit = 100

	minCandidatePool    = 100
	candidatePoolFactor = 10
	// maxRefillRounds bounds how often a page is re-queried to replace
	// hits whose content was deleted.
	maxRefillRounds = 3

	branchColdStart  = "cold_start"
	branchSimilarity = "similarity"
	branchError      = "error"
)

var (
	// ErrUserNotFound means the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrIndexUnavailable means the content index cannot be reached.
	ErrIndexUnavailable = errors.New("content index unavailable")
)

// IndexError is returned when a content index query fails.
type IndexError struct {
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("content index query failed: %v", e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// ContentSummary is a recommended item. It never carries the embedding.
type ContentSummary struct {
	ID           int32  `json:"id"`
	UID          string `json:"uid"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	Reason       Reason `json:"reason"`
}

// Store is the persistence the retriever needs. *store.Store satisfies it.
type Store interface {
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
	ListContents(ctx context.Context, find *store.FindContent) ([]*store.Content, error)
	ListInteractions(ctx context.Context, find *store.FindInteraction) ([]*store.Interaction, error)
}

// Retriever answers recommendation requests.
type Retriever struct {
	store   Store
	index   vector.ContentIndex
	metrics *observability.Metrics
}

// NewRetriever creates a Retriever. metrics may be nil.
func NewRetriever(s Store, index vector.ContentIndex, metrics *observability.Metrics) *Retriever {
	return &Retriever{
		store:   s,
		index:   index,
		metrics: metrics,
	}
}

// GetRecommendations returns up to limit items for the user, best first.
func (r *Retriever) GetRecommendations(ctx context.Context, userID int32, limit int) ([]*ContentSummary, error) {
	start := time.Now()
	limit = clampLimit(limit)

	user, err := r.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	branch := branchSimilarity
	var items []*ContentSummary
	if user.HasTaste() {
		items, err = r.similar(ctx, user, limit)
	} else {
		branch = branchColdStart
		items, err = r.popular(ctx, limit)
	}
	if err != nil {
		r.metrics.RecordRecommendation(branchError, time.Since(start))
		return nil, err
	}
	r.metrics.RecordRecommendation(branch, time.Since(start))
	return items, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// CandidatePool is how many candidates the index examines for a page of limit items.
func CandidatePool(limit int) int {
	return max(candidatePoolFactor*limit, minCandidatePool)
}

func (r *Retriever) popular(ctx context.Context, limit int) ([]*ContentSummary, error) {
	contents, err := r.store.ListContents(ctx, &store.FindContent{
		OrderBy: store.OrderByPopularity,
		Limit:   &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list popular content: %w", err)
	}

	items := make([]*ContentSummary, 0, len(contents))
	for _, content := range contents {
		items = append(items, summarize(content, PopularityFallback{}))
	}
	return items, nil
}

func (r *Retriever) similar(ctx context.Context, user *store.User, limit int) ([]*ContentSummary, error) {
	excluded, err := r.excludedContentIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	pool := CandidatePool(limit)
	// Content deleted after it was indexed is excluded and the page refilled.
	for round := 1; ; round++ {
		hits, err := r.search(ctx, user.TasteVector, pool, limit, excluded)
		if err != nil {
			return nil, err
		}
		items, vanished, err := r.hydrate(ctx, hits)
		if err != nil {
			return nil, err
		}
		if len(vanished) == 0 || len(hits) < limit || round == maxRefillRounds {
			return items, nil
		}
		excluded = append(excluded, vanished...)
	}
}

func (r *Retriever) search(ctx context.Context, taste []float32, pool, limit int, excluded []int32) ([]vector.Hit, error) {
	if r.index.SupportsExclusion() {
		return r.query(ctx, &vector.Query{
			Vector:        taste,
			CandidatePool: pool,
			TopK:          limit,
			ExcludeIDs:    excluded,
		})
	}
	return r.queryAndFilter(ctx, taste, pool, limit, excluded)
}

// queryAndFilter drops excluded ids client side for indexes that cannot.
// While filtering leaves the page short and the index returned a full page,
// it doubles topK, up to the candidate pool, and queries again.
func (r *Retriever) queryAndFilter(ctx context.Context, taste []float32, pool, limit int, excluded []int32) ([]vector.Hit, error) {
	skip := make(map[int32]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	topK := min(limit, pool)
	for {
		hits, err := r.query(ctx, &vector.Query{
			Vector:        taste,
			CandidatePool: pool,
			TopK:          topK,
		})
		if err != nil {
			return nil, err
		}

		filtered := make([]vector.Hit, 0, len(hits))
		for _, hit := range hits {
			if _, ok := skip[hit.ContentID]; !ok {
				filtered = append(filtered, hit)
			}
		}
		if len(filtered) >= limit || len(hits) < topK || topK >= pool {
			return filtered[:min(limit, len(filtered))], nil
		}
		topK = min(topK*2, pool)
	}
}

func (r *Retriever) query(ctx context.Context, q *vector.Query) ([]vector.Hit, error) {
	hits, err := r.index.Query(ctx, q)
	if err == nil {
		return hits, nil
	}

	var indexErr *IndexError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, ErrIndexUnavailable):
		r.metrics.RecordIndexError("unavailable")
		return nil, err
	case errors.As(err, &indexErr):
		r.metrics.RecordIndexError("query")
		return nil, err
	default:
		r.metrics.RecordIndexError("query")
		return nil, &IndexError{Err: err}
	}
}

func (r *Retriever) excludedContentIDs(ctx context.Context, userID int32) ([]int32, error) {
	interactions, err := r.store.ListInteractions(ctx, &store.FindInteraction{
		UserID:   &userID,
		KindList: []store.InteractionKind{store.InteractionLike, store.InteractionWatchComplete},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	ids := make([]int32, 0, len(interactions))
	for _, interaction := range interactions {
		ids = append(ids, interaction.ContentID)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// hydrate loads content for hits, keeping index order. Hits whose content
// has since been deleted are skipped and returned as vanished.
func (r *Retriever) hydrate(ctx context.Context, hits []vector.Hit) ([]*ContentSummary, []int32, error) {
	if len(hits) == 0 {
		return []*ContentSummary{}, nil, nil
	}

	ids := make([]int32, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ContentID)
	}
	contents, err := r.store.ListContents(ctx, &store.FindContent{IDList: ids})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load recommended content: %w", err)
	}
	byID := make(map[int32]*store.Content, len(contents))
	for _, content := range contents {
		byID[content.ID] = content
	}

	items := make([]*ContentSummary, 0, len(hits))
	var vanished []int32
	for _, hit := range hits {
		content, ok := byID[hit.ContentID]
		if !ok {
			vanished = append(vanished, hit.ContentID)
			continue
		}
		items = append(items, summarize(content, SimilarityMatch{Score: hit.Score}))
	}
	return items, vanished, nil
}

func summarize(content *store.Content, reason Reason) *ContentSummary {
	return &ContentSummary{
		ID:           content.ID,
		UID:          content.UID,
		Title:        content.Title,
		ThumbnailURL: content.ThumbnailURL,
		Reason:       reason,
	}
}
