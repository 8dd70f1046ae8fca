package store

import (
	"context"

	"github.com/lithammer/shortuuid/v4"
)

// ContentOrderBy selects the ordering of ListContents.
type ContentOrderBy int

const (
	// OrderByCreated orders by creation time, newest first.
	OrderByCreated ContentOrderBy = iota
	// OrderByPopularity orders by view count, then rating, both descending.
	OrderByPopularity
)

// Content is a watchable item in the catalog.
type Content struct {
	ID           int32
	UID          string
	Title        string
	Description  string
	ThumbnailURL string
	ViewCount    int64
	Rating       float32

	// Embedding is nil until the embedding runner has processed the content.
	Embedding      []float32
	EmbeddingModel string

	CreatedTs int64
	UpdatedTs int64
}

// FindContent is the find condition for content.
type FindContent struct {
	ID      *int32
	UID     *string
	IDList  []int32
	OrderBy ContentOrderBy
	Limit   *int
}

// UpdateContent updates mutable catalog fields. Nil fields are left untouched.
type UpdateContent struct {
	ID           int32
	Title        *string
	Description  *string
	ThumbnailURL *string
	ViewCount    *int64
	Rating       *float32
}

// UpdateContentEmbedding sets the embedding of a content item.
type UpdateContentEmbedding struct {
	ID        int32
	Embedding []float32
	Model     string
}

// DeleteContent is the delete condition for content.
type DeleteContent struct {
	ID int32
}

// FindContentsWithoutEmbedding finds content that still needs an embedding.
type FindContentsWithoutEmbedding struct {
	Limit int
}

// MarkContentEmbeddingFailed records a failed embedding attempt so the
// content moves behind never-tried content in the pending queue.
type MarkContentEmbeddingFailed struct {
	IDList []int32
}

// MarkContentEmbeddingFailed records a failed embedding attempt so the
// content moves behind never-tried content in the pending queue.
type MarkContentEmbeddingFailed struct {
	IDList []int32
}

// ContentWithScore is a vector search result.
type ContentWithScore struct {
	Content *Content
	Score   float32 // cosine similarity, higher is more similar
}

// ContentSearchOptions are the options for SearchContentsByVector.
type ContentSearchOptions struct {
	Vector []float32
	// CandidatePool bounds how many candidates an approximate index examines.
	CandidatePool int
	Limit         int
	ExcludeIDs    []int32
}

// CreateContent stores a new content item. An empty UID is generated.
func (s *Store) CreateContent(ctx context.Context, create *Content) (*Content, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	return s.driver.CreateContent(ctx, create)
}

func (s *Store) ListContents(ctx context.Context, find *FindContent) ([]*Content, error) {
	return s.driver.ListContents(ctx, find)
}

// GetContent returns the content matching find, or nil if none exists.
func (s *Store) GetContent(ctx context.Context, find *FindContent) (*Content, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListContents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateContent(ctx context.Context, update *UpdateContent) (*Content, error) {
	return s.driver.UpdateContent(ctx, update)
}

func (s *Store) UpdateContentEmbedding(ctx context.Context, update *UpdateContentEmbedding) error {
	return s.driver.UpdateContentEmbedding(ctx, update)
}

func (s *Store) DeleteContent(ctx context.Context, delete *DeleteContent) error {
	return s.driver.DeleteContent(ctx, delete)
}

// FindContentsWithoutEmbedding lists content waiting for an embedding.
// Never-failed content comes first, then the least recently failed.
// FindContentsWithoutEmbedding lists content waiting for an embedding.
// Never-failed content comes first, then the least recently failed.
func (s *Store) FindContentsWithoutEmbedding(ctx context.Context, find *FindContentsWithoutEmbedding) ([]*Content, error) {
	return s.driver.FindContentsWithoutEmbedding(ctx, find)
}

func (s *Store) MarkContentEmbeddingFailed(ctx context.Context, mark *MarkContentEmbeddingFailed) error {
	if len(mark.IDList) == 0 {
		return nil
	}
	return s.driver.MarkContentEmbeddingFailed(ctx, mark)
}

func (s *Store) MarkContentEmbeddingFailed(ctx context.Context, mark *MarkContentEmbeddingFailed) error {
	if len(mark.IDList) == 0 {
		return nil
	}
	return s.driver.MarkContentEmbeddingFailed(ctx, mark)
}

// SearchContentsByVector performs vector similarity search over content embeddings.
func (s *Store) SearchContentsByVector(ctx context.Context, opts *ContentSearchOptions) ([]*ContentWithScore, error) {
	return s.driver.SearchContentsByVector(ctx, opts)
}
