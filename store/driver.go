package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
	DeleteUser(ctx context.Context, delete *DeleteUser) error

	// CompareAndSwapTasteVector writes the taste vector only if the stored
	// version equals update.ExpectedVersion. It returns the new version, or
	// ErrVersionConflict when no row matched.
	CompareAndSwapTasteVector(ctx context.Context, update *UpdateTasteVector) (int64, error)

	// Content model related methods.
	CreateContent(ctx context.Context, create *Content) (*Content, error)
	ListContents(ctx context.Context, find *FindContent) ([]*Content, error)
	UpdateContent(ctx context.Context, update *UpdateContent) (*Content, error)
	UpdateContentEmbedding(ctx context.Context, update *UpdateContentEmbedding) error
	DeleteContent(ctx context.Context, delete *DeleteContent) error
	FindContentsWithoutEmbedding(ctx context.Context, find *FindContentsWithoutEmbedding) ([]*Content, error)
	MarkContentEmbeddingFailed(ctx context.Context, mark *MarkContentEmbeddingFailed) error
	MarkContentEmbeddingFailed(ctx context.Context, mark *MarkContentEmbeddingFailed) error

	// SearchContentsByVector performs semantic search using vector similarity.
	SearchContentsByVector(ctx context.Context, opts *ContentSearchOptions) ([]*ContentWithScore, error)

	// Interaction model related methods.
	UpsertInteraction(ctx context.Context, upsert *Interaction) (*Interaction, error)
	ListInteractions(ctx context.Context, find *FindInteraction) ([]*Interaction, error)
}
