package store

import "context"

// InteractionKind is the kind of a recorded user interaction.
type InteractionKind string

const (
	InteractionLike          InteractionKind = "LIKE"
	InteractionWatchComplete InteractionKind = "WATCH_COMPLETE"
)

func (k InteractionKind) String() string {
	return string(k)
}

// Interaction records that a user liked or finished a content item.
type Interaction struct {
	UserID    int32
	ContentID int32
	Kind      InteractionKind
	CreatedTs int64
}

// FindInteraction is the find condition for interactions.
type FindInteraction struct {
	UserID    *int32
	ContentID *int32
	KindList  []InteractionKind
}

// UpsertInteraction records an interaction. Repeated calls for the same
// (user, content, kind) keep the original record.
func (s *Store) UpsertInteraction(ctx context.Context, upsert *Interaction) (*Interaction, error) {
	return s.driver.UpsertInteraction(ctx, upsert)
}

func (s *Store) ListInteractions(ctx context.Context, find *FindInteraction) ([]*Interaction, error) {
	return s.driver.ListInteractions(ctx, find)
}
