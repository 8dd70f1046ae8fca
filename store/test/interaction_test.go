package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/tastevec/store"
)

func TestInteractionStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	contents := createTestingContents(ctx, t, ts)
	user, err := ts.CreateUser(ctx, &store.User{Username: "viewer"})
	require.NoError(t, err)

	for _, interaction := range []*store.Interaction{
		{UserID: user.ID, ContentID: contents[0].ID, Kind: store.InteractionLike},
		{UserID: user.ID, ContentID: contents[0].ID, Kind: store.InteractionLike},
		{UserID: user.ID, ContentID: contents[0].ID, Kind: store.InteractionWatchComplete},
		{UserID: user.ID, ContentID: contents[1].ID, Kind: store.InteractionWatchComplete},
	} {
		_, err := ts.UpsertInteraction(ctx, interaction)
		require.NoError(t, err)
	}

	list, err := ts.ListInteractions(ctx, &store.FindInteraction{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, list, 3)

	list, err = ts.ListInteractions(ctx, &store.FindInteraction{
		UserID:   &user.ID,
		KindList: []store.InteractionKind{store.InteractionLike},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, contents[0].ID, list[0].ContentID)

	list, err = ts.ListInteractions(ctx, &store.FindInteraction{ContentID: &contents[1].ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, store.InteractionWatchComplete, list[0].Kind)

	// Deleting the user removes their interactions.
	require.NoError(t, ts.DeleteUser(ctx, &store.DeleteUser{ID: user.ID}))
	list, err = ts.ListInteractions(ctx, &store.FindInteraction{UserID: &user.ID})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestUpsertInteractionUnknownUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	contents := createTestingContents(ctx, t, ts)

	_, err := ts.UpsertInteraction(ctx, &store.Interaction{UserID: 4242, ContentID: contents[0].ID, Kind: store.InteractionLike})
	require.Error(t, err)
}
