package recommend

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/store"
)

type fakeSearcher struct {
	results []*store.ContentWithScore
	err     error
	calls   int
	last    *store.ContentSearchOptions
}

func (f *fakeSearcher) SearchContentsByVector(_ context.Context, opts *store.ContentSearchOptions) ([]*store.ContentWithScore, error) {
	f.calls++
	f.last = opts
	return f.results, f.err
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{Name: "test", FailureThreshold: 2, Timeout: time.Minute, MaxRequests: 1}
}

func TestStoreIndex_Query(t *testing.T) {
	searcher := &fakeSearcher{results: []*store.ContentWithScore{
		{Content: &store.Content{ID: 4}, Score: 0.9},
		{Content: &store.Content{ID: 2}, Score: 0.5},
	}}
	index := NewStoreIndex(searcher, testBreakerConfig())
	assert.True(t, index.SupportsExclusion())

	hits, err := index.Query(context.Background(), &vector.Query{
		Vector:        []float32{1, 0},
		CandidatePool: 100,
		TopK:          2,
		ExcludeIDs:    []int32{7},
	})
	require.NoError(t, err)
	assert.Equal(t, []vector.Hit{{ContentID: 4, Score: 0.9}, {ContentID: 2, Score: 0.5}}, hits)
	assert.Equal(t, &store.ContentSearchOptions{
		Vector:        []float32{1, 0},
		CandidatePool: 100,
		Limit:         2,
		ExcludeIDs:    []int32{7},
	}, searcher.last)
}

func TestStoreIndex_QueryErrorsOpenBreaker(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("relation does not exist")}
	index := NewStoreIndex(searcher, testBreakerConfig())
	q := &vector.Query{Vector: []float32{1, 0}, CandidatePool: 100, TopK: 1}

	for i := 0; i < 2; i++ {
		_, err := index.Query(context.Background(), q)
		var indexErr *IndexError
		require.ErrorAs(t, err, &indexErr)
	}

	_, err := index.Query(context.Background(), q)
	require.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Equal(t, 2, searcher.calls)
	assert.Equal(t, "open", index.State())
}

func TestStoreIndex_ConnectionFailureIsUnavailable(t *testing.T) {
	index := NewStoreIndex(&fakeSearcher{err: driver.ErrBadConn}, testBreakerConfig())
	_, err := index.Query(context.Background(), &vector.Query{Vector: []float32{1}, TopK: 1})
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestStoreIndex_CancellationDoesNotTrip(t *testing.T) {
	searcher := &fakeSearcher{err: context.DeadlineExceeded}
	index := NewStoreIndex(searcher, testBreakerConfig())
	q := &vector.Query{Vector: []float32{1, 0}, TopK: 1}

	for i := 0; i < 5; i++ {
		_, err := index.Query(context.Background(), q)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, 5, searcher.calls)
	assert.Equal(t, "closed", index.State())
}
