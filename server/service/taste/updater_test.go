package taste

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tastevec/plugin/ai/vector"
)

func noBackoff(int) {}

func newTestUpdater(s Store) *Updater {
	return NewUpdater(s, Config{MaxAttempts: 3, Backoff: noBackoff}, nil)
}

func TestUpdate_ColdStartCopiesEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
	}{
		{name: "normalized embedding", embedding: []float32{0.6, 0.8, 0}},
		{name: "unnormalized embedding", embedding: []float32{3, 4, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			fs.putUser(1, nil, 0)
			fs.putContent(10, tt.embedding)

			result, err := newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, result.Outcome)
			assert.Equal(t, 1, result.Attempts)
			assert.Equal(t, int64(1), result.Version)

			// The first vector is adopted verbatim, with no normalization.
			user := fs.user(1)
			assert.Equal(t, tt.embedding, user.TasteVector)
		})
	}
}

func TestUpdate_WarmBlendIsNormalized(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0}, 4)
	fs.putContent(10, []float32{0, 1})

	result, err := newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: 0.5})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, int64(5), result.Version)

	user := fs.user(1)
	assert.InDeltaSlice(t, []float32{0.70710677, 0.70710677}, user.TasteVector, 1e-6)
	assert.InDelta(t, 1.0, vector.Norm(user.TasteVector), 1e-6)
}

func TestUpdate_ZeroWeightKeepsDirection(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{3, 4}, 1)
	fs.putContent(10, []float32{0, 1})

	_, err := newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, fs.user(1).TasteVector, 1e-6)
}

func TestUpdate_NotFound(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, nil, 0)
	fs.putContent(10, []float32{1, 0})
	updater := newTestUpdater(fs)

	result, err := updater.Update(context.Background(), FeedbackEvent{UserID: 2, ContentID: 10, Weight: WeightLike})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)

	result, err = updater.Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 11, Weight: WeightLike})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
	assert.Zero(t, fs.writes.Load())
}

func TestUpdate_MissingEmbedding(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0}, 1)
	fs.putContent(10, nil)

	result, err := newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
	require.ErrorIs(t, err, ErrMissingEmbedding)
	assert.Equal(t, OutcomeMissingEmbedding, result.Outcome)
	assert.Equal(t, 1, result.Attempts)
	assert.Zero(t, fs.writes.Load())
}

func TestUpdate_DimensionMismatchIsNotRetried(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0}, 1)
	fs.putContent(10, []float32{0, 0, 1})

	result, err := newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
	require.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, result.Attempts)
	assert.Zero(t, fs.writes.Load())
	assert.Equal(t, []float32{1, 0}, fs.user(1).TasteVector)
}

func TestUpdate_StoreErrorsFailImmediately(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0}, 1)
	fs.putContent(10, []float32{0, 1})
	fs.writeErr = errBoom

	result, err := newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, int32(1), fs.writes.Load())

	fs.writeErr = nil
	fs.readErr = errBoom
	result, err = newTestUpdater(fs).Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, OutcomeFailed, result.Outcome)
}

func TestUpdate_ExhaustedRetries(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0}, 1)
	fs.putContent(10, []float32{0, 1})
	fs.alwaysConflict = true

	var backoffs []int
	updater := NewUpdater(fs, Config{
		MaxAttempts: 3,
		Backoff:     func(attempt int) { backoffs = append(backoffs, attempt) },
	}, nil)

	result, err := updater.Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, OutcomeMaxRetries, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), fs.writes.Load())
	assert.Equal(t, []int{1, 2}, backoffs)
	assert.Equal(t, int64(1), fs.user(1).TasteVersion)
}

func TestApplyFeedback_DropsSignalWithoutPanicking(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0}, 1)
	fs.putContent(10, []float32{0, 1})
	fs.alwaysConflict = true

	assert.NotPanics(t, func() {
		newTestUpdater(fs).ApplyFeedback(context.Background(), FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})
	})
	assert.Equal(t, int32(3), fs.writes.Load())
}

func TestApplyFeedback_IgnoresCallerCancellation(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, nil, 0)
	fs.putContent(10, []float32{0, 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newTestUpdater(fs).ApplyFeedback(ctx, FeedbackEvent{UserID: 1, ContentID: 10, Weight: WeightLike})

	assert.Equal(t, []float32{0, 1}, fs.user(1).TasteVector)
}

func TestUpdate_ConcurrentFeedbackConverges(t *testing.T) {
	fs := newFakeStore()
	fs.putUser(1, []float32{1, 0, 0}, 1)
	fs.putContent(10, []float32{0, 1, 0})
	fs.putContent(11, []float32{0, 0, 1})

	// Both updates read version 1 before either writes.
	fs.readBarrier = &sync.WaitGroup{}
	fs.readBarrier.Add(2)
	fs.barrierReads = 2

	updater := newTestUpdater(fs)
	results := make([]*Result, 2)
	var wg sync.WaitGroup
	for i, contentID := range []int32{10, 11} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := updater.Update(context.Background(), FeedbackEvent{UserID: 1, ContentID: contentID, Weight: 0.5})
			assert.NoError(t, err)
			results[i] = result
		}()
	}
	wg.Wait()

	attempts := []int{results[0].Attempts, results[1].Attempts}
	sort.Ints(attempts)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
	assert.Equal(t, OutcomeApplied, results[1].Outcome)

	user := fs.user(1)
	assert.Equal(t, int64(3), user.TasteVersion)
	assert.InDelta(t, 1.0, vector.Norm(user.TasteVector), 1e-6)

	// Neither single blend survives on its own: both signals are present.
	onlyFirst, err := NextTasteVector([]float32{1, 0, 0}, []float32{0, 1, 0}, 0.5)
	require.NoError(t, err)
	onlySecond, err := NextTasteVector([]float32{1, 0, 0}, []float32{0, 0, 1}, 0.5)
	require.NoError(t, err)
	assert.NotEqual(t, onlyFirst, user.TasteVector)
	assert.NotEqual(t, onlySecond, user.TasteVector)
	for _, component := range user.TasteVector {
		assert.Greater(t, component, float32(0))
	}
}

func TestNextTasteVector(t *testing.T) {
	cold, err := NextTasteVector(nil, []float32{3, 4}, WeightLike)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, cold)

	content := []float32{3, 4}
	cold[0] = 9
	assert.Equal(t, float32(3), content[0])

	warm, err := NextTasteVector([]float32{0, 0}, []float32{0, 0}, WeightLike)
	require.NoError(t, err)
	for _, component := range warm {
		assert.False(t, math.IsNaN(float64(component)))
	}
}
