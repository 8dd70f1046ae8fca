package embedding

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/store"
	storetest "github.com/hrygo/tastevec/store/test"
)

// mockEmbeddingService is a mock implementation of ai.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	dimensions     int
	batchCallCount atomic.Int32
	texts          []string
	shouldFail     bool
}

func newMockEmbeddingService(dimensions int) *mockEmbeddingService {
	return &mockEmbeddingService{dimensions: dimensions}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCallCount.Add(1)
	m.texts = append(m.texts, texts...)
	if m.shouldFail {
		return nil, errors.New("batch embedding error")
	}
	if m.embedBatchFunc != nil {
		return m.embedBatchFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, m.dimensions)
		for j := range v {
			v[j] = 2
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *mockEmbeddingService) Model() string {
	return "mock-model"
}

func createContents(ctx context.Context, t *testing.T, ts *store.Store, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := ts.CreateContent(ctx, &store.Content{
			UID:         strings.Repeat("x", i+1),
			Title:       "Title",
			Description: "Description",
		})
		require.NoError(t, err)
	}
}

func TestRunnerRunOnce(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	createContents(ctx, t, ts, 19)

	service := newMockEmbeddingService(3)
	runner := NewRunner(ts, service, nil)

	assert.Equal(t, 19, runner.RunOnce(ctx))
	// 19 items in batches of 8.
	assert.Equal(t, int32(3), service.batchCallCount.Load())
	assert.Equal(t, "Title\nDescription", service.texts[0])

	contents, err := ts.ListContents(ctx, &store.FindContent{})
	require.NoError(t, err)
	for _, content := range contents {
		assert.Equal(t, "mock-model", content.EmbeddingModel)
		assert.InDelta(t, 1.0, vector.Norm(content.Embedding), 1e-6)
	}

	// Nothing left to do.
	assert.Equal(t, 0, runner.RunOnce(ctx))
	assert.Equal(t, int32(3), service.batchCallCount.Load())
}

func TestRunnerEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	createContents(ctx, t, ts, 3)

	service := newMockEmbeddingService(3)
	service.shouldFail = true
	runner := NewRunner(ts, service, nil)

	assert.Equal(t, 0, runner.RunOnce(ctx))
	pending, err := ts.FindContentsWithoutEmbedding(ctx, &store.FindContentsWithoutEmbedding{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestRunnerFailedContentDoesNotBlockNewContent(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	rejected, err := ts.CreateContent(ctx, &store.Content{Title: "rejected by provider"})
	require.NoError(t, err)

	service := newMockEmbeddingService(3)
	service.embedBatchFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			if strings.Contains(text, "rejected") {
				return nil, errors.New("input rejected")
			}
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}
	runner := NewRunner(ts, service, nil)
	runner.batchSize = 1

	assert.Equal(t, 0, runner.RunOnce(ctx))

	fresh, err := ts.CreateContent(ctx, &store.Content{Title: "fresh upload"})
	require.NoError(t, err)

	// The failed item moved behind content that was never tried.
	pending, err := ts.FindContentsWithoutEmbedding(ctx, &store.FindContentsWithoutEmbedding{Limit: 1})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)

	assert.Equal(t, 1, runner.RunOnce(ctx))
	pending, err = ts.FindContentsWithoutEmbedding(ctx, &store.FindContentsWithoutEmbedding{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rejected.ID, pending[0].ID)
}

func TestRunnerSkipsEmptyVectors(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	createContents(ctx, t, ts, 2)

	service := newMockEmbeddingService(3)
	service.embedBatchFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0}, {}}, nil
	}
	runner := NewRunner(ts, service, nil)

	assert.Equal(t, 1, runner.RunOnce(ctx))
	pending, err := ts.FindContentsWithoutEmbedding(ctx, &store.FindContentsWithoutEmbedding{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRunnerWithContextCancellation(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	createContents(ctx, t, ts, 4)

	service := newMockEmbeddingService(3)
	runner := NewRunner(ts, service, nil)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	runner.Run(cancelled)
	assert.Zero(t, service.batchCallCount.Load())
}

func TestBuildContentText(t *testing.T) {
	assert.Equal(t, "Title", buildContentText(&store.Content{Title: " Title "}))
	assert.Equal(t, "Title\nAbout", buildContentText(&store.Content{Title: "Title", Description: "About"}))

	long := buildContentText(&store.Content{Title: strings.Repeat("é", maxTextLength)})
	assert.LessOrEqual(t, len(long), maxTextLength)
	assert.True(t, utf8.ValidString(long))
}
