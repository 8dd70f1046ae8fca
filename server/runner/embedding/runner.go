// Package embedding computes content embeddings in the background.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/tastevec/plugin/ai"
	"github.com/hrygo/tastevec/plugin/ai/timeout"
	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/server/internal/observability"
	"github.com/hrygo/tastevec/store"
)

// maxTextLength bounds the text sent to the provider, in bytes.
const maxTextLength = 8000

// Store is the persistence the runner needs. *store.Store satisfies it.
type Store interface {
	FindContentsWithoutEmbedding(ctx context.Context, find *store.FindContentsWithoutEmbedding) ([]*store.Content, error)
	UpdateContentEmbedding(ctx context.Context, update *store.UpdateContentEmbedding) error
	MarkContentEmbeddingFailed(ctx context.Context, mark *store.MarkContentEmbeddingFailed) error
}

type Runner struct {
	store            Store
	embeddingService ai.EmbeddingService
	metrics          *observability.Metrics
	interval         time.Duration
	batchSize        int
}

// NewRunner creates a content embedding runner. metrics may be nil.
// Small batches keep memory peaks and provider payloads modest.
func NewRunner(s Store, embeddingService ai.EmbeddingService, metrics *observability.Metrics) *Runner {
	return &Runner{
		store:            s,
		embeddingService: embeddingService,
		metrics:          metrics,
		interval:         timeout.EmbeddingRunnerInterval,
		batchSize:        8,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.processNewContents(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processNewContents(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending content once and returns how many embeddings were stored.
func (r *Runner) RunOnce(ctx context.Context) int {
	return r.processNewContents(ctx)
}

func (r *Runner) processNewContents(ctx context.Context) int {
	contents, err := r.store.FindContentsWithoutEmbedding(ctx, &store.FindContentsWithoutEmbedding{
		Limit: r.batchSize * 20, // Fetch more data, but process in small batches
	})
	if err != nil {
		slog.Error("failed to find content without embedding", "error", err)
		return 0
	}

	if len(contents) == 0 {
		return 0
	}

	slog.Info("processing content for embedding", "count", len(contents))

	stored := 0
	for i := 0; i < len(contents); i += r.batchSize {
		if ctx.Err() != nil {
			slog.Info("embedding processing cancelled", "processed", i, "total", len(contents))
			return stored
		}

		end := min(i+r.batchSize, len(contents))
		batch := contents[i:end]

		n, err := r.processBatch(ctx, batch)
		stored += n
		if err != nil {
			if ctx.Err() != nil {
				return stored
			}
			r.metrics.RecordEmbedding("failed", len(batch))
			slog.Error("failed to process batch", "error", err)
			r.markFailed(ctx, batch...)
			continue
		}
		slog.Info("batch processed", "count", len(batch), "progress", fmt.Sprintf("%d/%d", end, len(contents)))
	}
	return stored
}

func (r *Runner) processBatch(ctx context.Context, contents []*store.Content) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	texts := make([]string, len(contents))
	for i, content := range contents {
		texts[i] = buildContentText(content)
	}

	embedCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	defer cancel()
	vectors, err := r.embeddingService.EmbedBatch(embedCtx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(contents) {
		return 0, fmt.Errorf("embedding service returned %d vectors for %d texts", len(vectors), len(contents))
	}

	stored := 0
	for i, content := range contents {
		if len(vectors[i]) == 0 {
			slog.Warn("skipping empty embedding", "contentID", content.ID)
			r.metrics.RecordEmbedding("failed", 1)
			r.markFailed(ctx, content)
			continue
		}
		err := r.store.UpdateContentEmbedding(ctx, &store.UpdateContentEmbedding{
			ID:        content.ID,
			Embedding: vector.Normalize(vectors[i]),
			Model:     r.embeddingService.Model(),
		})
		if err != nil {
			slog.Error("failed to store embedding", "contentID", content.ID, "error", err)
			r.metrics.RecordEmbedding("failed", 1)
			continue
		}
		stored++
	}
	r.metrics.RecordEmbedding("stored", stored)
	return stored, nil
}

// markFailed moves contents behind never-tried content so a text the
// provider keeps rejecting cannot starve newer content.
func (r *Runner) markFailed(ctx context.Context, contents ...*store.Content) {
	ids := make([]int32, len(contents))
	for i, content := range contents {
		ids[i] = content.ID
	}
	if err := r.store.MarkContentEmbeddingFailed(ctx, &store.MarkContentEmbeddingFailed{IDList: ids}); err != nil {
		slog.Error("failed to record embedding failure", "count", len(ids), "error", err)
	}
}

// buildContentText builds the text embedded for a content item.
func buildContentText(content *store.Content) string {
	text := strings.TrimSpace(content.Title)
	if description := strings.TrimSpace(content.Description); description != "" {
		text += "\n" + description
	}
	if len(text) <= maxTextLength {
		return text
	}
	// Cut on a rune boundary.
	cut := maxTextLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
