// Package taste keeps each user's taste vector in step with their feedback.
//
// A feedback event blends the content embedding into the stored taste vector.
// Concurrent events for the same user are reconciled with an optimistic
// compare-and-swap on the user's taste version: a writer that loses the race
// reloads the latest vector and blends again, up to Config.MaxAttempts times.
package taste

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hrygo/tastevec/plugin/ai/timeout"
	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/server/internal/observability"
	"github.com/hrygo/tastevec/store"
)

var (
	// ErrMissingEmbedding means the content has no embedding yet.
	ErrMissingEmbedding = errors.New("content has no embedding")
	// ErrMaxRetriesExceeded means every write attempt lost a version race.
	ErrMaxRetriesExceeded = errors.New("taste vector update exceeded max attempts")
)

// Store is the persistence the updater needs. *store.Store satisfies it.
type Store interface {
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
	GetContent(ctx context.Context, find *store.FindContent) (*store.Content, error)
	CompareAndSwapTasteVector(ctx context.Context, update *store.UpdateTasteVector) (int64, error)
}

// FeedbackEvent is a single positive signal from a user about a content item.
type FeedbackEvent struct {
	UserID    int32
	ContentID int32
	Weight    Weight
}

// Outcome is the terminal state of a feedback event.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeMissingEmbedding Outcome = "missing_embedding"
	OutcomeMaxRetries       Outcome = "max_retries"
	OutcomeFailed           Outcome = "failed"
)

// Result describes how a feedback event ended.
type Result struct {
	Outcome Outcome
	// Attempts is the number of write attempts made.
	Attempts int
	// Version is the taste version written, set when Outcome is OutcomeApplied.
	Version int64
}

// Config tunes the retry loop.
type Config struct {
	MaxAttempts int
	// Backoff is called after a version conflict, before the next attempt.
	Backoff func(attempt int)
}

// DefaultConfig returns three attempts with a fixed pause between them.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff:     FixedBackoff(timeout.FeedbackBackoff),
	}
}

// FixedBackoff sleeps d between attempts.
func FixedBackoff(d time.Duration) func(int) {
	return func(int) {
		time.Sleep(d)
	}
}

// Updater applies feedback events to taste vectors.
type Updater struct {
	store   Store
	config  Config
	metrics *observability.Metrics
}

// NewUpdater creates an Updater. metrics may be nil.
func NewUpdater(s Store, config Config, metrics *observability.Metrics) *Updater {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == nil {
		config.Backoff = FixedBackoff(timeout.FeedbackBackoff)
	}
	return &Updater{
		store:   s,
		config:  config,
		metrics: metrics,
	}
}

// ApplyFeedback applies event and logs the outcome. It never fails the caller:
// feedback is a best-effort signal. Cancelling ctx does not abort the update.
func (u *Updater) ApplyFeedback(ctx context.Context, event FeedbackEvent) {
	reqCtx := observability.FromContextOrNew(ctx, "feedback", event.UserID)
	result, err := u.Update(context.WithoutCancel(ctx), event)
	u.metrics.RecordFeedback(string(result.Outcome), result.Attempts)

	attrs := []slog.Attr{
		slog.Int("content_id", int(event.ContentID)),
		slog.String("outcome", string(result.Outcome)),
		slog.Int(observability.LogFieldAttempt, result.Attempts),
	}
	switch result.Outcome {
	case OutcomeApplied:
		reqCtx.Debug("taste vector updated", append(attrs, slog.Int64("version", result.Version))...)
	case OutcomeNotFound:
		reqCtx.Info("feedback ignored: user or content not found", attrs...)
	case OutcomeMissingEmbedding:
		reqCtx.Info("feedback ignored: content has no embedding", attrs...)
	case OutcomeMaxRetries:
		reqCtx.Warn("feedback dropped after repeated version conflicts", attrs...)
	default:
		reqCtx.Error("failed to apply feedback", err, attrs...)
	}
}

// Update applies event, retrying on version conflicts.
// A missing user or content is not an error: the event is simply dropped.
func (u *Updater) Update(ctx context.Context, event FeedbackEvent) (*Result, error) {
	result := &Result{}
	for attempt := 1; attempt <= u.config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		user, err := u.store.GetUser(ctx, &store.FindUser{ID: &event.UserID})
		if err != nil {
			result.Outcome = OutcomeFailed
			return result, fmt.Errorf("failed to load user %d: %w", event.UserID, err)
		}
		content, err := u.store.GetContent(ctx, &store.FindContent{ID: &event.ContentID})
		if err != nil {
			result.Outcome = OutcomeFailed
			return result, fmt.Errorf("failed to load content %d: %w", event.ContentID, err)
		}
		if user == nil || content == nil {
			result.Outcome = OutcomeNotFound
			return result, nil
		}
		if len(content.Embedding) == 0 {
			result.Outcome = OutcomeMissingEmbedding
			return result, ErrMissingEmbedding
		}

		next, err := NextTasteVector(user.TasteVector, content.Embedding, event.Weight)
		if err != nil {
			result.Outcome = OutcomeFailed
			return result, err
		}

		version, err := u.store.CompareAndSwapTasteVector(ctx, &store.UpdateTasteVector{
			UserID:          user.ID,
			Vector:          next,
			ExpectedVersion: user.TasteVersion,
		})
		if err == nil {
			result.Outcome = OutcomeApplied
			result.Version = version
			return result, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			result.Outcome = OutcomeFailed
			return result, fmt.Errorf("failed to write taste vector: %w", err)
		}
		if attempt < u.config.MaxAttempts {
			u.config.Backoff(attempt)
		}
	}

	result.Outcome = OutcomeMaxRetries
	return result, ErrMaxRetriesExceeded
}

// NextTasteVector computes the taste vector after one feedback event.
// The first event adopts the content embedding as is; later events blend it in
// and renormalize.
func NextTasteVector(taste, content []float32, weight Weight) ([]float32, error) {
	if len(taste) == 0 {
		return slices.Clone(content), nil
	}
	blended, err := vector.Blend(taste, content, float32(weight))
	if err != nil {
		return nil, err
	}
	return vector.Normalize(blended), nil
}
