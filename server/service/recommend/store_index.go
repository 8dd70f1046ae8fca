package recommend

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/store"
)

// ContentSearcher runs vector search over stored content embeddings.
// *store.Store satisfies it.
type ContentSearcher interface {
	SearchContentsByVector(ctx context.Context, opts *store.ContentSearchOptions) ([]*store.ContentWithScore, error)
}

// BreakerConfig configures the circuit breaker in front of the store index.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout     time.Duration
	MaxRequests uint32
}

// DefaultBreakerConfig opens after five consecutive failures for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "content-index",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}

// StoreIndex is the ContentIndex backed by the database: pgvector HNSW on
// postgres, an exact scan on sqlite.
type StoreIndex struct {
	searcher ContentSearcher
	breaker  *gobreaker.CircuitBreaker[[]vector.Hit]
}

// NewStoreIndex wraps searcher in a circuit breaker.
func NewStoreIndex(searcher ContentSearcher, cfg BreakerConfig) *StoreIndex {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Callers giving up must not count against the index.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("content index circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &StoreIndex{
		searcher: searcher,
		breaker:  gobreaker.NewCircuitBreaker[[]vector.Hit](settings),
	}
}

func (i *StoreIndex) SupportsExclusion() bool {
	return true
}

func (i *StoreIndex) Query(ctx context.Context, q *vector.Query) ([]vector.Hit, error) {
	hits, err := i.breaker.Execute(func() ([]vector.Hit, error) {
		results, err := i.searcher.SearchContentsByVector(ctx, &store.ContentSearchOptions{
			Vector:        q.Vector,
			CandidatePool: q.CandidatePool,
			Limit:         q.TopK,
			ExcludeIDs:    q.ExcludeIDs,
		})
		if err != nil {
			return nil, err
		}
		hits := make([]vector.Hit, 0, len(results))
		for _, result := range results {
			hits = append(hits, vector.Hit{ContentID: result.Content.ID, Score: result.Score})
		}
		return hits, nil
	})
	if err == nil {
		return hits, nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	case errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	default:
		return nil, &IndexError{Err: err}
	}
}

// State reports the breaker state, for health checks.
func (i *StoreIndex) State() string {
	return i.breaker.State().String()
}
