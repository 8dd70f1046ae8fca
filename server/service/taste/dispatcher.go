package taste

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("feedback dispatcher is closed")

// Dispatcher runs feedback events in the background with bounded concurrency.
type Dispatcher struct {
	updater *Updater
	sem     *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher running at most concurrency updates at once.
func NewDispatcher(updater *Updater, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Dispatcher{
		updater: updater,
		sem:     semaphore.NewWeighted(int64(concurrency)),
	}
}

// Submit schedules event and returns immediately.
func (d *Dispatcher) Submit(ctx context.Context, event FeedbackEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Acquire cannot fail with a background context.
		_ = d.sem.Acquire(context.Background(), 1)
		defer d.sem.Release(1)
		d.updater.ApplyFeedback(ctx, event)
	}()
	return nil
}

// Close stops accepting events and waits for in-flight ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
