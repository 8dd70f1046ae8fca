package taste

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hrygo/tastevec/store"
)

// fakeStore is an in-memory Store with a real version compare-and-swap.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int32]*store.User
	contents map[int32]*store.Content

	// alwaysConflict makes every compare-and-swap fail.
	alwaysConflict bool
	// writeErr is returned by every compare-and-swap when set.
	writeErr error
	// readErr is returned by GetUser when set.
	readErr error

	// readBarrier, when set, holds the first barrierReads GetUser calls until
	// all of them have read.
	readBarrier  *sync.WaitGroup
	barrierReads int32
	reads        atomic.Int32
	writes       atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[int32]*store.User{},
		contents: map[int32]*store.Content{},
	}
}

func (f *fakeStore) putUser(id int32, taste []float32, version int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &store.User{ID: id, Username: "user", TasteVector: taste, TasteVersion: version}
}

func (f *fakeStore) putContent(id int32, embedding []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[id] = &store.Content{ID: id, UID: "c", Title: "content", Embedding: embedding}
}

func (f *fakeStore) user(id int32) *store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *f.users[id]
	return &u
}

func (f *fakeStore) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.readErr != nil {
		return nil, f.readErr
	}
	n := f.reads.Add(1)

	f.mu.Lock()
	var found *store.User
	if u, ok := f.users[*find.ID]; ok {
		copied := *u
		copied.TasteVector = slices.Clone(u.TasteVector)
		found = &copied
	}
	f.mu.Unlock()

	if f.readBarrier != nil && n <= f.barrierReads {
		f.readBarrier.Done()
		f.readBarrier.Wait()
	}
	return found, nil
}

func (f *fakeStore) GetContent(ctx context.Context, find *store.FindContent) (*store.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contents[*find.ID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) CompareAndSwapTasteVector(ctx context.Context, update *store.UpdateTasteVector) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.writes.Add(1)
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if f.alwaysConflict {
		return 0, store.ErrVersionConflict
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[update.UserID]
	if !ok || u.TasteVersion != update.ExpectedVersion {
		return 0, store.ErrVersionConflict
	}
	u.TasteVector = slices.Clone(update.Vector)
	u.TasteVersion++
	return u.TasteVersion, nil
}

var errBoom = errors.New("boom")
