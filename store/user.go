package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by CompareAndSwapTasteVector when the stored
// taste version no longer matches the expected one.
var ErrVersionConflict = errors.New("taste vector version conflict")

// User is a viewer together with the taste vector learned from their feedback.
type User struct {
	ID       int32
	Username string

	// TasteVector is empty until the first feedback event is applied.
	TasteVector []float32
	// TasteVersion is incremented by every accepted taste vector write.
	TasteVersion int64

	CreatedTs int64
	UpdatedTs int64
}

// FindUser is the find condition for users.
type FindUser struct {
	ID       *int32
	Username *string
	Limit    *int
}

// DeleteUser is the delete condition for users.
type DeleteUser struct {
	ID int32
}

// UpdateTasteVector is a conditional taste vector write.
// It only applies when the stored version equals ExpectedVersion.
type UpdateTasteVector struct {
	UserID          int32
	Vector          []float32
	ExpectedVersion int64
}

// HasTaste reports whether the user has received any feedback yet.
func (u *User) HasTaste() bool {
	return len(u.TasteVector) > 0
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

// GetUser returns the user matching find, or nil if none exists.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) DeleteUser(ctx context.Context, delete *DeleteUser) error {
	return s.driver.DeleteUser(ctx, delete)
}

// CompareAndSwapTasteVector writes update.Vector and increments the taste
// version, returning the new version. It returns ErrVersionConflict when the
// stored version differs from update.ExpectedVersion or the user is gone.
func (s *Store) CompareAndSwapTasteVector(ctx context.Context, update *UpdateTasteVector) (int64, error) {
	return s.driver.CompareAndSwapTasteVector(ctx, update)
}
