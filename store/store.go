package store

import (
	"github.com/hrygo/tastevec/internal/profile"
)

// Store provides database access to all raw objects.
//
// Users and content are always read through to the driver: the taste vector
// compare-and-swap relies on every attempt seeing the current row.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}
