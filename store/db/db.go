package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/tastevec/internal/profile"
	"github.com/hrygo/tastevec/store"
	"github.com/hrygo/tastevec/store/db/postgres"
	"github.com/hrygo/tastevec/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// PostgreSQL: production. Taste and content vectors live in pgvector columns
// and similarity search uses the HNSW index.
// SQLite: development and tests. Vectors are stored as JSON and similarity
// search is a brute-force scan.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
