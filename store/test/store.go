package test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/hrygo/tastevec/internal/profile"
	"github.com/hrygo/tastevec/store"
	"github.com/hrygo/tastevec/store/db"
)

// testDimensions keeps fixture vectors short; the postgres schema is created
// with vector(testDimensions) columns.
const testDimensions = 3

// NewTestingStore returns a migrated store backed by the driver named in the
// DRIVER environment variable (sqlite by default).
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	return newTestingStoreWithMode(ctx, t, "dev")
}

func newTestingStoreWithMode(ctx context.Context, t *testing.T, mode string) *store.Store {
	t.Helper()
	profile := getTestingProfile(t, mode)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(dbDriver, profile)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T, mode string) *profile.Profile {
	driver := getDriverFromEnv()
	dir := t.TempDir()

	p := &profile.Profile{
		Mode:                  mode,
		Data:                  dir,
		Driver:                driver,
		Version:               "test",
		AIEmbeddingDimensions: testDimensions,
		FeedbackMaxAttempts:   3,
	}
	switch driver {
	case "sqlite":
		p.DSN = fmt.Sprintf("%s/tastevec_%s.db", dir, mode)
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
