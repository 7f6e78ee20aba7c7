// Package test opens migrated stores for tests.
package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/store"
	"github.com/hrygo/strawbean/store/db"
)

// NewTestingStore opens a migrated SQLite store in a temporary directory.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	return NewTestingStoreWithProfile(ctx, t, &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   dir,
		DSN:    filepath.Join(dir, "strawbean_test.db"),
	})
}

// NewTestingStoreWithProfile opens and migrates a store for the given profile.
func NewTestingStoreWithProfile(ctx context.Context, t *testing.T, p *profile.Profile) *store.Store {
	t.Helper()
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// GetPostgresDSN returns POSTGRES_TEST_DSN, skipping the test when unset.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	return dsn
}

// Drivers lists the driver names exercised by store tests.
var Drivers = []string{"memory", "sqlite", "postgres"}

// NewStoreForDriver opens a fresh store for one of Drivers.
func NewStoreForDriver(ctx context.Context, t *testing.T, driver string) *store.Store {
	t.Helper()
	switch driver {
	case "memory":
		return NewTestingStoreWithProfile(ctx, t, &profile.Profile{Mode: "dev", Driver: "memory"})
	case "postgres":
		s := NewTestingStoreWithProfile(ctx, t, &profile.Profile{Mode: "dev", Driver: "postgres", DSN: GetPostgresDSN(t)})
		if _, err := s.DeleteReminders(ctx, &store.DeleteReminder{}); err != nil {
			t.Fatalf("failed to reset reminders: %v", err)
		}
		if _, err := s.GetDriver().GetDB().ExecContext(ctx, "DELETE FROM reminder_counter"); err != nil {
			t.Fatalf("failed to reset reminder counters: %v", err)
		}
		return s
	default:
		return NewTestingStore(ctx, t)
	}
}
