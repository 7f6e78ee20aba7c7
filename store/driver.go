package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	// GetDB returns the underlying database, nil for drivers without one.
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Reminder model related methods.
	CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error)
	ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error)
	UpdateReminder(ctx context.Context, update *UpdateReminder) (bool, error)
	DeleteReminders(ctx context.Context, delete *DeleteReminder) (int64, error)

	// NextRemoveID atomically allocates the owner's next remove_id. Allocated
	// numbers are never handed out again, even after their reminders are
	// deleted.
	NextRemoveID(ctx context.Context, ownerID string) (int32, error)
}
