package store

import (
	"context"
	"time"
)

// Reminder is the object representing a reminder.
type Reminder struct {
	ID  int32
	UID string

	// OwnerID is the opaque identity of the requesting user.
	OwnerID string
	// RemoveID is unique within the owner, assigned in creation order from 0.
	RemoveID int32
	// Time is the absolute fire instant in unix milliseconds.
	Time int64
	// SetTime is the repeat interval in milliseconds, 0 for one-shot reminders.
	SetTime int64
	Name    string
	// Content is the directive text the reminder was created from.
	Content string

	CreatedTs int64
	UpdatedTs int64
}

// DisplayNumber is the 1-based number shown to the owner.
func (r *Reminder) DisplayNumber() int {
	return int(r.RemoveID) + 1
}

// IsRecurring reports whether the reminder is rescheduled when fired.
func (r *Reminder) IsRecurring() bool {
	return r.SetTime > 0
}

// FireTime returns Time as a UTC instant.
func (r *Reminder) FireTime() time.Time {
	return time.UnixMilli(r.Time).UTC()
}

// Interval returns SetTime as a duration.
func (r *Reminder) Interval() time.Duration {
	return time.Duration(r.SetTime) * time.Millisecond
}

// FindReminder is the find condition for reminders.
type FindReminder struct {
	ID       *int32
	UID      *string
	OwnerID  *string
	RemoveID *int32

	// DueBefore matches reminders whose Time is at or before the value.
	DueBefore *int64

	// OrderByTime sorts by fire time instead of owner and remove_id.
	OrderByTime bool
	// OrderDesc reverses the sort order.
	OrderDesc bool

	Limit *int
}

// UpdateReminder is the update request for a reminder.
type UpdateReminder struct {
	OwnerID  string
	RemoveID int32

	Name      *string
	Time      *int64
	UpdatedTs *int64
}

// DeleteReminder is the delete request for reminders. Nil fields match all.
type DeleteReminder struct {
	ID       *int32
	OwnerID  *string
	RemoveID *int32
}

// CreateReminder creates a new reminder.
func (s *Store) CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error) {
	return s.driver.CreateReminder(ctx, create)
}

// ListReminders lists reminders with filter.
func (s *Store) ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error) {
	return s.driver.ListReminders(ctx, find)
}

// GetReminder returns the first reminder matching find, or nil.
func (s *Store) GetReminder(ctx context.Context, find *FindReminder) (*Reminder, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListReminders(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateReminder updates a reminder. It reports whether a row was changed.
func (s *Store) UpdateReminder(ctx context.Context, update *UpdateReminder) (bool, error) {
	if update.UpdatedTs == nil {
		now := time.Now().Unix()
		update.UpdatedTs = &now
	}
	return s.driver.UpdateReminder(ctx, update)
}

// DeleteReminders deletes matching reminders and returns how many were removed.
func (s *Store) DeleteReminders(ctx context.Context, delete *DeleteReminder) (int64, error) {
	return s.driver.DeleteReminders(ctx, delete)
}

// NextRemoveID allocates the owner's next remove_id.
func (s *Store) NextRemoveID(ctx context.Context, ownerID string) (int32, error) {
	return s.driver.NextRemoveID(ctx, ownerID)
}
