// Package memory is an in-process store driver. Nothing survives a restart.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/strawbean/store"
)

type reminderKey struct {
	ownerID  string
	removeID int32
}

// DB keeps reminders in a map keyed by owner and remove_id.
type DB struct {
	mu        sync.RWMutex
	nextID    int32
	reminders map[reminderKey]*store.Reminder
	// counters holds each owner's next remove_id.
	counters map[string]int32
}

// NewDB creates an empty in-memory driver.
func NewDB() *DB {
	return &DB{
		reminders: make(map[reminderKey]*store.Reminder),
		counters:  make(map[string]int32),
	}
}

func (d *DB) GetDB() *sql.DB {
	return nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) IsInitialized(context.Context) (bool, error) {
	return true, nil
}

func (d *DB) CreateReminder(_ context.Context, create *store.Reminder) (*store.Reminder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := reminderKey{create.OwnerID, create.RemoveID}
	if _, exists := d.reminders[key]; exists {
		return nil, fmt.Errorf("reminder already exists: owner=%s remove_id=%d", create.OwnerID, create.RemoveID)
	}
	for _, r := range d.reminders {
		if r.UID == create.UID {
			return nil, fmt.Errorf("reminder already exists: uid=%s", create.UID)
		}
	}

	d.nextID++
	create.ID = d.nextID
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	create.UpdatedTs = create.CreatedTs

	stored := *create
	d.reminders[key] = &stored
	return create, nil
}

func (d *DB) ListReminders(_ context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.Reminder, 0)
	for _, r := range d.reminders {
		if !matches(r, find) {
			continue
		}
		copied := *r
		list = append(list, &copied)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if find.OrderDesc {
			a, b = b, a
		}
		if find.OrderByTime {
			if a.Time != b.Time {
				return a.Time < b.Time
			}
			return a.ID < b.ID
		}
		if a.OwnerID != b.OwnerID {
			return a.OwnerID < b.OwnerID
		}
		return a.RemoveID < b.RemoveID
	})

	if find.Limit != nil && *find.Limit >= 0 && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func matches(r *store.Reminder, find *store.FindReminder) bool {
	if v := find.ID; v != nil && r.ID != *v {
		return false
	}
	if v := find.UID; v != nil && r.UID != *v {
		return false
	}
	if v := find.OwnerID; v != nil && r.OwnerID != *v {
		return false
	}
	if v := find.RemoveID; v != nil && r.RemoveID != *v {
		return false
	}
	if v := find.DueBefore; v != nil && r.Time > *v {
		return false
	}
	return true
}

func (d *DB) UpdateReminder(_ context.Context, update *store.UpdateReminder) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.reminders[reminderKey{update.OwnerID, update.RemoveID}]
	if !ok {
		return false, nil
	}
	if v := update.Name; v != nil {
		r.Name = *v
	}
	if v := update.Time; v != nil {
		r.Time = *v
	}
	if v := update.UpdatedTs; v != nil {
		r.UpdatedTs = *v
	}
	return true, nil
}

func (d *DB) DeleteReminders(_ context.Context, find *store.DeleteReminder) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var deleted int64
	for key, r := range d.reminders {
		if v := find.ID; v != nil && r.ID != *v {
			continue
		}
		if v := find.OwnerID; v != nil && r.OwnerID != *v {
			continue
		}
		if v := find.RemoveID; v != nil && r.RemoveID != *v {
			continue
		}
		delete(d.reminders, key)
		deleted++
	}
	return deleted, nil
}

func (d *DB) NextRemoveID(_ context.Context, ownerID string) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, ok := d.counters[ownerID]
	if !ok {
		for key := range d.reminders {
			if key.ownerID == ownerID && key.removeID >= next {
				next = key.removeID + 1
			}
		}
	}
	d.counters[ownerID] = next + 1
	return next, nil
}
