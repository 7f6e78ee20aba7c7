package test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/plugin/reminder"
	"github.com/hrygo/strawbean/store"
	"github.com/hrygo/strawbean/store/db"
)

func createReminder(ctx context.Context, t *testing.T, ts *store.Store, owner string, removeID int32, fireAt int64) *store.Reminder {
	t.Helper()
	r, err := ts.CreateReminder(ctx, &store.Reminder{
		UID:      fmt.Sprintf("%s-%d", owner, removeID),
		OwnerID:  owner,
		RemoveID: removeID,
		Time:     fireAt,
		Name:     "reminder",
		Content:  "remindme in 1 day",
	})
	require.NoError(t, err)
	return r
}

func forEachDriver(t *testing.T, fn func(t *testing.T, ctx context.Context, ts *store.Store)) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			fn(t, ctx, NewStoreForDriver(ctx, t, driver))
		})
	}
}

func TestReminderStore(t *testing.T) {
	forEachDriver(t, func(t *testing.T, ctx context.Context, ts *store.Store) {
		created := createReminder(ctx, t, ts, "alice", 0, 1000)
		assert.NotZero(t, created.ID)
		assert.NotZero(t, created.CreatedTs)
		createReminder(ctx, t, ts, "alice", 1, 500)
		createReminder(ctx, t, ts, "bob", 0, 2000)

		owner := "alice"
		list, err := ts.ListReminders(ctx, &store.FindReminder{OwnerID: &owner})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, int32(0), list[0].RemoveID)
		assert.Equal(t, int32(1), list[1].RemoveID)
		assert.Equal(t, "remindme in 1 day", list[0].Content)

		dueBefore := int64(1000)
		due, err := ts.ListReminders(ctx, &store.FindReminder{DueBefore: &dueBefore, OrderByTime: true})
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, int64(500), due[0].Time)
		assert.Equal(t, int64(1000), due[1].Time)

		name := "renamed"
		fireAt := int64(4242)
		ok, err := ts.UpdateReminder(ctx, &store.UpdateReminder{OwnerID: "alice", RemoveID: 0, Name: &name, Time: &fireAt})
		require.NoError(t, err)
		assert.True(t, ok)
		removeID := int32(0)
		got, err := ts.GetReminder(ctx, &store.FindReminder{OwnerID: &owner, RemoveID: &removeID})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, int64(4242), got.Time)

		ok, err = ts.UpdateReminder(ctx, &store.UpdateReminder{OwnerID: "alice", RemoveID: 9, Name: &name})
		require.NoError(t, err)
		assert.False(t, ok)

		deleted, err := ts.DeleteReminders(ctx, &store.DeleteReminder{OwnerID: &owner})
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		all, err := ts.ListReminders(ctx, &store.FindReminder{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "bob", all[0].OwnerID)
	})
}

func TestReminderStore_UniqueRemoveID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, ctx context.Context, ts *store.Store) {
		createReminder(ctx, t, ts, "alice", 0, 1000)
		_, err := ts.CreateReminder(ctx, &store.Reminder{UID: "other", OwnerID: "alice", RemoveID: 0, Time: 1})
		assert.Error(t, err)
	})
}

func TestReminderStore_NextRemoveID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, ctx context.Context, ts *store.Store) {
		// Reminders written without the counter seed it.
		createReminder(ctx, t, ts, "alice", 0, 1000)
		createReminder(ctx, t, ts, "alice", 1, 1000)

		next, err := ts.NextRemoveID(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int32(2), next)

		next, err = ts.NextRemoveID(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, int32(0), next)

		// Deleting never lowers the counter.
		owner := "alice"
		_, err = ts.DeleteReminders(ctx, &store.DeleteReminder{OwnerID: &owner})
		require.NoError(t, err)
		next, err = ts.NextRemoveID(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int32(3), next)
	})
}

func TestReminderStore_SharedCounterAcrossServices(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	serve := reminder.NewService(ts, "reminder")
	exec := reminder.NewService(ts, "reminder")
	fireAt := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	create := func(svc *reminder.Service) *store.Reminder {
		t.Helper()
		r, err := svc.Create(ctx, reminder.CreateRequest{OwnerID: "alice", Content: "remindme", Time: fireAt})
		require.NoError(t, err)
		return r
	}

	assert.Equal(t, int32(0), create(serve).RemoveID)
	assert.Equal(t, int32(1), create(serve).RemoveID)
	assert.Equal(t, int32(2), create(exec).RemoveID)
	assert.Equal(t, int32(3), create(serve).RemoveID)

	// A number freed by one service is not reissued by the other.
	_, err := serve.RemoveOne(ctx, "alice", reminder.NumberSelector(4))
	require.NoError(t, err)
	assert.Equal(t, int32(4), create(exec).RemoveID)

	_, err = serve.ByDisplayNumber(ctx, "alice", 4)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
}

func TestReminderStore_GetMissing(t *testing.T) {
	forEachDriver(t, func(t *testing.T, ctx context.Context, ts *store.Store) {
		uid := "missing"
		got, err := ts.GetReminder(ctx, &store.FindReminder{UID: &uid})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", Data: dir, DSN: filepath.Join(dir, "strawbean_test.db")}

	first := NewTestingStoreWithProfile(ctx, t, p)
	createReminder(ctx, t, first, "alice", 0, 1000)
	require.NoError(t, first.Close())

	second := NewTestingStoreWithProfile(ctx, t, p)
	list, err := second.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMigrate_CounterSeededOnUpgrade(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", Data: dir, DSN: filepath.Join(dir, "strawbean_old.db")}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE migration_history (version TEXT NOT NULL PRIMARY KEY, created_ts BIGINT NOT NULL DEFAULT 0)`,
		`CREATE TABLE reminder (
			id INTEGER PRIMARY KEY AUTOINCREMENT, uid TEXT NOT NULL UNIQUE, owner_id TEXT NOT NULL,
			remove_id INTEGER NOT NULL, fire_ts BIGINT NOT NULL, set_time BIGINT NOT NULL DEFAULT 0,
			name TEXT NOT NULL DEFAULT '', content TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL DEFAULT 0, updated_ts BIGINT NOT NULL DEFAULT 0,
			UNIQUE(owner_id, remove_id))`,
		`INSERT INTO migration_history (version) VALUES ('01__reminder_fire_ts_index')`,
		`INSERT INTO reminder (uid, owner_id, remove_id, fire_ts) VALUES ('a', 'alice', 4, 1000)`,
	} {
		_, err := driver.GetDB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	ts := store.New(driver, p)
	t.Cleanup(func() { ts.Close() })
	require.NoError(t, ts.Migrate(ctx))

	var nextID int32
	require.NoError(t, driver.GetDB().QueryRowContext(ctx,
		"SELECT next_id FROM reminder_counter WHERE owner_id = 'alice'").Scan(&nextID))
	assert.Equal(t, int32(5), nextID)

	next, err := ts.NextRemoveID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(5), next)
}

func TestMigrate_DemoSeed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ts := NewTestingStoreWithProfile(ctx, t, &profile.Profile{Mode: "demo", Driver: "sqlite", Data: dir, DSN: filepath.Join(dir, "strawbean_demo.db")})

	owner := "demo"
	list, err := ts.ListReminders(ctx, &store.FindReminder{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsRecurring())
	assert.False(t, list[1].IsRecurring())
}
