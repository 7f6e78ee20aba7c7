package reminder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/store"
	"github.com/hrygo/strawbean/store/db/memory"
	storetest "github.com/hrygo/strawbean/store/test"
)

var baseTime = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

const Day = 24 * time.Hour

func newMemoryStore() *store.Store {
	return store.New(memory.NewDB(), &profile.Profile{Mode: "dev", Driver: "memory"})
}

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := baseTime
	svc := NewService(newMemoryStore(), "reminder")
	svc.SetClock(func() time.Time { return now })
	return svc, &now
}

func mustCreate(t *testing.T, svc *Service, owner string, fireAt time.Time, interval time.Duration) *store.Reminder {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateRequest{
		OwnerID:  owner,
		Content:  "remindme",
		Time:     fireAt,
		Interval: interval,
	})
	require.NoError(t, err)
	return r
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	second := mustCreate(t, svc, "alice", baseTime.Add(2*time.Hour), Day)
	other := mustCreate(t, svc, "bob", baseTime.Add(time.Hour), 0)

	assert.Equal(t, int32(0), first.RemoveID)
	assert.Equal(t, 1, first.DisplayNumber())
	assert.Equal(t, int32(1), second.RemoveID)
	assert.Equal(t, int32(0), other.RemoveID)
	assert.Equal(t, "reminder", first.Name)
	assert.NotEmpty(t, first.UID)
	assert.NotEqual(t, first.UID, second.UID)
	assert.False(t, first.IsRecurring())
	assert.True(t, second.IsRecurring())
	assert.Equal(t, Day.Milliseconds(), second.SetTime)
	assert.Equal(t, baseTime.Add(time.Hour).UnixMilli(), first.Time)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.UID, list[0].UID)
	assert.Equal(t, second.UID, list[1].UID)
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateRequest{Time: baseTime})
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeInvalidArgument))

	_, err = svc.Create(context.Background(), CreateRequest{OwnerID: "alice", Time: baseTime, Interval: -time.Hour})
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeInvalidArgument))
}

func TestService_RemoveIDNeverReused(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	}
	deleted, err := svc.RemoveAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	next := mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	assert.Equal(t, int32(3), next.RemoveID)

	_, err = svc.ByDisplayNumber(ctx, "alice", 1)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
}

func TestService_CounterSeededFromStore(t *testing.T) {
	st := newMemoryStore()
	ctx := context.Background()

	first := NewService(st, "")
	mustCreate(t, first, "alice", baseTime, 0)
	mustCreate(t, first, "alice", baseTime, 0)

	restarted := NewService(st, "")
	r := mustCreate(t, restarted, "alice", baseTime, 0)
	assert.Equal(t, int32(2), r.RemoveID)

	list, err := restarted.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestService_Selectors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Latest(ctx, "alice")
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))

	for i := 0; i < 5; i++ {
		mustCreate(t, svc, "alice", baseTime.Add(time.Duration(i)*time.Hour), 0)
	}

	latest, err := svc.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(4), latest.RemoveID)

	first, err := svc.ByDisplayNumber(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), first.RemoveID)

	_, err = svc.ByDisplayNumber(ctx, "alice", 6)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
	_, err = svc.ByDisplayNumber(ctx, "alice", 0)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
	_, err = svc.ByDisplayNumber(ctx, "bob", 1)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
}

func TestService_RenameLatestSequence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 10
	for i := 0; i < n; i++ {
		mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
		_, err := svc.Rename(ctx, "alice", LatestSelector, "example name")
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, n)
	for _, r := range list {
		assert.Equal(t, "example name", r.Name)
	}
}

func TestService_RenameByNumber(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	}
	renamed, err := svc.Rename(ctx, "alice", NumberSelector(1), "first")
	require.NoError(t, err)
	assert.Equal(t, int32(0), renamed.RemoveID)

	got, err := svc.ByDisplayNumber(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	latest, err := svc.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "reminder", latest.Name)

	_, err = svc.Rename(ctx, "alice", NumberSelector(9), "nope")
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
	_, err = svc.Rename(ctx, "alice", LatestSelector, "")
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeInvalidArgument))
}

func TestService_AdjustTime(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created := mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	adjusted, err := svc.AdjustTime(ctx, "alice", LatestSelector, 7*Day)
	require.NoError(t, err)
	assert.Equal(t, created.Time+(7*Day).Milliseconds(), adjusted.Time)

	got, err := svc.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, adjusted.Time, got.Time)
	assert.Equal(t, int64(0), got.SetTime)

	_, err = svc.AdjustTime(ctx, "bob", LatestSelector, Day)
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))
}

func TestService_SetTime(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, "alice", baseTime.Add(time.Hour), Day)
	target := baseTime.Add(72 * time.Hour)
	got, err := svc.SetTime(ctx, "alice", NumberSelector(1), target)
	require.NoError(t, err)
	assert.Equal(t, target.UnixMilli(), got.Time)
	assert.Equal(t, Day.Milliseconds(), got.SetTime)
}

func TestService_RemoveOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	}
	removed, err := svc.RemoveOne(ctx, "alice", NumberSelector(2))
	require.NoError(t, err)
	assert.Equal(t, int32(1), removed.RemoveID)

	_, err = svc.RemoveOne(ctx, "alice", NumberSelector(2))
	assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeNotFound))

	third, err := svc.ByDisplayNumber(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), third.RemoveID)

	removed, err = svc.RemoveOne(ctx, "alice", LatestSelector)
	require.NoError(t, err)
	assert.Equal(t, int32(2), removed.RemoveID)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(0), list[0].RemoveID)
}

func TestService_RemoveAllTen(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		mustCreate(t, svc, "alice", baseTime.Add(time.Hour), 0)
	}
	mustCreate(t, svc, "bob", baseTime.Add(time.Hour), 0)

	deleted, err := svc.RemoveAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), deleted)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)

	others, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestService_ConcurrentCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("owner-%d", i%2)
			_, err := svc.Create(ctx, CreateRequest{OwnerID: owner, Time: baseTime})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, owner := range []string{"owner-0", "owner-1"} {
		list, err := svc.List(ctx, owner)
		require.NoError(t, err)
		require.Len(t, list, 10)
		for i, r := range list {
			assert.Equal(t, int32(i), r.RemoveID)
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.locks, "owner locks are dropped once released")
}

func TestService_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.NewTestingStore(ctx, t), "reminder")

	mustCreate(t, svc, "alice", baseTime, 0)
	mustCreate(t, svc, "alice", baseTime.Add(time.Hour), Day)
	_, err := svc.Rename(ctx, "alice", LatestSelector, "sqlite")
	require.NoError(t, err)

	latest, err := svc.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", latest.Name)
	assert.Equal(t, int32(1), latest.RemoveID)

	due, err := svc.ListDue(ctx, baseTime, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int32(0), due[0].RemoveID)
}

func TestCompleteFiring(t *testing.T) {
	ctx := context.Background()

	t.Run("one-shot is deleted", func(t *testing.T) {
		svc, _ := newTestService(t)
		r := mustCreate(t, svc, "alice", baseTime, 0)
		result, err := svc.CompleteFiring(ctx, r, baseTime)
		require.NoError(t, err)
		assert.Equal(t, FiringDeleted, result)
		list, _ := svc.List(ctx, "alice")
		assert.Empty(t, list)
	})

	t.Run("recurring is advanced", func(t *testing.T) {
		svc, _ := newTestService(t)
		r := mustCreate(t, svc, "alice", baseTime, time.Hour)
		result, err := svc.CompleteFiring(ctx, r, baseTime.Add(150*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, FiringRescheduled, result)

		got, err := svc.Latest(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, baseTime.Add(3*time.Hour).UnixMilli(), got.Time)
		assert.Equal(t, r.RemoveID, got.RemoveID)
		assert.Equal(t, r.Name, got.Name)
		assert.Equal(t, time.Hour.Milliseconds(), got.SetTime)
	})

	t.Run("changed during delivery", func(t *testing.T) {
		svc, _ := newTestService(t)
		r := mustCreate(t, svc, "alice", baseTime, 0)
		snapshot := *r
		_, err := svc.AdjustTime(ctx, "alice", LatestSelector, Day)
		require.NoError(t, err)

		result, err := svc.CompleteFiring(ctx, &snapshot, baseTime)
		require.NoError(t, err)
		assert.Equal(t, FiringSuperseded, result)
		list, _ := svc.List(ctx, "alice")
		assert.Len(t, list, 1)
	})

	t.Run("removed during delivery", func(t *testing.T) {
		svc, _ := newTestService(t)
		r := mustCreate(t, svc, "alice", baseTime, time.Hour)
		_, err := svc.RemoveAll(ctx, "alice")
		require.NoError(t, err)

		result, err := svc.CompleteFiring(ctx, r, baseTime)
		require.NoError(t, err)
		assert.Equal(t, FiringSuperseded, result)
	})
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		word    string
		want    Selector
		wantErr bool
	}{
		{word: "latest", want: LatestSelector},
		{word: "LAST", want: LatestSelector},
		{word: "1", want: NumberSelector(1)},
		{word: "42", want: NumberSelector(42)},
		{word: "0", wantErr: true},
		{word: "-3", wantErr: true},
		{word: "all", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, err := ParseSelector(tt.word)
			if tt.wantErr {
				assert.True(t, ierrors.IsCode(err, ierrors.ErrCodeInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "latest", LatestSelector.String())
	assert.Equal(t, "#3", NumberSelector(3).String())
}

func TestNextFireTime(t *testing.T) {
	week := 7 * Day
	tests := []struct {
		name    string
		fireAt  time.Time
		firedAt time.Time
		want    time.Time
	}{
		{"on time", baseTime, baseTime, baseTime.Add(week)},
		{"slightly late", baseTime, baseTime.Add(time.Minute), baseTime.Add(week)},
		{"exactly one cycle late", baseTime, baseTime.Add(week), baseTime.Add(2 * week)},
		{"many cycles late", baseTime, baseTime.Add(5*week + time.Hour), baseTime.Add(6 * week)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextFireTime(tt.fireAt, week, tt.firedAt))
		})
	}
	assert.True(t, NextFireTime(baseTime, 0, baseTime).IsZero())
}

func TestNextFireTime_RepeatedFiringNeverInPast(t *testing.T) {
	week := 7 * Day
	fireAt := baseTime
	firedAt := baseTime
	for i := 0; i < 50; i++ {
		firedAt = firedAt.Add(time.Duration(i%9) * 37 * time.Hour)
		next := NextFireTime(fireAt, week, firedAt)
		assert.True(t, next.After(firedAt))
		assert.Zero(t, next.Sub(fireAt)%week)
		assert.True(t, next.After(fireAt))
		fireAt = next
	}
}
