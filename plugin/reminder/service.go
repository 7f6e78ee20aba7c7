// Package reminder keeps each owner's reminders, fires them when due and
// reschedules the recurring ones.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/store"
)

// CreateRequest describes a new reminder.
type CreateRequest struct {
	OwnerID string
	// Content is the directive text, kept for display.
	Content string
	// Time is the resolved fire instant.
	Time time.Time
	// Interval is the repeat interval, zero for one-shot reminders.
	Interval time.Duration
	// Name defaults to the service's default name.
	Name string
}

// Service owns per-owner reminder collections.
//
// Mutations for one owner are serialized with each other and with the
// scheduler persisting a fired reminder of that owner. Owners do not contend.
type Service struct {
	store       *store.Store
	defaultName string
	now         func() time.Time
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*ownerLock
}

// NewService creates a reminder service over store.
func NewService(store *store.Store, defaultName string) *Service {
	if defaultName == "" {
		defaultName = "reminder"
	}
	return &Service{
		store:       store,
		defaultName: defaultName,
		now:         time.Now,
		logger:      slog.Default(),
		locks:       make(map[string]*ownerLock),
	}
}

// SetClock replaces the clock used for fire-time comparisons.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetLogger sets a custom logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// ownerLock serializes one owner's mutations. refs counts holders and waiters
// so the entry can be dropped once nobody needs it.
type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the owner's mutex and returns its release. Entries live only
// while held or awaited, so the map stays as large as the set of owners being
// mutated right now.
func (s *Service) lock(ownerID string) func() {
	s.mu.Lock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &ownerLock{}
		s.locks[ownerID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, ownerID)
		}
		s.mu.Unlock()
	}
}

// nextRemoveID allocates the owner's next remove_id from the store, so
// processes sharing a database never hand out the same number twice.
func (s *Service) nextRemoveID(ctx context.Context, ownerID string) (int32, error) {
	removeID, err := s.store.NextRemoveID(ctx, ownerID)
	if err != nil {
		return 0, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to allocate reminder number")
	}
	return removeID, nil
}

// Create stores a new reminder with the owner's next remove_id.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Reminder, error) {
	if req.OwnerID == "" {
		return nil, ierrors.InvalidArgument("owner is required")
	}
	if req.Interval < 0 {
		return nil, ierrors.InvalidArgument("interval must not be negative")
	}
	name := req.Name
	if name == "" {
		name = s.defaultName
	}

	unlock := s.lock(req.OwnerID)
	defer unlock()

	removeID, err := s.nextRemoveID(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateReminder(ctx, &store.Reminder{
		UID:      shortuuid.New(),
		OwnerID:  req.OwnerID,
		RemoveID: removeID,
		Time:     req.Time.UnixMilli(),
		SetTime:  req.Interval.Milliseconds(),
		Name:     name,
		Content:  req.Content,
	})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to create reminder")
	}

	s.logger.Debug("reminder created",
		slog.String("owner_id", created.OwnerID),
		slog.Int("number", created.DisplayNumber()),
		slog.Time("fire_at", created.FireTime()),
		slog.Duration("interval", created.Interval()),
	)
	return created, nil
}

// List returns the owner's reminders in creation order.
func (s *Service) List(ctx context.Context, ownerID string) ([]*store.Reminder, error) {
	list, err := s.store.ListReminders(ctx, &store.FindReminder{OwnerID: &ownerID})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to list reminders")
	}
	return list, nil
}

// Latest returns the owner's most recently created reminder.
func (s *Service) Latest(ctx context.Context, ownerID string) (*store.Reminder, error) {
	return s.Get(ctx, ownerID, LatestSelector)
}

// ByDisplayNumber returns the reminder shown as #n.
func (s *Service) ByDisplayNumber(ctx context.Context, ownerID string, n int) (*store.Reminder, error) {
	return s.Get(ctx, ownerID, NumberSelector(n))
}

// Get resolves a selector to a reminder, failing with NOT_FOUND.
func (s *Service) Get(ctx context.Context, ownerID string, sel Selector) (*store.Reminder, error) {
	var (
		r   *store.Reminder
		err error
	)
	if sel.Latest {
		r, err = s.store.GetReminder(ctx, &store.FindReminder{OwnerID: &ownerID, OrderDesc: true})
	} else {
		if sel.Number <= 0 {
			return nil, ierrors.NotFound("no reminder %s", sel)
		}
		removeID := int32(sel.Number - 1)
		r, err = s.store.GetReminder(ctx, &store.FindReminder{OwnerID: &ownerID, RemoveID: &removeID})
	}
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to find reminder")
	}
	if r == nil {
		if sel.Latest {
			return nil, ierrors.NotFound("you have no reminders")
		}
		return nil, ierrors.NotFound("no reminder %s", sel)
	}
	return r, nil
}

// Rename changes the name of the selected reminder.
func (s *Service) Rename(ctx context.Context, ownerID string, sel Selector, name string) (*store.Reminder, error) {
	if name == "" {
		return nil, ierrors.InvalidArgument("a new name is required")
	}
	return s.update(ctx, ownerID, sel, func(r *store.Reminder, update *store.UpdateReminder) error {
		update.Name = &name
		r.Name = name
		return nil
	})
}

// AdjustTime moves the selected reminder's fire time by delta. The repeat
// interval is left untouched.
func (s *Service) AdjustTime(ctx context.Context, ownerID string, sel Selector, delta time.Duration) (*store.Reminder, error) {
	return s.update(ctx, ownerID, sel, func(r *store.Reminder, update *store.UpdateReminder) error {
		fireAt := r.Time + delta.Milliseconds()
		if fireAt < 0 {
			return ierrors.InvalidArgument("adjusted time is before 1970")
		}
		update.Time = &fireAt
		r.Time = fireAt
		return nil
	})
}

// SetTime sets the selected reminder's fire time.
func (s *Service) SetTime(ctx context.Context, ownerID string, sel Selector, fireAt time.Time) (*store.Reminder, error) {
	return s.update(ctx, ownerID, sel, func(r *store.Reminder, update *store.UpdateReminder) error {
		ms := fireAt.UnixMilli()
		update.Time = &ms
		r.Time = ms
		return nil
	})
}

func (s *Service) update(ctx context.Context, ownerID string, sel Selector, apply func(*store.Reminder, *store.UpdateReminder) error) (*store.Reminder, error) {
	unlock := s.lock(ownerID)
	defer unlock()

	r, err := s.Get(ctx, ownerID, sel)
	if err != nil {
		return nil, err
	}
	update := &store.UpdateReminder{OwnerID: ownerID, RemoveID: r.RemoveID}
	if err := apply(r, update); err != nil {
		return nil, err
	}
	ok, err := s.store.UpdateReminder(ctx, update)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to update reminder")
	}
	if !ok {
		return nil, ierrors.NotFound("no reminder %s", sel)
	}
	return r, nil
}

// RemoveAll deletes every reminder of the owner and returns how many there were.
func (s *Service) RemoveAll(ctx context.Context, ownerID string) (int64, error) {
	unlock := s.lock(ownerID)
	defer unlock()

	deleted, err := s.store.DeleteReminders(ctx, &store.DeleteReminder{OwnerID: &ownerID})
	if err != nil {
		return 0, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to remove reminders")
	}
	return deleted, nil
}

// RemoveOne deletes the selected reminder and returns it.
func (s *Service) RemoveOne(ctx context.Context, ownerID string, sel Selector) (*store.Reminder, error) {
	unlock := s.lock(ownerID)
	defer unlock()

	r, err := s.Get(ctx, ownerID, sel)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteReminders(ctx, &store.DeleteReminder{OwnerID: &ownerID, RemoveID: &r.RemoveID})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrCodeInternal, "failed to remove reminder")
	}
	if deleted == 0 {
		return nil, ierrors.NotFound("no reminder %s", sel)
	}
	return r, nil
}

// ListDue returns reminders of all owners due at or before now, soonest first.
func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]*store.Reminder, error) {
	dueBefore := now.UnixMilli()
	find := &store.FindReminder{DueBefore: &dueBefore, OrderByTime: true}
	if limit > 0 {
		find.Limit = &limit
	}
	list, err := s.store.ListReminders(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due reminders")
	}
	return list, nil
}

// FiringResult tells what happened to a delivered reminder.
type FiringResult int

const (
	// FiringDeleted means a one-shot reminder was removed.
	FiringDeleted FiringResult = iota
	// FiringRescheduled means a recurring reminder moved to its next cycle.
	FiringRescheduled
	// FiringSuperseded means the reminder was changed or removed while it was
	// being delivered, so the newer state was kept.
	FiringSuperseded
)

// CompleteFiring applies the firing policy to a delivered reminder: one-shot
// reminders are deleted, recurring ones advance to the next cycle after
// firedAt. fired is the snapshot that was delivered.
func (s *Service) CompleteFiring(ctx context.Context, fired *store.Reminder, firedAt time.Time) (FiringResult, error) {
	unlock := s.lock(fired.OwnerID)
	defer unlock()

	current, err := s.store.GetReminder(ctx, &store.FindReminder{OwnerID: &fired.OwnerID, RemoveID: &fired.RemoveID})
	if err != nil {
		return 0, errors.Wrap(err, "failed to reload fired reminder")
	}
	if current == nil || current.UID != fired.UID || current.Time != fired.Time {
		return FiringSuperseded, nil
	}

	if !fired.IsRecurring() {
		if _, err := s.store.DeleteReminders(ctx, &store.DeleteReminder{OwnerID: &fired.OwnerID, RemoveID: &fired.RemoveID}); err != nil {
			return 0, errors.Wrap(err, "failed to delete fired reminder")
		}
		return FiringDeleted, nil
	}

	next := NextFireTime(fired.FireTime(), fired.Interval(), firedAt).UnixMilli()
	if _, err := s.store.UpdateReminder(ctx, &store.UpdateReminder{OwnerID: fired.OwnerID, RemoveID: fired.RemoveID, Time: &next}); err != nil {
		return 0, errors.Wrap(err, "failed to reschedule fired reminder")
	}
	fired.Time = next
	return FiringRescheduled, nil
}
