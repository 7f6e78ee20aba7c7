package reminder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	ierrors "github.com/hrygo/strawbean/internal/errors"
	"github.com/hrygo/strawbean/store"
)

// Scheduler is the single background loop that fires due reminders.
//
// Each tick scans every owner's reminders due at or before now and starts
// their deliveries without waiting for them, so a slow notifier never delays
// the next scan. Deliveries across ticks share one limit of Concurrency. A
// reminder still being delivered is skipped by later ticks. A reminder is
// delivered first and persisted second, so a crash between the two repeats a
// notification rather than losing it. A failed or timed-out delivery leaves
// the reminder as it was and it is retried on a later tick.
type Scheduler struct {
	service       *Service
	notifier      Notifier
	interval      time.Duration
	notifyTimeout time.Duration
	concurrency   int
	batchSize     int
	metrics       *MetricsCollector
	logger        *slog.Logger

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex

	// deliveries bounds in-flight deliveries of the loop and RunOnce alike.
	deliveries errgroup.Group

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	processedChan chan int // For testing: reports deliveries started per cycle
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Interval      time.Duration // How often to check for due reminders
	NotifyTimeout time.Duration // Upper bound for one delivery
	Concurrency   int           // Deliveries in flight at once
	BatchSize     int           // Max reminders to process per cycle
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      time.Second,
		NotifyTimeout: 10 * time.Second,
		Concurrency:   8,
		BatchSize:     500,
	}
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(service *Service, notifier Notifier, config SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = defaults.NotifyTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	s := &Scheduler{
		service:       service,
		notifier:      notifier,
		interval:      config.Interval,
		notifyTimeout: config.NotifyTimeout,
		concurrency:   config.Concurrency,
		batchSize:     config.BatchSize,
		metrics:       NewMetricsCollector(),
		logger:        slog.Default(),
		inFlight:      make(map[string]struct{}),
	}
	s.deliveries.SetLimit(config.Concurrency)
	return s
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx)

	s.logger.Info("reminder scheduler started", "interval", s.interval, "concurrency", s.concurrency)
	return nil
}

// Stop cancels in-flight deliveries and waits for the loop and every delivery
// it started to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	_ = s.deliveries.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetLogger sets a custom logger.
func (s *Scheduler) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Metrics returns the scheduler's counters.
func (s *Scheduler) Metrics() *MetricsCollector {
	return s.metrics
}

// EnableTestMode enables test mode with a channel for per-cycle dispatch counts.
func (s *Scheduler) EnableTestMode() <-chan int {
	s.processedChan = make(chan int, 100)
	return s.processedChan
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Process immediately on start
	s.processCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processCycle(ctx)
		}
	}
}

// processCycle scans due reminders and starts their deliveries. It does not
// wait for them.
func (s *Scheduler) processCycle(ctx context.Context) {
	start := time.Now()
	dispatched, err := s.dispatch(ctx, nil)
	if err != nil {
		s.logger.Error("failed to process due reminders", "error", err)
		return
	}
	s.metrics.RecordCycle(time.Since(start))

	if dispatched > 0 {
		s.logger.Debug("dispatched due reminders", "count", dispatched)
	}

	if s.processedChan != nil {
		select {
		case s.processedChan <- dispatched:
		default:
		}
	}
}

// RunOnce delivers every reminder due now and returns how many were
// delivered. Unlike the loop it waits for the deliveries it started.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	batch := &deliveryBatch{}
	_, err := s.dispatch(ctx, batch)
	batch.wg.Wait()
	if err != nil {
		return 0, err
	}
	s.metrics.RecordCycle(time.Since(start))
	return int(batch.delivered.Load()), nil
}

// deliveryBatch tracks the deliveries of one RunOnce call.
type deliveryBatch struct {
	wg        sync.WaitGroup
	delivered atomic.Int64
}

// dispatch starts a delivery for each due reminder that is not already in
// flight and returns how many it started. With a batch it blocks for a free
// delivery slot; without one, reminders beyond the limit are left for a later
// tick.
func (s *Scheduler) dispatch(ctx context.Context, batch *deliveryBatch) (int, error) {
	now := s.service.Now()
	due, err := s.service.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}
		if !s.claim(r.UID) {
			continue
		}
		deliver := func() error {
			defer s.release(r.UID)
			ok := s.fire(ctx, r, now)
			if ok {
				s.metrics.RecordProcessed(1)
			} else {
				s.metrics.RecordFailed(1)
			}
			if batch != nil {
				if ok {
					batch.delivered.Add(1)
				}
				batch.wg.Done()
			}
			return nil
		}

		if batch != nil {
			batch.wg.Add(1)
			s.deliveries.Go(deliver)
		} else if !s.deliveries.TryGo(deliver) {
			s.release(r.UID)
			break
		}
		dispatched++
	}
	return dispatched, nil
}

// fire delivers one reminder and applies the firing policy.
func (s *Scheduler) fire(ctx context.Context, r *store.Reminder, firedAt time.Time) bool {
	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	err := s.notifier.Notify(notifyCtx, r)
	timedOut := notifyCtx.Err() == context.DeadlineExceeded
	cancel()

	if err != nil {
		if timedOut {
			err = ierrors.Timeout("notification timed out", err)
		}
		s.logger.Warn("reminder delivery failed, retrying next tick",
			slog.String("owner_id", r.OwnerID),
			slog.Int("number", r.DisplayNumber()),
			slog.Any("error", ierrors.NotifyFailure(err)),
		)
		return false
	}

	// Delivered: persist even if the loop is shutting down.
	result, err := s.service.CompleteFiring(context.WithoutCancel(ctx), r, firedAt)
	if err != nil {
		s.logger.Error("failed to persist fired reminder",
			slog.String("owner_id", r.OwnerID),
			slog.Int("number", r.DisplayNumber()),
			slog.Any("error", err),
		)
		return true
	}
	switch result {
	case FiringRescheduled:
		s.logger.Debug("recurring reminder rescheduled",
			slog.String("owner_id", r.OwnerID),
			slog.Int("number", r.DisplayNumber()),
			slog.Time("next", r.FireTime()),
		)
	case FiringSuperseded:
		s.logger.Debug("reminder changed during delivery, keeping newer state",
			slog.String("owner_id", r.OwnerID),
			slog.Int("number", r.DisplayNumber()),
		)
	}
	return true
}

// claim marks uid in flight. It fails when an earlier delivery of the same
// reminder has not returned yet.
func (s *Scheduler) claim(uid string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, busy := s.inFlight[uid]; busy {
		return false
	}
	s.inFlight[uid] = struct{}{}
	return true
}

func (s *Scheduler) release(uid string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, uid)
}

// InFlight returns how many deliveries have not returned yet.
func (s *Scheduler) InFlight() int {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	return len(s.inFlight)
}

// HealthCheck provides health check for the scheduler.
type HealthCheck struct {
	scheduler  *Scheduler
	lastCheck  time.Time
	checkCount int64
	mu         sync.Mutex
}

// NewHealthCheck creates a new health check for the scheduler.
func NewHealthCheck(scheduler *Scheduler) *HealthCheck {
	return &HealthCheck{
		scheduler: scheduler,
	}
}

// Check returns the health status.
func (h *HealthCheck) Check() HealthStatus {
	h.mu.Lock()
	h.lastCheck = time.Now()
	h.checkCount++
	status := HealthStatus{
		Healthy:    h.scheduler.IsRunning(),
		LastCheck:  h.lastCheck,
		CheckCount: h.checkCount,
	}
	h.mu.Unlock()

	status.Stats = h.scheduler.metrics.GetStats()
	return status
}

// HealthStatus represents the health of the scheduler.
type HealthStatus struct {
	Healthy    bool      `json:"healthy"`
	LastCheck  time.Time `json:"last_check"`
	CheckCount int64     `json:"check_count"`
	Stats      Stats     `json:"stats"`
}

// Stats holds scheduler statistics.
type Stats struct {
	TotalProcessed int64     `json:"total_processed"`
	TotalFailed    int64     `json:"total_failed"`
	Cycles         int64     `json:"cycles"`
	LastRunAt      time.Time `json:"last_run_at"`
	AverageLatency float64   `json:"average_latency_ms"`
}

// MetricsCollector collects scheduler metrics.
type MetricsCollector struct {
	stats Stats
	mu    sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordCycle records one scan and how long it took.
func (m *MetricsCollector) RecordCycle(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Cycles++
	m.stats.LastRunAt = time.Now()
	ms := float64(latency.Microseconds()) / 1000
	m.stats.AverageLatency += (ms - m.stats.AverageLatency) / float64(m.stats.Cycles)
}

// RecordProcessed records delivered reminders.
func (m *MetricsCollector) RecordProcessed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalProcessed += int64(count)
}

// RecordFailed records failed deliveries.
func (m *MetricsCollector) RecordFailed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalFailed += int64(count)
}

// GetStats returns current statistics.
func (m *MetricsCollector) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
