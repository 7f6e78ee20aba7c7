package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts executed directives per command kind.
type Metrics struct {
	mu sync.Mutex

	requestTotal   atomic.Int64
	requestFailed  atomic.Int64
	commandMetrics map[string]*CommandMetrics

	durations    []time.Duration
	maxDurations int
}

// CommandMetrics represents metrics for a specific command kind.
type CommandMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // microseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector keeping the last maxDurations
// durations.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		commandMetrics: make(map[string]*CommandMetrics),
		durations:      make([]time.Duration, 0, maxDurations),
		maxDurations:   maxDurations,
	}
}

// RecordRequest records one executed directive of kind command.
func (m *Metrics) RecordRequest(command string) {
	m.requestTotal.Add(1)
	m.getCommandMetrics(command).executionCount.Add(1)
}

// RecordFailure records a directive that produced an error reply.
func (m *Metrics) RecordFailure(command string) {
	m.requestFailed.Add(1)
	m.getCommandMetrics(command).errorCount.Add(1)
}

// RecordDuration records how long a directive took.
func (m *Metrics) RecordDuration(command string, duration time.Duration) {
	cm := m.getCommandMetrics(command)
	cm.totalDuration.Add(duration.Microseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// GetRequestTotal returns the total number of directives executed.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the number of directives that failed.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

func (m *Metrics) getCommandMetrics(command string) *CommandMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm, ok := m.commandMetrics[command]
	if !ok {
		cm = &CommandMetrics{}
		m.commandMetrics[command] = cm
	}
	return cm
}

// GetCommands returns the recorded command kinds, sorted.
func (m *Metrics) GetCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	commands := make([]string, 0, len(m.commandMetrics))
	for command := range m.commandMetrics {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	return commands
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.commandMetrics = make(map[string]*CommandMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	commands := make(map[string]*CommandMetricsSnapshot, len(m.commandMetrics))
	for command, cm := range m.commandMetrics {
		count := cm.executionCount.Load()
		total := cm.totalDuration.Load()
		var avg int64
		if count > 0 {
			avg = total / count
		}
		commands[command] = &CommandMetricsSnapshot{
			ExecutionCount:    count,
			ErrorCount:        cm.errorCount.Load(),
			TotalDurationUs:   total,
			AverageDurationUs: avg,
		}
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Commands:      commands,
		DurationCount: len(m.durations),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                              `json:"request_total"`
	RequestFailed int64                              `json:"request_failed"`
	Commands      map[string]*CommandMetricsSnapshot `json:"commands"`
	DurationCount int                                `json:"duration_count"`
}

// CommandMetricsSnapshot represents metrics for one command kind.
type CommandMetricsSnapshot struct {
	ExecutionCount    int64 `json:"execution_count"`
	ErrorCount        int64 `json:"error_count"`
	TotalDurationUs   int64 `json:"total_duration_us"`
	AverageDurationUs int64 `json:"average_duration_us"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
