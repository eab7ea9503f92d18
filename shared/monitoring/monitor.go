package monitoring

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status is a point-in-time view of the last runs
type Status struct {
	Healthy          bool      `json:"healthy"`
	LastRunTime      time.Time `json:"lastRunTime,omitempty"`
	LastRunSuccess   bool      `json:"lastRunSuccess"`
	LastSummary      string    `json:"lastSummary,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
	Runs             int       `json:"runs"`
	PartialFailures  int       `json:"partialFailures"`
	CriticalFailures int       `json:"criticalFailures"`
}

type Monitor struct {
	mu     sync.RWMutex
	logger *slog.Logger
	now    func() time.Time
	status Status
}

func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger.With("component", "monitor"),
		now:    time.Now,
	}
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	m.mu.Lock()
	m.status.Runs++
	m.status.LastRunSuccess = true
	m.status.LastRunTime = m.now()
	m.status.LastSummary = summary
	m.status.LastError = ""
	m.mu.Unlock()

	m.logger.Info("run completed", "summary", summary, "duration", duration)
}

// RecordPartialFailure logs the failure without changing health
func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.status.PartialFailures++
	m.mu.Unlock()

	m.logger.Warn("partial failure", "error", err, "duration", duration)
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.status.Runs++
	m.status.CriticalFailures++
	m.status.LastRunSuccess = false
	m.status.LastRunTime = m.now()
	m.status.LastError = err.Error()
	m.mu.Unlock()

	m.logger.Error("critical failure", "error", err, "duration", duration)
}

// IsHealthy is true before the first run and after a successful one
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthyLocked()
}

func (m *Monitor) healthyLocked() bool {
	if m.status.LastRunTime.IsZero() {
		return true
	}
	return m.status.LastRunSuccess
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	s.Healthy = m.healthyLocked()
	return s
}

func (m *Monitor) GetStatusSummary() string {
	s := m.Status()
	if s.LastRunTime.IsZero() {
		return "No runs yet"
	}

	if s.LastRunSuccess {
		return fmt.Sprintf("✅ Last run: %s", s.LastRunTime.Format("Jan 2 15:04"))
	}
	return fmt.Sprintf("❌ Last run failed: %s", s.LastRunTime.Format("Jan 2 15:04"))
}
