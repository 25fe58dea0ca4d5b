package incident

import (
	"fmt"
	"sync"
	"time"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// DefaultRecentEventCount bounds how many events each detection cycle
// pulls back from the audit log's system of record.
const DefaultRecentEventCount = 500

// Manager owns the in-memory incident table, a detector and a
// responder. The table is the only structure here touched by more than
// one goroutine (periodic detection vs. operator calls) and sits under
// one coarse lock.
type Manager struct {
	detector  *Detector
	responder *Responder
	auditLog  *audit.Logger
	diag      *logging.Logger
	store     *ReportStore

	recentCount int

	mu        sync.RWMutex
	incidents map[string]*Incident

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	stopped chan struct{}
}

// ManagerOptions configures a Manager. Store is optional; without it
// incidents live only in memory.
type ManagerOptions struct {
	Detector    *Detector
	Responder   *Responder
	AuditLog    *audit.Logger
	Diag        *logging.Logger
	Store       *ReportStore
	RecentCount int
}

// NewManager composes the incident subsystem.
func NewManager(opts ManagerOptions) *Manager {
	diag := opts.Diag
	if diag == nil {
		diag = logging.New(false, false)
	}
	recentCount := opts.RecentCount
	if recentCount <= 0 {
		recentCount = DefaultRecentEventCount
	}
	return &Manager{
		detector:    opts.Detector,
		responder:   opts.Responder,
		auditLog:    opts.AuditLog,
		diag:        diag,
		store:       opts.Store,
		recentCount: recentCount,
		incidents:   make(map[string]*Incident),
	}
}

// Responder exposes the responder for host-application hook
// registration (lock, disable, shutdown callbacks, alert channels).
func (m *Manager) Responder() *Responder { return m.responder }

// Detector exposes the detector for rule inspection and the per-rule
// enabled flag.
func (m *Manager) Detector() *Detector { return m.detector }

// StartMonitoring spawns the periodic detection loop. Idempotent while
// running.
func (m *Manager) StartMonitoring(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitoring interval must be positive, got %s", interval)
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	m.stop = make(chan struct{})
	m.stopped = make(chan struct{})

	go m.monitorLoop(interval, m.stop, m.stopped)
	m.diag.Info("incident monitoring started (interval %s)", interval)
	return nil
}

// StopMonitoring signals the loop and joins it within the timeout,
// proceeding regardless afterwards so the caller is never hung. An
// in-progress detection cycle always completes.
func (m *Manager) StopMonitoring(timeout time.Duration) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	close(m.stop)

	select {
	case <-m.stopped:
		m.diag.Info("incident monitoring stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("monitoring loop did not stop within %s", timeout)
	}
}

// monitorLoop drives one detection cycle per tick until stopped.
func (m *Manager) monitorLoop(interval time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.runDetectionCycle()
		}
	}
}

// runDetectionCycle pulls the recent-event window and feeds the
// detector; each new incident is stored, responded to and moved to
// investigating.
func (m *Manager) runDetectionCycle() {
	events, err := m.auditLog.RecentEvents(m.recentCount, nil, audit.LevelLow)
	if err != nil {
		m.diag.Warn("detection cycle: %v", err)
		return
	}

	for _, incident := range m.detector.Check(events) {
		m.HandleIncident(incident)
	}
}

// HandleIncident takes ownership of a detected incident: it enters the
// table, the responder executes its actions, and its status becomes
// investigating.
func (m *Manager) HandleIncident(incident *Incident) {
	m.mu.Lock()
	m.incidents[incident.ID] = incident
	m.mu.Unlock()

	if m.responder != nil {
		m.responder.Respond(incident)
	}

	m.mu.Lock()
	incident.Status = StatusInvestigating
	m.mu.Unlock()

	m.persist(incident)
}

// ResolveIncident terminally closes an investigating incident with
// operator notes.
func (m *Manager) ResolveIncident(id, notes string) error {
	return m.closeIncident(id, StatusResolved, notes)
}

// MarkFalsePositive terminally dismisses an investigating incident.
func (m *Manager) MarkFalsePositive(id string) error {
	return m.closeIncident(id, StatusFalsePositive, "marked as false positive")
}

func (m *Manager) closeIncident(id string, status Status, notes string) error {
	m.mu.Lock()
	incident, ok := m.incidents[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", vwerrors.ErrUnknownIncident, id)
	}
	if incident.Status.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", vwerrors.ErrIncidentClosed, id, incident.Status)
	}

	incident.Close(status, notes)
	snapshot := *incident
	m.mu.Unlock()

	if m.auditLog != nil {
		m.auditLog.LogEvent(audit.EventSuspiciousActivity, audit.LevelLow,
			fmt.Sprintf("incident %s closed as %s", id, status),
			audit.WithDetail("incident_id", id),
			audit.WithDetail("status", string(status)),
		)
	}
	m.persist(&snapshot)
	return nil
}

// GetIncidents returns copies of the stored incidents, optionally
// filtered by status and severity. Safe from any goroutine.
func (m *Manager) GetIncidents(status *Status, severity *Severity) []Incident {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Incident
	for _, incident := range m.incidents {
		if status != nil && incident.Status != *status {
			continue
		}
		if severity != nil && incident.Severity != *severity {
			continue
		}
		out = append(out, *incident)
	}
	return out
}

// Summary aggregates the incident table for dashboards.
type Summary struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"by_status"`
	BySeverity map[Severity]int `json:"by_severity"`
	Last24h    int              `json:"last_24h"`
}

// GetIncidentSummary returns counts by status and severity plus a
// 24-hour recent count. Read-only; safe from any goroutine.
func (m *Manager) GetIncidentSummary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{
		ByStatus:   make(map[Status]int),
		BySeverity: make(map[Severity]int),
	}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	for _, incident := range m.incidents {
		summary.Total++
		summary.ByStatus[incident.Status]++
		summary.BySeverity[incident.Severity]++
		if incident.DetectedAt.After(cutoff) {
			summary.Last24h++
		}
	}
	return summary
}

// persist writes through to the report store when one is configured.
func (m *Manager) persist(incident *Incident) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(incident); err != nil {
		m.diag.Warn("failed to persist incident %s: %v", incident.ID, err)
	}
}
