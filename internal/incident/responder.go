package incident

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// shutdownGracePeriod is how long registered shutdown callbacks get to
// flush state before the process is forced down.
const shutdownGracePeriod = 3 * time.Second

// Responder executes an incident's response actions strictly in the
// order the rule declared them. Every action first records the
// incident via the audit pipeline, so an audit trail exists even when
// a downstream side effect fails; a failing handler never prevents
// the remaining handlers for the same incident from running.
type Responder struct {
	auditLog *audit.Logger
	diag     *logging.Logger

	mu                sync.Mutex
	notifiers         []Notifier
	lockCallbacks     []func()
	disableCallbacks  []func()
	shutdownCallbacks []func()

	// exitFunc and grace are overridable in tests; the default is a
	// real os.Exit after the grace delay.
	exitFunc func(int)
	grace    time.Duration
}

// NewResponder creates a responder writing its audit trail through the
// given logger.
func NewResponder(auditLog *audit.Logger, diag *logging.Logger) *Responder {
	if diag == nil {
		diag = logging.New(false, false)
	}
	return &Responder{
		auditLog: auditLog,
		diag:     diag,
		exitFunc: os.Exit,
		grace:    shutdownGracePeriod,
	}
}

// AddNotifier registers an alert channel for ALERT escalations.
func (r *Responder) AddNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers = append(r.notifiers, n)
}

// AddLockCallback registers a host-application hook invoked by
// LOCK_APPLICATION.
func (r *Responder) AddLockCallback(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockCallbacks = append(r.lockCallbacks, cb)
}

// AddDisableCallback registers a soft-degrade hook invoked by
// DISABLE_FEATURES to suppress risky operations.
func (r *Responder) AddDisableCallback(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disableCallbacks = append(r.disableCallbacks, cb)
}

// AddShutdownCallback registers a hook invoked by EMERGENCY_SHUTDOWN
// before the process is terminated.
func (r *Responder) AddShutdownCallback(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdownCallbacks = append(r.shutdownCallbacks, cb)
}

// Respond executes the incident's declared response actions in order.
func (r *Responder) Respond(incident *Incident) {
	for _, action := range incident.ResponseActions {
		r.execute(action, incident)
	}
}

// execute runs one action. The audit record always comes first; the
// escalation side effect follows and its failure is contained here.
func (r *Responder) execute(action ResponseAction, incident *Incident) {
	r.recordAuditTrail(action, incident)

	var err error
	switch action {
	case ActionLog:
		// The audit record above is the whole action.
	case ActionAlert:
		r.notifyAll(incident)
	case ActionLockApplication:
		r.notifyAll(incident)
		err = r.invokeAll(r.callbacks(&r.lockCallbacks), "lock")
	case ActionDisableFeatures:
		err = r.invokeAll(r.callbacks(&r.disableCallbacks), "disable-features")
	case ActionEmergencyShutdown:
		r.notifyAll(incident)
		err = r.invokeAll(r.callbacks(&r.shutdownCallbacks), "shutdown")
		r.diag.Error("emergency shutdown in %s: incident %s", r.grace, incident.ID)
		time.AfterFunc(r.grace, func() { r.exitFunc(1) })
	default:
		err = fmt.Errorf("unknown response action %q", action)
	}

	if err != nil {
		recordResponseAction(action, "error")
		r.diag.Error("response action %s for incident %s: %v", action, incident.ID, err)
		return
	}
	recordResponseAction(action, "ok")
}

// recordAuditTrail writes the guaranteed audit record for one action.
func (r *Responder) recordAuditTrail(action ResponseAction, incident *Incident) {
	if r.auditLog == nil {
		return
	}
	level := audit.LevelHigh
	if incident.Severity == SeverityCritical {
		level = audit.LevelCritical
	}
	r.auditLog.LogEvent(audit.EventSecurityViolation, level,
		fmt.Sprintf("incident %s: executing response action %s", incident.ID, action),
		audit.WithDetail("incident_id", incident.ID),
		audit.WithDetail("rule_id", incident.RuleID),
		audit.WithDetail("action", string(action)),
		audit.WithDetail("severity", string(incident.Severity)),
	)
}

// notifyAll fans the alert out to every channel. A channel failure is
// logged and counted; the remaining channels still run.
func (r *Responder) notifyAll(incident *Incident) {
	r.mu.Lock()
	notifiers := make([]Notifier, len(r.notifiers))
	copy(notifiers, r.notifiers)
	r.mu.Unlock()

	for _, n := range notifiers {
		if err := r.notifyOne(n, incident); err != nil {
			recordNotification(n.Name(), "error")
			r.diag.Warn("alert channel %s failed for incident %s: %v", n.Name(), incident.ID, err)
			continue
		}
		recordNotification(n.Name(), "ok")
	}
}

func (r *Responder) notifyOne(n Notifier, incident *Incident) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("notifier panicked: %v", rec)
		}
	}()
	return n.Notify(incident)
}

// callbacks snapshots a callback list under the lock.
func (r *Responder) callbacks(list *[]func()) []func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]func(), len(*list))
	copy(out, *list)
	return out
}

// invokeAll runs every callback, containing panics so one broken hook
// cannot stop the rest.
func (r *Responder) invokeAll(callbacks []func(), kind string) error {
	var firstErr error
	for i, cb := range callbacks {
		if err := r.invokeOne(cb); err != nil {
			r.diag.Warn("%s callback %d failed: %v", kind, i, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Responder) invokeOne(cb func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panicked: %v", rec)
		}
	}()
	cb()
	return nil
}
