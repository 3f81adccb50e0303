package evaluator

import (
	"errors"
	"sort"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/models"
	"firewatch/internal/registry"

	"go.uber.org/zap"
)

// ErrAlertNotFound is returned when an alert id was never issued or aged
// out of both the resolved and expired windows.
var ErrAlertNotFound = errors.New("alert not found")

// resolvedRetention bounds how many closed alerts stay addressable by id.
// Ids evicted past it are remembered, without their content, up to
// expiredRetention so a late acknowledgement is still a no-op. Older ids are
// reported as not found.
const (
	resolvedRetention = 1000
	expiredRetention  = 50000
)

type TransitionKind string

const (
	TransitionRaised   TransitionKind = "raised"
	TransitionUpdated  TransitionKind = "updated"
	TransitionResolved TransitionKind = "resolved"
)

// Transition is one alert state change to publish.
type Transition struct {
	Kind  TransitionKind
	Alert models.Alert
}

type alertKey struct {
	subject   string
	alertType models.AlertType
}

// Engine holds the alert table. At most one open alert exists per
// (subject, alert type). Callers serialize calls for the same subject by
// holding the registry entity lock.
type Engine struct {
	cfg    config.AlertConfig
	logger *zap.Logger

	mu            sync.Mutex
	open          map[alertKey]*models.Alert
	byID          map[string]*models.Alert
	resolvedOrder []string
	expired       map[string]struct{}
	expiredOrder  []string
	// latched conditions were acknowledged while still true and stay quiet
	// until a later evaluation sees them clear.
	latched map[alertKey]struct{}
}

func NewEngine(cfg config.AlertConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		open:    make(map[alertKey]*models.Alert),
		byID:    make(map[string]*models.Alert),
		expired: make(map[string]struct{}),
		latched: make(map[alertKey]struct{}),
	}
}

func (e *Engine) Config() config.AlertConfig { return e.cfg }

// EvaluateTag evaluates a tag change and applies the resulting transitions.
// at stamps raised and updated alerts.
func (e *Engine) EvaluateTag(prev *models.TagState, next models.TagState, at time.Time) []Transition {
	ff := next.Telemetry.Firefighter
	subject := registry.TagKey(ff.ID)
	findings := EvaluateTag(e.cfg, prev, next)
	return e.reconcile(NewTagAlertBuilder(subject, ff, next.Telemetry.Position), subject, findings, at)
}

// EvaluateBeacon evaluates a beacon change and applies the resulting transitions.
func (e *Engine) EvaluateBeacon(prev *models.Beacon, next models.Beacon, at time.Time) []Transition {
	subject := registry.BeaconKey(next.ID)
	findings := EvaluateBeacon(e.cfg, prev, next)
	return e.reconcile(NewBeaconAlertBuilder(subject, next.ID, next.Position), subject, findings, at)
}

func (e *Engine) reconcile(b *AlertBuilder, subject string, findings []Finding, at time.Time) []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Transition
	for _, f := range findings {
		k := alertKey{subject: subject, alertType: f.Type}
		cur := e.open[k]

		if !f.Active {
			delete(e.latched, k)
			if cur != nil {
				e.resolveLocked(k, cur, models.ResolutionAuto, at)
				out = append(out, Transition{Kind: TransitionResolved, Alert: cur.Clone()})
			}
			continue
		}

		if cur == nil {
			if _, quiet := e.latched[k]; quiet {
				continue
			}
			a := b.Build(f.Type, f.Severity, at)
			e.open[k] = &a
			e.byID[a.ID] = &a
			e.logger.Info("Alert raised",
				zap.String("alert_id", a.ID),
				zap.String("alert_type", string(a.AlertType)),
				zap.String("severity", string(a.Severity)),
				zap.String("subject", subject),
			)
			out = append(out, Transition{Kind: TransitionRaised, Alert: a.Clone()})
			continue
		}

		cur.Timestamp = at
		if cur.Severity != f.Severity {
			e.logger.Info("Alert severity changed",
				zap.String("alert_id", cur.ID),
				zap.String("alert_type", string(cur.AlertType)),
				zap.String("from", string(cur.Severity)),
				zap.String("to", string(f.Severity)),
			)
			cur.Severity = f.Severity
			out = append(out, Transition{Kind: TransitionUpdated, Alert: cur.Clone()})
		}
	}
	return out
}

// Acknowledge resolves an open alert on operator request. Acknowledging an
// alert that is already resolved changes nothing and reports false.
func (e *Engine) Acknowledge(alertID, by string, at time.Time) (Transition, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.byID[alertID]
	if !ok {
		if _, gone := e.expired[alertID]; gone {
			return Transition{Kind: TransitionResolved, Alert: models.Alert{ID: alertID, Resolved: true}}, false, nil
		}
		return Transition{}, false, ErrAlertNotFound
	}
	if a.Resolved {
		return Transition{Kind: TransitionResolved, Alert: a.Clone()}, false, nil
	}

	k := alertKey{subject: a.Subject, alertType: a.AlertType}
	ackAt := at
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &ackAt
	e.resolveLocked(k, a, models.ResolutionAcknowledged, at)
	e.latched[k] = struct{}{}

	return Transition{Kind: TransitionResolved, Alert: a.Clone()}, true, nil
}

func (e *Engine) resolveLocked(k alertKey, a *models.Alert, how models.Resolution, at time.Time) {
	resolvedAt := at
	a.Resolved = true
	a.Resolution = how
	a.ResolvedAt = &resolvedAt
	delete(e.open, k)

	e.resolvedOrder = append(e.resolvedOrder, a.ID)
	if len(e.resolvedOrder) > resolvedRetention {
		evict := e.resolvedOrder[0]
		e.resolvedOrder = e.resolvedOrder[1:]
		delete(e.byID, evict)
		e.expireLocked(evict)
	}

	e.logger.Info("Alert resolved",
		zap.String("alert_id", a.ID),
		zap.String("alert_type", string(a.AlertType)),
		zap.String("resolution", string(how)),
		zap.String("acknowledged_by", a.AcknowledgedBy),
	)
}

func (e *Engine) expireLocked(id string) {
	e.expired[id] = struct{}{}
	e.expiredOrder = append(e.expiredOrder, id)
	if len(e.expiredOrder) > expiredRetention {
		delete(e.expired, e.expiredOrder[0])
		e.expiredOrder = e.expiredOrder[1:]
	}
}

// Expired reports whether alertID was resolved long enough ago that only
// its id is still known.
func (e *Engine) Expired(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.expired[alertID]
	return ok
}

// ResolveSubject auto-resolves every open alert of a subject that has left
// the registry and forgets its latches.
func (e *Engine) ResolveSubject(subject string, at time.Time) []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Transition
	for k, a := range e.open {
		if k.subject != subject {
			continue
		}
		e.resolveLocked(k, a, models.ResolutionAuto, at)
		out = append(out, Transition{Kind: TransitionResolved, Alert: a.Clone()})
	}
	for k := range e.latched {
		if k.subject == subject {
			delete(e.latched, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alert.AlertType < out[j].Alert.AlertType })
	return out
}

// SubjectOf returns the entity key an alert is scoped to.
func (e *Engine) SubjectOf(alertID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.byID[alertID]
	if !ok {
		return "", false
	}
	return a.Subject, true
}

func (e *Engine) Alert(alertID string) (models.Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.byID[alertID]
	if !ok {
		return models.Alert{}, false
	}
	return a.Clone(), true
}

// OpenAlerts returns unresolved alerts, oldest first.
func (e *Engine) OpenAlerts() []models.Alert {
	e.mu.Lock()
	out := make([]models.Alert, 0, len(e.open))
	for _, a := range e.open {
		out = append(out, a.Clone())
	}
	e.mu.Unlock()
	sortAlerts(out)
	return out
}

// Alerts returns open alerts and, when includeResolved is set, the retained
// resolved ones as well.
func (e *Engine) Alerts(includeResolved bool) []models.Alert {
	if !includeResolved {
		return e.OpenAlerts()
	}
	e.mu.Lock()
	out := make([]models.Alert, 0, len(e.byID))
	for _, a := range e.byID {
		out = append(out, a.Clone())
	}
	e.mu.Unlock()
	sortAlerts(out)
	return out
}

func sortAlerts(alerts []models.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Timestamp.Before(alerts[j].Timestamp)
		}
		return alerts[i].ID < alerts[j].ID
	})
}
