package evaluator

import (
	"math/rand"
	"testing"
	"time"

	"firewatch/internal/models"
	"firewatch/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine() *Engine {
	return NewEngine(testThresholds(), zap.NewNop())
}

func kinds(ts []Transition) []TransitionKind {
	out := make([]TransitionKind, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Kind)
	}
	return out
}

func TestEngine_RepeatTriggerUpdatesInPlace(t *testing.T) {
	e := newTestEngine()
	s := healthyTag("FF-1")
	s.Telemetry.Vitals.HeartRateBPM = 190

	first := e.EvaluateTag(nil, s, t0)
	require.Len(t, first, 1)
	assert.Equal(t, TransitionRaised, first[0].Kind)
	assert.Equal(t, models.AlertHighHeartRate, first[0].Alert.AlertType)
	require.NotNil(t, first[0].Alert.Firefighter)
	assert.Equal(t, "FF-1", first[0].Alert.Firefighter.ID)

	second := e.EvaluateTag(&s, s, t0.Add(time.Second))
	assert.Empty(t, second)

	open := e.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, first[0].Alert.ID, open[0].ID)
	assert.Equal(t, t0.Add(time.Second), open[0].Timestamp)
}

func TestEngine_EscalationKeepsAlertID(t *testing.T) {
	e := newTestEngine()
	s := healthyTag("FF-1")
	s.Telemetry.Device.BatteryPercent = 15

	raised := e.EvaluateTag(nil, s, t0)
	require.Len(t, raised, 1)
	assert.Equal(t, models.SeverityWarning, raised[0].Alert.Severity)

	s.Telemetry.Device.BatteryPercent = 5
	escalated := e.EvaluateTag(&s, s, t0.Add(time.Second))
	require.Len(t, escalated, 1)
	assert.Equal(t, TransitionUpdated, escalated[0].Kind)
	assert.Equal(t, raised[0].Alert.ID, escalated[0].Alert.ID)
	assert.Equal(t, models.SeverityCritical, escalated[0].Alert.Severity)
	assert.Len(t, e.OpenAlerts(), 1)
}

func TestEngine_AutoResolveExactlyOnce(t *testing.T) {
	e := newTestEngine()
	hot := healthyTag("FF-1")
	hot.Telemetry.Vitals.HeartRateBPM = 200
	raised := e.EvaluateTag(nil, hot, t0)
	require.Len(t, raised, 1)

	calm := healthyTag("FF-1")
	calm.Telemetry.Vitals.HeartRateBPM = 120
	resolved := e.EvaluateTag(&hot, calm, t0.Add(time.Second))
	require.Len(t, resolved, 1)
	assert.Equal(t, TransitionResolved, resolved[0].Kind)
	assert.Equal(t, raised[0].Alert.ID, resolved[0].Alert.ID)
	assert.True(t, resolved[0].Alert.Resolved)
	assert.Equal(t, models.ResolutionAuto, resolved[0].Alert.Resolution)

	again := e.EvaluateTag(&calm, calm, t0.Add(2*time.Second))
	assert.Empty(t, again)
	assert.Empty(t, e.OpenAlerts())
}

func TestEngine_AcknowledgeLatchesUntilConditionClears(t *testing.T) {
	e := newTestEngine()
	fallen := healthyTag("FF-1")
	fallen.Telemetry.Vitals.MotionState = models.MotionFallen

	raised := e.EvaluateTag(nil, fallen, t0)
	require.Equal(t, []TransitionKind{TransitionRaised}, kinds(raised))
	id := raised[0].Alert.ID

	tr, changed, err := e.Acknowledge(id, "IC Nowak", t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, tr.Alert.Resolved)
	assert.Equal(t, models.ResolutionAcknowledged, tr.Alert.Resolution)
	assert.Equal(t, "IC Nowak", tr.Alert.AcknowledgedBy)
	require.NotNil(t, tr.Alert.AcknowledgedAt)

	assert.Empty(t, e.EvaluateTag(&fallen, fallen, t0.Add(2*time.Second)), "still fallen: latched")

	up := healthyTag("FF-1")
	assert.Empty(t, e.EvaluateTag(&fallen, up, t0.Add(3*time.Second)))

	again := e.EvaluateTag(&up, fallen, t0.Add(4*time.Second))
	require.Equal(t, []TransitionKind{TransitionRaised}, kinds(again))
	assert.NotEqual(t, id, again[0].Alert.ID)
}

func TestEngine_AcknowledgeIsIdempotent(t *testing.T) {
	e := newTestEngine()
	s := healthyTag("FF-1")
	s.Telemetry.SOSPressed = true
	raised := e.EvaluateTag(nil, s, t0)
	require.Len(t, raised, 1)
	id := raised[0].Alert.ID

	_, changed, err := e.Acknowledge(id, "op-1", t0)
	require.NoError(t, err)
	assert.True(t, changed)

	tr, changed, err := e.Acknowledge(id, "op-2", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "op-1", tr.Alert.AcknowledgedBy)
}

func TestEngine_AcknowledgeAutoResolvedAlertIsNoop(t *testing.T) {
	e := newTestEngine()
	hot := healthyTag("FF-1")
	hot.Telemetry.Vitals.HeartRateBPM = 200
	raised := e.EvaluateTag(nil, hot, t0)
	calm := healthyTag("FF-1")
	e.EvaluateTag(&hot, calm, t0.Add(time.Second))

	tr, changed, err := e.Acknowledge(raised[0].Alert.ID, "op", t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ResolutionAuto, tr.Alert.Resolution)
	assert.Empty(t, tr.Alert.AcknowledgedBy)
}

func TestEngine_AcknowledgeUnknown(t *testing.T) {
	e := newTestEngine()
	_, _, err := e.Acknowledge("nope", "op", t0)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestEngine_BeaconAlerts(t *testing.T) {
	e := newTestEngine()
	b := models.Beacon{ID: "B1", Status: models.BeaconOffline, BatteryPercent: models.Float64(80), Position: models.Position{X: 1}}

	raised := e.EvaluateBeacon(nil, b, t0)
	require.Len(t, raised, 1)
	assert.Equal(t, models.AlertBeaconOffline, raised[0].Alert.AlertType)
	assert.Equal(t, "B1", raised[0].Alert.BeaconID)
	assert.Nil(t, raised[0].Alert.Firefighter)

	subject, ok := e.SubjectOf(raised[0].Alert.ID)
	require.True(t, ok)
	assert.Equal(t, "beacon:B1", subject)

	b.Status = models.BeaconActive
	resolved := e.EvaluateBeacon(nil, b, t0.Add(time.Second))
	require.Len(t, resolved, 1)
	assert.Equal(t, TransitionResolved, resolved[0].Kind)
}

func TestEngine_SameTypeDifferentSubjectsAreIndependent(t *testing.T) {
	e := newTestEngine()
	a := healthyTag("FF-1")
	a.Telemetry.SOSPressed = true
	b := healthyTag("FF-2")
	b.Telemetry.SOSPressed = true

	e.EvaluateTag(nil, a, t0)
	e.EvaluateTag(nil, b, t0)
	assert.Len(t, e.OpenAlerts(), 2)
}

func TestEngine_AtMostOneOpenPerPair(t *testing.T) {
	e := newTestEngine()
	rng := rand.New(rand.NewSource(42))
	ids := []string{"FF-1", "FF-2", "FF-3"}
	prev := map[string]*models.TagState{}

	for i := 0; i < 2000; i++ {
		id := ids[rng.Intn(len(ids))]
		s := healthyTag(id)
		s.Telemetry.Vitals.HeartRateBPM = float64(150 + rng.Intn(60))
		s.Telemetry.Device.BatteryPercent = float64(rng.Intn(40))
		s.Telemetry.SOSPressed = rng.Intn(5) == 0
		if rng.Intn(4) == 0 {
			s.Telemetry.Vitals.MotionState = models.MotionFallen
		}
		at := t0.Add(time.Duration(i) * time.Second)
		e.EvaluateTag(prev[id], s, at)
		prev[id] = &s

		if rng.Intn(10) == 0 {
			if open := e.OpenAlerts(); len(open) > 0 {
				_, _, err := e.Acknowledge(open[rng.Intn(len(open))].ID, "op", at)
				require.NoError(t, err)
			}
		}

		seen := map[alertKey]bool{}
		for _, a := range e.OpenAlerts() {
			k := alertKey{subject: a.Subject, alertType: a.AlertType}
			require.False(t, seen[k], "duplicate open alert for %v", k)
			seen[k] = true
		}
	}
}

func TestEngine_AlertsIncludeResolved(t *testing.T) {
	e := newTestEngine()
	hot := healthyTag("FF-1")
	hot.Telemetry.Vitals.HeartRateBPM = 200
	e.EvaluateTag(nil, hot, t0)
	e.EvaluateTag(&hot, healthyTag("FF-1"), t0.Add(time.Second))

	assert.Empty(t, e.Alerts(false))
	all := e.Alerts(true)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
}

func TestEngine_AcknowledgeAgedOutAlertIsNoop(t *testing.T) {
	e := newTestEngine()
	hot := healthyTag("FF-0")
	hot.Telemetry.SOSPressed = true
	first := e.EvaluateTag(nil, hot, t0)
	require.Len(t, first, 1)
	id := first[0].Alert.ID
	_, _, err := e.Acknowledge(id, "op", t0)
	require.NoError(t, err)

	// Push the first alert out of the resolved window.
	for i := 0; i < resolvedRetention; i++ {
		ff := healthyTag("FF-X")
		ff.Telemetry.SOSPressed = true
		raised := e.EvaluateTag(nil, ff, t0)
		require.Len(t, raised, 1)
		calm := healthyTag("FF-X")
		require.Len(t, e.EvaluateTag(&ff, calm, t0), 1)
	}
	_, known := e.Alert(id)
	require.False(t, known)
	assert.True(t, e.Expired(id))

	tr, changed, err := e.Acknowledge(id, "op-2", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, id, tr.Alert.ID)
	assert.True(t, tr.Alert.Resolved)
}

func TestEngine_ResolveSubject(t *testing.T) {
	e := newTestEngine()
	b := models.Beacon{ID: "B1", Status: models.BeaconOffline, BatteryPercent: models.Float64(5)}
	require.Len(t, e.EvaluateBeacon(nil, b, t0), 2)
	other := models.Beacon{ID: "B2", Status: models.BeaconOffline}
	require.Len(t, e.EvaluateBeacon(nil, other, t0), 1)

	resolved := e.ResolveSubject(registry.BeaconKey("B1"), t0.Add(time.Second))
	require.Len(t, resolved, 2)
	for _, tr := range resolved {
		assert.Equal(t, TransitionResolved, tr.Kind)
		assert.Equal(t, "B1", tr.Alert.BeaconID)
		assert.Equal(t, models.ResolutionAuto, tr.Alert.Resolution)
	}
	open := e.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, "B2", open[0].BeaconID)
	assert.Empty(t, e.ResolveSubject(registry.BeaconKey("B1"), t0.Add(2*time.Second)))
}
