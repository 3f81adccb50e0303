// Package evaluator is the alert engine.
//
// Rules are pure: given the previous and current state of one entity they
// report, for every alert type they own, whether the condition holds and at
// what severity. The Engine reconciles those findings with its table of open
// alerts and produces the transitions to publish.
package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

// Finding is one rule's verdict for one alert type.
type Finding struct {
	Type     models.AlertType
	Severity models.Severity
	Active   bool
}

func active(t models.AlertType, s models.Severity) Finding {
	return Finding{Type: t, Severity: s, Active: true}
}

func inactive(t models.AlertType) Finding {
	return Finding{Type: t}
}

type tagRule func(cfg config.AlertConfig, prev *models.TagState, next models.TagState) []Finding

type beaconRule func(cfg config.AlertConfig, prev *models.Beacon, next models.Beacon) []Finding

var tagRules = []tagRule{
	sosRule,
	manDownRule,
	heartRateRule,
	tagBatteryRule,
	scbaRule,
	tagOfflineRule,
	environmentRule,
}

var beaconRules = []beaconRule{
	beaconBatteryRule,
	beaconOfflineRule,
}

// EvaluateTag runs every tag rule against a telemetry change.
func EvaluateTag(cfg config.AlertConfig, prev *models.TagState, next models.TagState) []Finding {
	var out []Finding
	for _, rule := range tagRules {
		out = append(out, rule(cfg, prev, next)...)
	}
	return out
}

// EvaluateBeacon runs every beacon rule against a beacon change.
func EvaluateBeacon(cfg config.AlertConfig, prev *models.Beacon, next models.Beacon) []Finding {
	var out []Finding
	for _, rule := range beaconRules {
		out = append(out, rule(cfg, prev, next)...)
	}
	return out
}

// above grades value against two ascending thresholds.
func above(t models.AlertType, value, warning, critical float64) Finding {
	switch {
	case value >= critical:
		return active(t, models.SeverityCritical)
	case value >= warning:
		return active(t, models.SeverityWarning)
	}
	return inactive(t)
}

// below grades value against two descending thresholds.
func below(t models.AlertType, value, warning, critical float64) Finding {
	switch {
	case value < critical:
		return active(t, models.SeverityCritical)
	case value < warning:
		return active(t, models.SeverityWarning)
	}
	return inactive(t)
}
