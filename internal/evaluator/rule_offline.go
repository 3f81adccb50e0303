package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

// tagOfflineRule reads the stale flag set by the offline sweep. Any fresh
// telemetry clears the flag and therefore resolves the alert.
func tagOfflineRule(_ config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	if next.Stale {
		return []Finding{active(models.AlertTagOffline, models.SeverityWarning)}
	}
	return []Finding{inactive(models.AlertTagOffline)}
}

func beaconOfflineRule(_ config.AlertConfig, _ *models.Beacon, next models.Beacon) []Finding {
	if next.Status == models.BeaconOffline {
		return []Finding{active(models.AlertBeaconOffline, models.SeverityWarning)}
	}
	return []Finding{inactive(models.AlertBeaconOffline)}
}
