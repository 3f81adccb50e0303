package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

// Battery alerts escalate in place: the same open alert moves from warning to
// critical rather than a second alert being raised.

func tagBatteryRule(cfg config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	return []Finding{below(models.AlertLowBattery, next.Telemetry.Device.BatteryPercent, cfg.BatteryWarning, cfg.BatteryCritical)}
}

// A beacon that never reported a battery level has nothing to alert on.
func beaconBatteryRule(cfg config.AlertConfig, _ *models.Beacon, next models.Beacon) []Finding {
	if next.BatteryPercent == nil {
		return []Finding{inactive(models.AlertLowBattery)}
	}
	return []Finding{below(models.AlertLowBattery, *next.BatteryPercent, cfg.BatteryWarning, cfg.BatteryCritical)}
}
