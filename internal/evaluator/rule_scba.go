package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

// scbaRule owns both cylinder alert types. The apparatus' own alarm flags
// count the same as crossing the pressure thresholds. No SCBA, no alert.
func scbaRule(cfg config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	scba := next.Telemetry.SCBA
	if scba == nil {
		return []Finding{inactive(models.AlertSCBALowPressure), inactive(models.AlertSCBACritical)}
	}

	low := inactive(models.AlertSCBALowPressure)
	if scba.CylinderPressureBar < cfg.SCBAWarningBar || scba.Alarms.LowPressure {
		low = active(models.AlertSCBALowPressure, models.SeverityWarning)
	}

	crit := inactive(models.AlertSCBACritical)
	if scba.CylinderPressureBar < cfg.SCBACriticalBar || scba.Alarms.VeryLowPressure {
		crit = active(models.AlertSCBACritical, models.SeverityCritical)
	}

	return []Finding{low, crit}
}
