package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

func heartRateRule(cfg config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	if next.Telemetry.Vitals.HeartRateBPM > cfg.HeartRateMax {
		return []Finding{active(models.AlertHighHeartRate, models.SeverityWarning)}
	}
	return []Finding{inactive(models.AlertHighHeartRate)}
}
