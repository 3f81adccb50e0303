package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

// sosRule raises on the explicit panic flag with no debounce.
func sosRule(_ config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	if next.Telemetry.SOSPressed {
		return []Finding{active(models.AlertSOSPressed, models.SeverityCritical)}
	}
	return []Finding{inactive(models.AlertSOSPressed)}
}
