package evaluator

import (
	"time"

	"firewatch/internal/config"
	"firewatch/internal/models"
)

// manDownRule fires on a fall, or on a stationary run at least
// ManDownStationary long. The tag-reported duration takes precedence over the
// run tracked by the registry.
func manDownRule(cfg config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	v := next.Telemetry.Vitals
	switch v.MotionState {
	case models.MotionFallen:
		return []Finding{active(models.AlertManDown, models.SeverityCritical)}
	case models.MotionStationary:
		if stationaryFor(next) >= cfg.ManDownStationary {
			return []Finding{active(models.AlertManDown, models.SeverityCritical)}
		}
	}
	return []Finding{inactive(models.AlertManDown)}
}

func stationaryFor(s models.TagState) time.Duration {
	if d := s.Telemetry.Vitals.StationaryDurationS; d != nil {
		return time.Duration(*d * float64(time.Second))
	}
	if s.StationarySince == nil {
		return 0
	}
	return s.Telemetry.Timestamp.Sub(*s.StationarySince)
}
