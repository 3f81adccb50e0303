package evaluator

import (
	"firewatch/internal/config"
	"firewatch/internal/models"
)

// environmentRule grades each gas and temperature reading that is present.
// A sensor missing from the update counts as a cleared condition.
func environmentRule(cfg config.AlertConfig, _ *models.TagState, next models.TagState) []Finding {
	env := next.Telemetry.Environment
	if env == nil {
		env = &models.Environment{}
	}

	out := make([]Finding, 0, 4)

	if env.TemperatureC != nil {
		out = append(out, above(models.AlertHighTemperature, *env.TemperatureC, cfg.TemperatureWarningC, cfg.TemperatureCriticalC))
	} else {
		out = append(out, inactive(models.AlertHighTemperature))
	}

	if env.COPPM != nil {
		out = append(out, above(models.AlertHighCO, *env.COPPM, cfg.COWarningPPM, cfg.COCriticalPPM))
	} else {
		out = append(out, inactive(models.AlertHighCO))
	}

	if env.O2Percent != nil {
		out = append(out, below(models.AlertLowOxygen, *env.O2Percent, cfg.O2WarningPercent, cfg.O2CriticalPercent))
	} else {
		out = append(out, inactive(models.AlertLowOxygen))
	}

	if env.LELPercent != nil {
		out = append(out, above(models.AlertExplosiveGas, *env.LELPercent, cfg.LELWarningPercent, cfg.LELCriticalPercent))
	} else {
		out = append(out, inactive(models.AlertExplosiveGas))
	}

	return out
}
