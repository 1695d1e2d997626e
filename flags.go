package main

import (
	"fmt"
	"strings"

	"github.com/mrcode/pen-tracker/internal/forecast"
	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/validation"
)

// splitNumbers splits a comma-separated list of minParts to maxParts values
func splitNumbers(flagName, raw string, minParts, maxParts int) ([]string, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < minParts || len(parts) > maxParts {
		return nil, fmt.Errorf("-%s: expected %d to %d comma-separated values, got %q", flagName, minParts, maxParts, raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// parseGoal reads "target[,start]"
func parseGoal(raw string) (models.GoalSettings, error) {
	parts, err := splitNumbers("goal", raw, 1, 2)
	if err != nil {
		return models.GoalSettings{}, err
	}

	var goal models.GoalSettings
	if goal.TargetWeight, err = validation.ParseNumber("target", parts[0]); err != nil {
		return models.GoalSettings{}, err
	}
	if len(parts) == 2 && parts[1] != "" {
		if goal.StartWeight, err = validation.ParseNumber("start", parts[1]); err != nil {
			return models.GoalSettings{}, err
		}
	}
	return goal, nil
}

// parseDurability reads "strength,dose[,cost]"
func parseDurability(raw string) (strength, dose float64, cost string, err error) {
	parts, err := splitNumbers("durability", raw, 2, 3)
	if err != nil {
		return 0, 0, "", err
	}
	if strength, err = validation.ParseNumber("penType", parts[0]); err != nil {
		return 0, 0, "", err
	}
	if dose, err = validation.ParseNumber("dosage", parts[1]); err != nil {
		return 0, 0, "", err
	}
	if len(parts) == 3 {
		cost = parts[2]
	}
	return strength, dose, cost, nil
}

func parseWindow(raw string) (string, error) {
	switch w := strings.ToLower(strings.TrimSpace(raw)); w {
	case forecast.WindowAll, forecast.WindowQuarter, forecast.WindowMonth:
		return w, nil
	default:
		return "", fmt.Errorf("-window: unknown chart window %q", raw)
	}
}
