package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantzone/zonekit/internal/models"
)

// zonesFromLabels turns a per-row label slice into zones: one zone per run
// of equal labels, empty labels skipped. Shared closing behavior for every
// strategy: the minimum-duration filter runs after classification, then the
// allowed-label filter, and every zone gets the indicator context populated.
func zonesFromLabels(frame *models.Frame, labels []string, cfg models.DetectionConfig, context models.IndicatorContext) ([]*models.Zone, error) {
	if len(labels) != frame.Len() {
		return nil, fmt.Errorf("labels length %d does not match frame length %d", len(labels), frame.Len())
	}

	minDuration := cfg.MinDuration
	if minDuration < 1 {
		minDuration = 1
	}

	var zones []*models.Zone
	start := -1
	for i := 0; i <= len(labels); i++ {
		if start >= 0 && (i == len(labels) || labels[i] != labels[start]) {
			zone, err := buildZone(frame, labels[start], start, i-1, context)
			if err != nil {
				return nil, err
			}
			if zone.Duration >= minDuration && cfg.LabelAllowed(zone.Label) {
				zones = append(zones, zone)
			}
			start = -1
		}
		if start < 0 && i < len(labels) && labels[i] != "" {
			start = i
		}
	}
	return zones, nil
}

func buildZone(frame *models.Frame, label string, startIdx, endIdx int, context models.IndicatorContext) (*models.Zone, error) {
	slice, err := frame.Slice(startIdx, endIdx)
	if err != nil {
		return nil, err
	}
	return &models.Zone{
		ID:         uuid.NewString(),
		Label:      label,
		StartIndex: startIdx,
		EndIndex:   endIdx,
		StartTime:  frame.Index[startIdx],
		EndTime:    frame.Index[endIdx],
		Duration:   endIdx - startIdx + 1,
		Slice:      slice,
		Features:   make(map[string]float64),
		Context:    context,
	}, nil
}

// requireRules verifies that every listed rule key is present, failing with
// a MissingRuleError naming the strategy and all missing keys at once.
func requireRules(strategy string, rules map[string]any, keys ...string) error {
	var missing []string
	for _, key := range keys {
		if _, ok := rules[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &models.MissingRuleError{Strategy: strategy, Keys: missing}
	}
	return nil
}

func stringRule(rules map[string]any, key string) (string, bool) {
	v, ok := rules[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func floatRule(rules map[string]any, key string) (float64, bool) {
	switch v := rules[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func intRule(rules map[string]any, key string) (int, bool) {
	switch v := rules[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func durationRule(rules map[string]any, key string) (time.Duration, bool) {
	switch v := rules[key].(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	case int:
		return time.Duration(v), true
	case int64:
		return time.Duration(v), true
	default:
		return 0, false
	}
}

// smoothSMA applies a simple moving average of the given window, padding the
// warm-up rows with the raw values so the output length matches the input.
func smoothSMA(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		return values
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = v
		}
	}
	return out
}
