package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

const (
	LabelOverbought = "overbought"
	LabelBetween    = "between"
	LabelOversold   = "oversold"
)

func init() {
	RegisterDetection("threshold", func(logger *logrus.Logger) DetectionStrategy {
		return &ThresholdStrategy{logger: logger}
	})
}

// ThresholdStrategy classifies rows into exactly three bands against two
// caller-supplied thresholds: above the upper bound, between, or below the
// lower bound. Values exactly equal to a bound belong to the between band.
//
// Rules: "column", "upper", "lower" (all required, upper > lower).
type ThresholdStrategy struct {
	logger *logrus.Logger
}

func (s *ThresholdStrategy) Name() string { return "threshold" }

func (s *ThresholdStrategy) Detect(frame *models.Frame, cfg models.DetectionConfig) ([]*models.Zone, error) {
	if err := requireRules(s.Name(), cfg.Rules, "column", "upper", "lower"); err != nil {
		return nil, err
	}
	column, ok := stringRule(cfg.Rules, "column")
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "column", Reason: "must be a string"}
	}
	upper, ok := floatRule(cfg.Rules, "upper")
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "upper", Reason: "must be numeric"}
	}
	lower, ok := floatRule(cfg.Rules, "lower")
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "lower", Reason: "must be numeric"}
	}
	if upper <= lower {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "upper", Reason: "must be greater than lower"}
	}

	values, ok := frame.Column(column)
	if !ok {
		return nil, &models.DataShapeError{Strategy: s.Name(), Column: column}
	}

	labels := make([]string, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			labels[i] = ""
		case v > upper:
			labels[i] = LabelOverbought
		case v < lower:
			labels[i] = LabelOversold
		default:
			labels[i] = LabelBetween
		}
	}

	context := models.IndicatorContext{
		PrimaryColumn: column,
		Strategy:      s.Name(),
		Rules:         map[string]any{"column": column, "upper": upper, "lower": lower},
	}
	return zonesFromLabels(frame, labels, cfg, context)
}
