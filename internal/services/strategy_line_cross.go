package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

func init() {
	RegisterDetection("line_cross", func(logger *logrus.Logger) DetectionStrategy {
		return &LineCrossStrategy{logger: logger}
	})
}

// LineCrossStrategy classifies rows by the sign of the difference between a
// fast column and a slow column, the usual crossover formulation. Zero
// difference counts as positive, matching the zero-cross convention.
//
// Rules: "fast", "slow" (both required).
type LineCrossStrategy struct {
	logger *logrus.Logger
}

func (s *LineCrossStrategy) Name() string { return "line_cross" }

func (s *LineCrossStrategy) Detect(frame *models.Frame, cfg models.DetectionConfig) ([]*models.Zone, error) {
	if err := requireRules(s.Name(), cfg.Rules, "fast", "slow"); err != nil {
		return nil, err
	}
	fast, ok := stringRule(cfg.Rules, "fast")
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "fast", Reason: "must be a string"}
	}
	slow, ok := stringRule(cfg.Rules, "slow")
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "slow", Reason: "must be a string"}
	}

	fastValues, ok := frame.Column(fast)
	if !ok {
		return nil, &models.DataShapeError{Strategy: s.Name(), Column: fast}
	}
	slowValues, ok := frame.Column(slow)
	if !ok {
		return nil, &models.DataShapeError{Strategy: s.Name(), Column: slow}
	}

	labels := make([]string, len(fastValues))
	for i := range fastValues {
		diff := fastValues[i] - slowValues[i]
		switch {
		case math.IsNaN(diff):
			labels[i] = ""
		case diff >= 0:
			labels[i] = LabelBull
		default:
			labels[i] = LabelBear
		}
	}

	context := models.IndicatorContext{
		PrimaryColumn:   fast,
		SecondaryColumn: slow,
		Strategy:        s.Name(),
		Rules:           map[string]any{"fast": fast, "slow": slow},
	}
	return zonesFromLabels(frame, labels, cfg, context)
}
