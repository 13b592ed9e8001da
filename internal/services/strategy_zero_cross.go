package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

const (
	LabelBull = "bull"
	LabelBear = "bear"
)

func init() {
	RegisterDetection("zero_cross", func(logger *logrus.Logger) DetectionStrategy {
		return &ZeroCrossStrategy{logger: logger}
	})
}

// ZeroCrossStrategy classifies rows by the sign of one column, with zone
// boundaries at sign changes. Zero counts as positive so a touch of the zero
// line never produces a spurious zero-length run.
//
// Rules: "column" (required), "smooth" (optional SMA window applied before
// sign extraction).
type ZeroCrossStrategy struct {
	logger *logrus.Logger
}

func (s *ZeroCrossStrategy) Name() string { return "zero_cross" }

func (s *ZeroCrossStrategy) Detect(frame *models.Frame, cfg models.DetectionConfig) ([]*models.Zone, error) {
	if err := requireRules(s.Name(), cfg.Rules, "column"); err != nil {
		return nil, err
	}
	column, ok := stringRule(cfg.Rules, "column")
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "column", Reason: "must be a string"}
	}

	values, ok := frame.Column(column)
	if !ok {
		return nil, &models.DataShapeError{Strategy: s.Name(), Column: column}
	}

	contextRules := map[string]any{"column": column}
	if window, ok := intRule(cfg.Rules, "smooth"); ok && window > 1 {
		values = smoothSMA(values, window)
		contextRules["smooth"] = window
	}

	labels := make([]string, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			labels[i] = ""
		case v >= 0:
			labels[i] = LabelBull
		default:
			labels[i] = LabelBear
		}
	}

	context := models.IndicatorContext{
		PrimaryColumn: column,
		Strategy:      s.Name(),
		Rules:         contextRules,
	}
	return zonesFromLabels(frame, labels, cfg, context)
}
