package services

import (
	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

func init() {
	RegisterDetection("preloaded", func(logger *logrus.Logger) DetectionStrategy {
		return &PreloadedStrategy{logger: logger}
	})
}

// PreloadedStrategy imports zones described by an external tabular source
// and merges them onto the series by nearest-time match. An imported zone
// with no data inside the tolerance is dropped with a warning, not an error.
// When two imported zones cover overlapping rows the last one wins.
//
// Rules: "zones" ([]models.ExternalZone, required), "tolerance" (optional
// duration; defaults to the series bar spacing).
type PreloadedStrategy struct {
	logger *logrus.Logger
}

func (s *PreloadedStrategy) Name() string { return "preloaded" }

func (s *PreloadedStrategy) Detect(frame *models.Frame, cfg models.DetectionConfig) ([]*models.Zone, error) {
	if err := requireRules(s.Name(), cfg.Rules, "zones"); err != nil {
		return nil, err
	}
	external, ok := cfg.Rules["zones"].([]models.ExternalZone)
	if !ok {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "zones", Reason: "must be []models.ExternalZone"}
	}

	tolerance, ok := durationRule(cfg.Rules, "tolerance")
	if !ok || tolerance <= 0 {
		tolerance = frame.BarSpacing()
	}

	labels := make([]string, frame.Len())
	for _, ext := range external {
		startIdx, startDist := frame.NearestIndex(ext.StartTime)
		endIdx, endDist := frame.NearestIndex(ext.EndTime)
		if startIdx < 0 || endIdx < 0 || startIdx > endIdx || startDist > tolerance || endDist > tolerance {
			s.logger.WithFields(logrus.Fields{
				"zone_id": ext.ID,
				"label":   ext.Label,
				"start":   ext.StartTime,
				"end":     ext.EndTime,
			}).Warn("Imported zone has no overlapping data within tolerance, dropping")
			continue
		}
		for i := startIdx; i <= endIdx; i++ {
			labels[i] = ext.Label
		}
	}

	context := models.IndicatorContext{
		Strategy: s.Name(),
		Rules:    map[string]any{"tolerance": tolerance.String(), "imported": len(external)},
	}
	return zonesFromLabels(frame, labels, cfg, context)
}
