package services

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

const (
	LabelMatch   = "match"
	LabelNoMatch = "nomatch"
)

func init() {
	RegisterDetection("combined", func(logger *logrus.Logger) DetectionStrategy {
		return &CombinedStrategy{logger: logger}
	})
}

// CombinedStrategy evaluates an ordered list of boolean row predicates,
// combines them with AND or OR, and maps each combined result to a label.
// Zone boundaries occur at predicate-result transitions.
//
// Rules: "predicates" ([]models.Predicate, required), "logic" ("and"/"or",
// default "and"), "labels" (map[bool]string, defaults match/nomatch).
type CombinedStrategy struct {
	logger *logrus.Logger
}

func (s *CombinedStrategy) Name() string { return "combined" }

func (s *CombinedStrategy) Detect(frame *models.Frame, cfg models.DetectionConfig) ([]*models.Zone, error) {
	if err := requireRules(s.Name(), cfg.Rules, "predicates"); err != nil {
		return nil, err
	}
	predicates, ok := cfg.Rules["predicates"].([]models.Predicate)
	if !ok || len(predicates) == 0 {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "predicates", Reason: "must be a non-empty []models.Predicate"}
	}

	logic := "and"
	if l, ok := stringRule(cfg.Rules, "logic"); ok {
		logic = strings.ToLower(l)
	}
	if logic != "and" && logic != "or" {
		return nil, &models.InvalidRuleError{Strategy: s.Name(), Rule: "logic", Reason: "must be \"and\" or \"or\""}
	}

	labelFor := map[bool]string{true: LabelMatch, false: LabelNoMatch}
	if table, ok := cfg.Rules["labels"].(map[bool]string); ok {
		for result, label := range table {
			labelFor[result] = label
		}
	}

	labels := make([]string, frame.Len())
	for i := 0; i < frame.Len(); i++ {
		combined := logic == "and"
		for _, predicate := range predicates {
			hit := predicate.Fn(frame, i)
			if logic == "and" {
				combined = combined && hit
			} else {
				combined = combined || hit
			}
		}
		labels[i] = labelFor[combined]
	}

	names := make([]string, len(predicates))
	for i, predicate := range predicates {
		names[i] = predicate.Name
	}
	context := models.IndicatorContext{
		Strategy: s.Name(),
		Rules: map[string]any{
			"logic":      logic,
			"predicates": strings.Join(names, ","),
		},
	}
	return zonesFromLabels(frame, labels, cfg, context)
}
