package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

// metricFeature is the per-zone metric the label-difference hypothesis test
// runs on: the mean of the primary signal inside the zone, as produced by
// the shape slot.
const metricFeature = "shape_mean"

// UniversalAnalyzer turns any list of zones plus their source series into a
// self-contained AnalysisResult. It carries no indicator-specific logic: the
// signal columns come from each zone's indicator context, with a narrow
// sniffing fallback for zones whose context was lost.
type UniversalAnalyzer struct {
	slots  map[string]FeatureStrategy
	logger *logrus.Logger
}

// NewUniversalAnalyzer constructs an analyzer with the default strategy in
// every slot.
func NewUniversalAnalyzer(logger *logrus.Logger) *UniversalAnalyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	slots := make(map[string]FeatureStrategy, len(featureSlots))
	for _, slot := range featureSlots {
		strategy, err := NewFeature(slot, "default")
		if err != nil {
			// Defaults self-register in this package; absence is a bug.
			panic(fmt.Sprintf("default feature strategy missing for slot %s: %v", slot, err))
		}
		slots[slot] = strategy
	}
	return &UniversalAnalyzer{slots: slots, logger: logger}
}

// SetSlot injects a custom strategy into one of the five slots.
func (a *UniversalAnalyzer) SetSlot(slot string, strategy FeatureStrategy) error {
	if !validSlot(slot) {
		return fmt.Errorf("unknown feature slot %q, valid slots: %v", slot, featureSlots)
	}
	a.slots[slot] = strategy
	return nil
}

// Analyze runs per-zone feature extraction and the population analyses.
// An empty zone list yields a well-formed empty result, never an error.
func (a *UniversalAnalyzer) Analyze(ctx context.Context, zones []*models.Zone, frame *models.Frame, cfg models.AnalysisConfig) (*models.AnalysisResult, error) {
	result := &models.AnalysisResult{
		RunID:     uuid.NewString(),
		Zones:     zones,
		CreatedAt: time.Now().UTC(),
		Metadata: models.RunMetadata{
			Strategy: cfg.Detection.Strategy,
		},
	}
	if cfg.Indicator != nil {
		result.Metadata.Indicator = cfg.Indicator.Name
	}
	if frame != nil {
		result.Source = models.SourceRef{
			Fingerprint: frameFingerprint(frame),
			Rows:        frame.Len(),
			Columns:     frame.ColumnNames(),
		}
	}

	if len(zones) == 0 {
		result.Metadata.Degraded = append(result.Metadata.Degraded, models.DegradedNote{
			Component: "analysis",
			Reason:    "no zones detected",
		})
		return result, nil
	}

	for _, zone := range zones {
		a.extractZoneFeatures(zone)
	}

	result.Stats = a.populationStats(zones)
	result.Hypothesis = a.hypothesisTests(zones, result)
	result.Sequence = analyzeSequence(zones)

	if cfg.Clustering != nil {
		clustering, reason := clusterZones(zones, *cfg.Clustering)
		if clustering == nil {
			a.logger.WithFields(logrus.Fields{"reason": reason}).Info("Clustering skipped")
			result.Metadata.Degraded = append(result.Metadata.Degraded, models.DegradedNote{
				Component: "clustering",
				Reason:    reason,
			})
		}
		result.Clustering = clustering
	}

	if cfg.Regression != nil {
		regression, reason := regressZones(zones, *cfg.Regression, cfg.Validation)
		if regression == nil {
			a.logger.WithFields(logrus.Fields{"reason": reason}).Info("Regression skipped")
			result.Metadata.Degraded = append(result.Metadata.Degraded, models.DegradedNote{
				Component: "regression",
				Reason:    reason,
			})
		}
		result.Regression = regression
	}

	return result, nil
}

// extractZoneFeatures resolves the signal columns for one zone and runs
// every slot over its sub-series. A failing slot degrades that zone's
// features only, never the batch.
func (a *UniversalAnalyzer) extractZoneFeatures(zone *models.Zone) {
	if zone.Slice == nil || zone.Slice.Len() == 0 {
		return
	}
	if zone.Features == nil {
		zone.Features = make(map[string]float64)
	}

	primary := zone.Context.PrimaryColumn
	secondary := zone.Context.SecondaryColumn
	if !zone.Context.IsPopulated() {
		primary = sniffOscillatorColumn(zone.Slice, models.PriceColumns)
		if primary != "" {
			secondary = sniffOscillatorColumn(zone.Slice, append([]string{primary}, models.PriceColumns...))
		}
	}

	for _, slot := range featureSlots {
		strategy := a.slots[slot]
		if strategy == nil {
			continue
		}
		features := a.safeExtract(strategy, slot, zone, primary, secondary)
		for key, value := range features {
			zone.Features[slot+"_"+key] = value
		}
	}
}

func (a *UniversalAnalyzer) safeExtract(strategy FeatureStrategy, slot string, zone *models.Zone, primary, secondary string) (features map[string]float64) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithFields(logrus.Fields{
				"slot":    slot,
				"zone_id": zone.ID,
			}).Warnf("Feature strategy panicked, degrading zone features: %v", r)
			features = map[string]float64{}
		}
	}()
	return strategy.Extract(zone.Slice, primary, secondary)
}

// populationStats aggregates zone features into distribution summaries,
// overall and broken out by classification label. Zone duration participates
// as a synthetic feature.
func (a *UniversalAnalyzer) populationStats(zones []*models.Zone) *models.PopulationStats {
	values := make(map[string][]float64)
	byLabel := make(map[string]map[string][]float64)

	for _, zone := range zones {
		if byLabel[zone.Label] == nil {
			byLabel[zone.Label] = make(map[string][]float64)
		}
		values["duration"] = append(values["duration"], float64(zone.Duration))
		byLabel[zone.Label]["duration"] = append(byLabel[zone.Label]["duration"], float64(zone.Duration))
		for key, v := range zone.Features {
			values[key] = append(values[key], v)
			byLabel[zone.Label][key] = append(byLabel[zone.Label][key], v)
		}
	}

	stats := &models.PopulationStats{
		Overall: make(map[string]models.FeatureSummary, len(values)),
		ByLabel: make(map[string]map[string]models.FeatureSummary, len(byLabel)),
	}
	for key, sample := range values {
		stats.Overall[key] = summarize(sample)
	}
	for label, features := range byLabel {
		stats.ByLabel[label] = make(map[string]models.FeatureSummary, len(features))
		for key, sample := range features {
			stats.ByLabel[label][key] = summarize(sample)
		}
	}
	return stats
}

// hypothesisTests runs the population-level tests: a duration-weighted
// metric-difference test between the two most frequent labels (parametric or
// non-parametric depending on a normality check) and a stationarity test
// over the chronological duration sequence.
func (a *UniversalAnalyzer) hypothesisTests(zones []*models.Zone, result *models.AnalysisResult) *models.HypothesisReport {
	report := &models.HypothesisReport{}

	// Chronological durations.
	ordered := make([]*models.Zone, len(zones))
	copy(ordered, zones)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartIndex < ordered[j].StartIndex })
	durations := make([]float64, len(ordered))
	for i, zone := range ordered {
		durations[i] = float64(zone.Duration)
	}
	if len(durations) >= 4 {
		statistic, stationary := dickeyFuller(durations)
		report.Stationarity = &models.TestResult{
			Name:        "dickey_fuller",
			Statistic:   statistic,
			Significant: stationary,
			PValue:      stationaryPValue(statistic),
		}
	} else {
		result.Metadata.Degraded = append(result.Metadata.Degraded, models.DegradedNote{
			Component: "stationarity",
			Reason:    "insufficient zones",
		})
	}

	labelA, labelB := topTwoLabels(zones)
	if labelB == "" {
		result.Metadata.Degraded = append(result.Metadata.Degraded, models.DegradedNote{
			Component: "metric_difference",
			Reason:    "fewer than two labels present",
		})
		return report
	}

	samplesA := weightedMetricSample(zones, labelA)
	samplesB := weightedMetricSample(zones, labelB)
	if len(samplesA) < 2 || len(samplesB) < 2 {
		result.Metadata.Degraded = append(result.Metadata.Degraded, models.DegradedNote{
			Component: "metric_difference",
			Reason:    "insufficient samples per label",
		})
		return report
	}

	pooled := append(append([]float64(nil), samplesA...), samplesB...)
	jbStat, jbP := jarqueBera(pooled)
	normal := jbP > 0.05
	report.Normality = &models.TestResult{
		Name:        "jarque_bera",
		Statistic:   jbStat,
		PValue:      jbP,
		Significant: !normal,
	}

	var name string
	var statistic, pValue float64
	if normal {
		name = "welch_t"
		statistic, pValue = welchT(samplesA, samplesB)
	} else {
		name = "mann_whitney_u"
		statistic, pValue = mannWhitneyU(samplesA, samplesB)
	}
	report.MetricDifference = &models.TestResult{
		Name:        name,
		Statistic:   statistic,
		PValue:      pValue,
		Significant: pValue < 0.05,
		Details: map[string]float64{
			"mean_" + labelA: mean(samplesA),
			"mean_" + labelB: mean(samplesB),
		},
	}
	return report
}

// weightedMetricSample expands each zone's metric value by its duration so
// long zones carry proportionally more weight in the test.
func weightedMetricSample(zones []*models.Zone, label string) []float64 {
	var sample []float64
	for _, zone := range zones {
		if zone.Label != label {
			continue
		}
		v, ok := zone.Features[metricFeature]
		if !ok {
			continue
		}
		weight := zone.Duration
		if weight > 100 {
			weight = 100
		}
		for i := 0; i < weight; i++ {
			sample = append(sample, v)
		}
	}
	return sample
}

// topTwoLabels returns the two most frequent zone labels, ties broken
// alphabetically. The second label is empty when only one exists.
func topTwoLabels(zones []*models.Zone) (string, string) {
	counts := make(map[string]int)
	for _, zone := range zones {
		counts[zone.Label]++
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) == 1 {
		return labels[0], ""
	}
	return labels[0], labels[1]
}

// stationaryPValue maps a Dickey-Fuller statistic onto an approximate
// p-value using the constant-case critical values.
func stationaryPValue(statistic float64) float64 {
	switch {
	case statistic < -3.43:
		return 0.01
	case statistic < -2.86:
		return 0.05
	case statistic < -2.57:
		return 0.10
	default:
		return 0.5
	}
}
