package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantzone/zonekit/internal/models"
)

func detectZones(t *testing.T, frame *models.Frame, cfg models.DetectionConfig) []*models.Zone {
	t.Helper()
	strategy, err := NewDetectionStrategy(cfg.Strategy, quietLogger())
	require.NoError(t, err)
	zones, err := strategy.Detect(frame, cfg)
	require.NoError(t, err)
	return zones
}

func TestAnalyze_EmptyZonesWellFormed(t *testing.T) {
	analyzer := NewUniversalAnalyzer(quietLogger())
	frame := sineFrame(50, 2)

	result, err := analyzer.Analyze(context.Background(), nil, frame, models.AnalysisConfig{
		Detection: models.DetectionConfig{Strategy: "zero_cross"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Zones)
	assert.Nil(t, result.Stats)
	assert.Nil(t, result.Hypothesis)
	assert.Nil(t, result.Sequence)
	require.Len(t, result.Metadata.Degraded, 1)
	assert.Equal(t, "analysis", result.Metadata.Degraded[0].Component)
	assert.Equal(t, "no zones detected", result.Metadata.Degraded[0].Reason)
	assert.Equal(t, 50, result.Source.Rows)
	assert.False(t, result.CreatedAt.IsZero())
}

func TestAnalyze_PopulationStatsAndHypothesis(t *testing.T) {
	frame := sineFrame(1000, 20)
	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy:    "zero_cross",
		MinDuration: 2,
		Rules:       map[string]any{"column": "osc"},
	})
	require.Greater(t, len(zones), 10)

	analyzer := NewUniversalAnalyzer(quietLogger())
	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection: models.DetectionConfig{Strategy: "zero_cross"},
	})
	require.NoError(t, err)

	// Per-zone features are merged with the slot prefix.
	for _, zone := range result.Zones {
		assert.Contains(t, zone.Features, "shape_mean")
		assert.Contains(t, zone.Features, "volatility_signal_std")
		assert.Contains(t, zone.Features, "volume_total")
		assert.Contains(t, zone.Features, "swing_amplitude")
	}

	require.NotNil(t, result.Stats)
	duration := result.Stats.Overall["duration"]
	assert.Equal(t, len(zones), duration.Count)
	assert.Contains(t, result.Stats.ByLabel, LabelBull)
	assert.Contains(t, result.Stats.ByLabel, LabelBear)

	require.NotNil(t, result.Hypothesis)
	require.NotNil(t, result.Hypothesis.MetricDifference)
	metric := result.Hypothesis.MetricDifference
	assert.Contains(t, []string{"welch_t", "mann_whitney_u"}, metric.Name)
	// Bull zones average above zero, bear zones below: the difference is
	// unmistakable on a clean sine wave.
	assert.True(t, metric.Significant)
	assert.Less(t, metric.PValue, 0.01)
	require.NotNil(t, result.Hypothesis.Stationarity)
	assert.Equal(t, "dickey_fuller", result.Hypothesis.Stationarity.Name)

	require.NotNil(t, result.Sequence)
	// Zero-cross zones strictly alternate.
	assert.Greater(t, result.Sequence.Transitions[LabelBull][LabelBear], 0)
	assert.Greater(t, result.Sequence.Transitions[LabelBear][LabelBull], 0)
	assert.Zero(t, result.Sequence.Transitions[LabelBull][LabelBull])
}

func TestAnalyze_ClusteringDegradesOnSmallPopulation(t *testing.T) {
	frame := sineFrame(100, 1)
	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	require.Less(t, len(zones), 5)

	analyzer := NewUniversalAnalyzer(quietLogger())
	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection:  models.DetectionConfig{Strategy: "zero_cross"},
		Clustering: &models.ClusteringConfig{NumClusters: 5},
	})
	require.NoError(t, err)

	// The run stays valid; clustering is recorded as degraded.
	assert.Nil(t, result.Clustering)
	assert.NotNil(t, result.Stats)
	found := false
	for _, note := range result.Metadata.Degraded {
		if note.Component == "clustering" {
			found = true
			assert.Equal(t, "insufficient zones", note.Reason)
		}
	}
	assert.True(t, found)
}

func TestAnalyze_ClusteringAssignsEveryZone(t *testing.T) {
	frame := sineFrame(1000, 20)
	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})

	analyzer := NewUniversalAnalyzer(quietLogger())
	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection:  models.DetectionConfig{Strategy: "zero_cross"},
		Clustering: &models.ClusteringConfig{NumClusters: 3},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Clustering)
	assert.Equal(t, 3, result.Clustering.K)
	assert.Len(t, result.Clustering.Assignments, len(zones))
	for _, cluster := range result.Clustering.Assignments {
		assert.GreaterOrEqual(t, cluster, 0)
		assert.Less(t, cluster, 3)
	}
}

func TestAnalyze_RegressionOverDurations(t *testing.T) {
	frame := noisySineFrame(1000, 20, 42)
	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy:    "zero_cross",
		MinDuration: 2,
		Rules:       map[string]any{"column": "osc"},
	})
	require.GreaterOrEqual(t, len(zones), 12)

	analyzer := NewUniversalAnalyzer(quietLogger())
	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection: models.DetectionConfig{Strategy: "zero_cross"},
		Regression: &models.RegressionConfig{
			Target:     "duration",
			Features:   []string{"shape_mean", "shape_area", "shape_slope"},
			MinSamples: 10,
		},
		Validation: true,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Regression)
	assert.Equal(t, "duration", result.Regression.Target)
	assert.NotContains(t, result.Regression.Features, "duration")
	assert.NotEmpty(t, result.Regression.Coefficients)
	require.NotNil(t, result.Regression.Validation)
	assert.Greater(t, result.Regression.Validation.TestSize, 0)
}

func TestRegressZones_Direct(t *testing.T) {
	// Duration = 2*f1 + noise-free intercept 3; regression recovers it.
	zones := make([]*models.Zone, 20)
	for i := range zones {
		f1 := float64(i)
		f2 := float64((i*7)%13) * 0.5
		zones[i] = &models.Zone{
			ID:       fmt.Sprintf("z%d", i),
			Duration: int(2*f1 + 3),
			Features: map[string]float64{"f1": f1, "f2": f2},
		}
	}

	result, reason := regressZones(zones, models.RegressionConfig{
		Target:     "duration",
		MinSamples: 10,
	}, false)
	require.Empty(t, reason)
	require.NotNil(t, result)
	assert.InDelta(t, 2.0, result.Coefficients["f1"], 1e-9)
	assert.InDelta(t, 0.0, result.Coefficients["f2"], 1e-9)
	assert.InDelta(t, 3.0, result.Intercept, 1e-9)
	assert.InDelta(t, 1.0, result.R2, 1e-9)
	assert.Equal(t, 20, result.SampleSize)
}

func TestRegressZones_InsufficientSamples(t *testing.T) {
	zones := []*models.Zone{
		{ID: "a", Duration: 3, Features: map[string]float64{"f1": 1}},
		{ID: "b", Duration: 4, Features: map[string]float64{"f1": 2}},
	}
	result, reason := regressZones(zones, models.RegressionConfig{MinSamples: 10}, false)
	assert.Nil(t, result)
	assert.Equal(t, "insufficient samples", reason)
}

func TestAnalyze_UniversalOverArbitraryColumn(t *testing.T) {
	// The analyzer must work for column names invented at runtime.
	frame := sineFrame(400, 8)
	osc, _ := frame.Column("osc")
	name := fmt.Sprintf("custom_signal_%d", 9341)
	require.NoError(t, frame.AddColumn(name, osc))

	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": name},
	})
	require.NotEmpty(t, zones)

	analyzer := NewUniversalAnalyzer(quietLogger())
	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection: models.DetectionConfig{Strategy: "zero_cross"},
	})
	require.NoError(t, err)

	for _, zone := range result.Zones {
		assert.Equal(t, name, zone.Context.PrimaryColumn)
		assert.Contains(t, zone.Features, "shape_mean")
		assert.Contains(t, zone.Features, "shape_peak")
	}
}

func TestAnalyze_SniffFallbackWhenContextLost(t *testing.T) {
	frame := sineFrame(200, 4)
	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	for _, zone := range zones {
		zone.Context = models.IndicatorContext{}
		zone.Features = nil
	}

	analyzer := NewUniversalAnalyzer(quietLogger())
	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection: models.DetectionConfig{Strategy: "zero_cross"},
	})
	require.NoError(t, err)

	// Without a context the sniffer still finds the oscillator column.
	for _, zone := range result.Zones {
		assert.Contains(t, zone.Features, "shape_mean")
	}
}

type panickyFeature struct{}

func (p *panickyFeature) Name() string { return "panicky" }

func (p *panickyFeature) Extract(frame *models.Frame, primary, secondary string) map[string]float64 {
	panic("boom")
}

func TestAnalyze_SlotPanicDegradesZoneOnly(t *testing.T) {
	frame := sineFrame(200, 4)
	zones := detectZones(t, frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})

	analyzer := NewUniversalAnalyzer(quietLogger())
	require.NoError(t, analyzer.SetSlot(SlotSwing, &panickyFeature{}))

	result, err := analyzer.Analyze(context.Background(), zones, frame, models.AnalysisConfig{
		Detection: models.DetectionConfig{Strategy: "zero_cross"},
	})
	require.NoError(t, err)

	// The panicking slot contributes nothing, the rest still run.
	for _, zone := range result.Zones {
		assert.Contains(t, zone.Features, "shape_mean")
		assert.NotContains(t, zone.Features, "swing_amplitude")
	}
}

func TestSetSlot_InvalidSlot(t *testing.T) {
	analyzer := NewUniversalAnalyzer(quietLogger())
	assert.Error(t, analyzer.SetSlot("nope", &panickyFeature{}))
}

func TestTopTwoLabels(t *testing.T) {
	zones := []*models.Zone{
		{Label: "a"}, {Label: "a"}, {Label: "b"}, {Label: "c"}, {Label: "b"}, {Label: "b"},
	}
	first, second := topTwoLabels(zones)
	assert.Equal(t, "b", first)
	assert.Equal(t, "a", second)

	first, second = topTwoLabels([]*models.Zone{{Label: "only"}})
	assert.Equal(t, "only", first)
	assert.Equal(t, "", second)
}

func TestAnalyzeSequence_PatternsAndTransitions(t *testing.T) {
	labels := []string{"a", "b", "a", "b", "a"}
	zones := make([]*models.Zone, len(labels))
	for i, label := range labels {
		zones[i] = &models.Zone{Label: label, StartIndex: i * 10, Duration: 5}
	}

	report := analyzeSequence(zones)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Transitions["a"]["b"])
	assert.Equal(t, 2, report.Transitions["b"]["a"])

	require.NotEmpty(t, report.Patterns)
	assert.Equal(t, []string{"a", "b"}, report.Patterns[0].Labels)
	assert.Equal(t, 2, report.Patterns[0].Count)

	assert.Nil(t, analyzeSequence(nil))
}
