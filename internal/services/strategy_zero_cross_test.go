package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantzone/zonekit/internal/models"
)

func TestZeroCross_PartitionsSeries(t *testing.T) {
	frame := sineFrame(200, 5)
	strategy, err := NewDetectionStrategy("zero_cross", quietLogger())
	require.NoError(t, err)

	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, zones)

	// Concatenating zones in order reconstructs the covered range with no
	// gaps and no overlaps.
	next := 0
	for _, zone := range zones {
		assert.Equal(t, next, zone.StartIndex)
		assert.GreaterOrEqual(t, zone.EndIndex, zone.StartIndex)
		assert.Equal(t, zone.EndIndex-zone.StartIndex+1, zone.Duration)
		next = zone.EndIndex + 1
	}
	assert.Equal(t, frame.Len(), next)
}

func TestZeroCross_Labels(t *testing.T) {
	frame := sineFrame(100, 3)
	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())

	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	require.NoError(t, err)

	osc, _ := frame.Column("osc")
	for _, zone := range zones {
		for i := zone.StartIndex; i <= zone.EndIndex; i++ {
			if osc[i] >= 0 {
				assert.Equal(t, LabelBull, zone.Label, "row %d", i)
			} else {
				assert.Equal(t, LabelBear, zone.Label, "row %d", i)
			}
		}
	}
}

func TestZeroCross_ScenarioSineOscillator(t *testing.T) {
	// 1,000 synthetic bars, sine oscillator crossing zero ~40 times.
	frame := sineFrame(1000, 20)
	osc, _ := frame.Column("osc")
	expected := signRuns(osc, 2)

	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())
	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy:    "zero_cross",
		MinDuration: 2,
		Rules:       map[string]any{"column": "osc"},
	})
	require.NoError(t, err)
	assert.Len(t, zones, expected)
}

func TestZeroCross_MinDurationFilter(t *testing.T) {
	frame := models.NewFrame(testIndex(6))
	require.NoError(t, frame.AddColumn("osc", []float64{1, 1, 1, -1, 1, 1}))

	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())
	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy:    "zero_cross",
		MinDuration: 2,
		Rules:       map[string]any{"column": "osc"},
	})
	require.NoError(t, err)

	// The single-bar bear zone is filtered out after classification.
	require.Len(t, zones, 2)
	for _, zone := range zones {
		assert.GreaterOrEqual(t, zone.Duration, 2)
		assert.Equal(t, LabelBull, zone.Label)
	}
}

func TestZeroCross_AllowedLabelsFilter(t *testing.T) {
	frame := sineFrame(100, 3)
	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())

	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy:      "zero_cross",
		AllowedLabels: []string{LabelBull},
		Rules:         map[string]any{"column": "osc"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, zones)
	for _, zone := range zones {
		assert.Equal(t, LabelBull, zone.Label)
	}
}

func TestZeroCross_ZeroCountsAsPositive(t *testing.T) {
	frame := models.NewFrame(testIndex(4))
	require.NoError(t, frame.AddColumn("osc", []float64{1, 0, 0, 1}))

	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())
	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	require.NoError(t, err)

	// Zero does not split the run: one bull zone, no zero-length artifacts.
	require.Len(t, zones, 1)
	assert.Equal(t, LabelBull, zones[0].Label)
	assert.Equal(t, 4, zones[0].Duration)
}

func TestZeroCross_Smoothing(t *testing.T) {
	frame := models.NewFrame(testIndex(8))
	// A single downward blip that a 3-bar SMA smooths away.
	require.NoError(t, frame.AddColumn("osc", []float64{2, 2, 2, -0.5, 2, 2, 2, 2}))

	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())
	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc", "smooth": 3},
	})
	require.NoError(t, err)

	require.Len(t, zones, 1)
	assert.Equal(t, LabelBull, zones[0].Label)
	assert.Equal(t, 3, zones[0].Context.Rules["smooth"])
}

func TestZeroCross_MissingRule(t *testing.T) {
	frame := sineFrame(10, 1)
	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())

	_, err := strategy.Detect(frame, models.DetectionConfig{Strategy: "zero_cross"})

	var missing *models.MissingRuleError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "zero_cross", missing.Strategy)
	assert.Equal(t, []string{"column"}, missing.Keys)
}

func TestZeroCross_MissingColumn(t *testing.T) {
	frame := sineFrame(10, 1)
	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())

	_, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "ghost"},
	})

	var shape *models.DataShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "ghost", shape.Column)
}

func TestZeroCross_NaNRowsExcluded(t *testing.T) {
	frame := models.NewFrame(testIndex(5))
	require.NoError(t, frame.AddColumn("osc", []float64{math.NaN(), math.NaN(), 1, 1, 1}))

	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())
	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	require.NoError(t, err)

	require.Len(t, zones, 1)
	assert.Equal(t, 2, zones[0].StartIndex)
}

func TestZeroCross_ContextPopulated(t *testing.T) {
	frame := sineFrame(50, 2)
	strategy, _ := NewDetectionStrategy("zero_cross", quietLogger())

	zones, err := strategy.Detect(frame, models.DetectionConfig{
		Strategy: "zero_cross",
		Rules:    map[string]any{"column": "osc"},
	})
	require.NoError(t, err)
	for _, zone := range zones {
		assert.Equal(t, "osc", zone.Context.PrimaryColumn)
		assert.Equal(t, "zero_cross", zone.Context.Strategy)
		assert.True(t, zone.Context.IsPopulated())
		assert.NotEmpty(t, zone.ID)
		assert.NotNil(t, zone.Features)
		assert.Empty(t, zone.Features)
	}
}
