package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantzone/zonekit/internal/models"
)

func TestSniffOscillatorColumn_FindsZeroCrossingColumn(t *testing.T) {
	frame := models.NewFrame(testIndex(4))
	require.NoError(t, frame.AddColumn("close", []float64{100, 101, 102, 103}))
	require.NoError(t, frame.AddColumn("macd", []float64{-1, 0.5, 1, -0.2}))

	assert.Equal(t, "macd", sniffOscillatorColumn(frame, models.PriceColumns))
}

func TestSniffOscillatorColumn_FindsPercentBand(t *testing.T) {
	frame := models.NewFrame(testIndex(4))
	require.NoError(t, frame.AddColumn("close", []float64{100, 200, 300, 400}))
	require.NoError(t, frame.AddColumn("rsi_14", []float64{25, 55, 80, 40}))

	assert.Equal(t, "rsi_14", sniffOscillatorColumn(frame, models.PriceColumns))
}

func TestSniffOscillatorColumn_RespectsExcludes(t *testing.T) {
	frame := models.NewFrame(testIndex(4))
	// Volume sits in [0, 100] here, which would qualify without the exclude.
	require.NoError(t, frame.AddColumn("volume", []float64{10, 20, 30, 40}))
	require.NoError(t, frame.AddColumn("close", []float64{500, 600, 700, 800}))

	assert.Equal(t, "", sniffOscillatorColumn(frame, models.PriceColumns))
}

func TestSniffOscillatorColumn_SortedNameOrder(t *testing.T) {
	frame := models.NewFrame(testIndex(4))
	require.NoError(t, frame.AddColumn("zeta", []float64{-1, 1, -1, 1}))
	require.NoError(t, frame.AddColumn("alpha", []float64{-2, 2, -2, 2}))

	assert.Equal(t, "alpha", sniffOscillatorColumn(frame, nil))
}

func TestLooksOscillator(t *testing.T) {
	assert.True(t, looksOscillator([]float64{-1, 2, -3}))
	assert.True(t, looksOscillator([]float64{10, 50, 90}))
	assert.True(t, looksOscillator([]float64{0.1, -0.9, 1.0}))
	assert.False(t, looksOscillator([]float64{110, 250, 900}))
	assert.False(t, looksOscillator(nil))
}
