package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(n int) []time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	index := make([]time.Time, n)
	for i := range index {
		index[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return index
}

func TestFrame_AddColumn(t *testing.T) {
	frame := NewFrame(testIndex(3))

	err := frame.AddColumn("close", []float64{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, frame.HasColumn("close"))

	err = frame.AddColumn("short", []float64{1})
	assert.Error(t, err)
	assert.False(t, frame.HasColumn("short"))
}

func TestFrame_Column(t *testing.T) {
	frame := NewFrame(testIndex(2))
	require.NoError(t, frame.AddColumn("rsi", []float64{30, 70}))

	values, ok := frame.Column("rsi")
	assert.True(t, ok)
	assert.Equal(t, []float64{30, 70}, values)

	_, ok = frame.Column("missing")
	assert.False(t, ok)
}

func TestFrame_Slice(t *testing.T) {
	frame := NewFrame(testIndex(5))
	require.NoError(t, frame.AddColumn("close", []float64{1, 2, 3, 4, 5}))

	sub, err := frame.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Len())

	values, _ := sub.Column("close")
	assert.Equal(t, []float64{2, 3, 4}, values)

	// The slice is owned: mutating it must not touch the parent.
	values[0] = 99
	parent, _ := frame.Column("close")
	assert.Equal(t, 2.0, parent[1])

	_, err = frame.Slice(3, 1)
	assert.Error(t, err)
	_, err = frame.Slice(0, 5)
	assert.Error(t, err)
}

func TestFrame_MergeColumns(t *testing.T) {
	frame := NewFrame(testIndex(2))
	require.NoError(t, frame.AddColumn("close", []float64{10, 20}))

	err := frame.MergeColumns(map[string][]float64{
		"close": {0, 0}, // already present, must be skipped
		"rsi":   {40, 60},
	})
	require.NoError(t, err)

	original, _ := frame.Column("close")
	assert.Equal(t, []float64{10, 20}, original)
	assert.True(t, frame.HasColumn("rsi"))
}

func TestFrame_ColumnNames_Sorted(t *testing.T) {
	frame := NewFrame(testIndex(1))
	require.NoError(t, frame.AddColumn("zeta", []float64{1}))
	require.NoError(t, frame.AddColumn("alpha", []float64{1}))

	assert.Equal(t, []string{"alpha", "zeta"}, frame.ColumnNames())
}

func TestFrame_NearestIndex(t *testing.T) {
	frame := NewFrame(testIndex(4))

	idx, dist := frame.NearestIndex(frame.Index[2].Add(10 * time.Minute))
	assert.Equal(t, 2, idx)
	assert.Equal(t, 10*time.Minute, dist)

	idx, _ = frame.NearestIndex(frame.Index[0].Add(-time.Hour))
	assert.Equal(t, 0, idx)

	idx, _ = frame.NearestIndex(frame.Index[3].Add(24 * time.Hour))
	assert.Equal(t, 3, idx)
}

func TestFromBars(t *testing.T) {
	bars := []Bar{
		{
			Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Open:      decimal.NewFromFloat(1.5),
			High:      decimal.NewFromFloat(2.0),
			Low:       decimal.NewFromFloat(1.0),
			Close:     decimal.NewFromFloat(1.8),
			Volume:    decimal.NewFromInt(100),
		},
		{
			Timestamp: time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC),
			Open:      decimal.NewFromFloat(1.8),
			High:      decimal.NewFromFloat(2.2),
			Low:       decimal.NewFromFloat(1.6),
			Close:     decimal.NewFromFloat(2.1),
			Volume:    decimal.NewFromInt(150),
		},
	}

	frame := FromBars(bars)
	require.Equal(t, 2, frame.Len())

	closes, _ := frame.Column("close")
	assert.InDelta(t, 1.8, closes[0], 1e-9)
	assert.InDelta(t, 2.1, closes[1], 1e-9)
	for _, name := range PriceColumns {
		assert.True(t, frame.HasColumn(name), "missing %s", name)
	}
}

func TestFrame_BarSpacing(t *testing.T) {
	assert.Equal(t, time.Hour, NewFrame(testIndex(3)).BarSpacing())
	assert.Equal(t, time.Duration(0), NewFrame(testIndex(1)).BarSpacing())
}
