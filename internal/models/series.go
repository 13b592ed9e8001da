package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Frame is a time-ordered table of named float64 columns sharing one index.
// It is the working representation every detection strategy and analytical
// strategy operates on.
type Frame struct {
	Index   []time.Time          `json:"index"`
	Columns map[string][]float64 `json:"columns"`
}

// Bar represents one OHLCV observation as ingested from an exchange or file.
// Prices are decimal at the boundary and converted to float64 columns for
// analysis.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// PriceColumns are the column names treated as price/volume data rather than
// indicator signals. The oscillator fallback never picks one of these.
var PriceColumns = []string{"open", "high", "low", "close", "volume"}

// NewFrame creates an empty frame over the given time index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{
		Index:   index,
		Columns: make(map[string][]float64),
	}
}

// FromBars builds a frame with open/high/low/close/volume columns from OHLCV
// bars, in the order given.
func FromBars(bars []Bar) *Frame {
	index := make([]time.Time, len(bars))
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volume := make([]float64, len(bars))

	for i, bar := range bars {
		index[i] = bar.Timestamp
		open[i], _ = bar.Open.Float64()
		high[i], _ = bar.High.Float64()
		low[i], _ = bar.Low.Float64()
		closes[i], _ = bar.Close.Float64()
		volume[i], _ = bar.Volume.Float64()
	}

	frame := NewFrame(index)
	frame.Columns["open"] = open
	frame.Columns["high"] = high
	frame.Columns["low"] = low
	frame.Columns["close"] = closes
	frame.Columns["volume"] = volume
	return frame
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	return len(f.Index)
}

// AddColumn attaches a named column. The column must match the index length.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != len(f.Index) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), len(f.Index))
	}
	if f.Columns == nil {
		f.Columns = make(map[string][]float64)
	}
	f.Columns[name] = values
	return nil
}

// Column returns the named column and whether it exists.
func (f *Frame) Column(name string) ([]float64, bool) {
	values, ok := f.Columns[name]
	return values, ok
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.Columns[name]
	return ok
}

// ColumnNames returns all column names in sorted order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, 0, len(f.Columns))
	for name := range f.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slice returns an owned deep copy of rows [start, end] inclusive.
func (f *Frame) Slice(start, end int) (*Frame, error) {
	if start < 0 || end >= len(f.Index) || start > end {
		return nil, fmt.Errorf("slice bounds [%d, %d] out of range for %d rows", start, end, len(f.Index))
	}
	index := make([]time.Time, end-start+1)
	copy(index, f.Index[start:end+1])

	out := NewFrame(index)
	for name, values := range f.Columns {
		sub := make([]float64, end-start+1)
		copy(sub, values[start:end+1])
		out.Columns[name] = sub
	}
	return out, nil
}

// MergeColumns attaches every given column that is not already present.
// Existing columns are never overwritten.
func (f *Frame) MergeColumns(columns map[string][]float64) error {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if f.HasColumn(name) {
			continue
		}
		if err := f.AddColumn(name, columns[name]); err != nil {
			return err
		}
	}
	return nil
}

// NearestIndex returns the row whose timestamp is closest to t, along with
// the absolute distance.
func (f *Frame) NearestIndex(t time.Time) (int, time.Duration) {
	if len(f.Index) == 0 {
		return -1, 0
	}
	// Index is time-ordered, binary search for the insertion point.
	pos := sort.Search(len(f.Index), func(i int) bool {
		return !f.Index[i].Before(t)
	})
	if pos == 0 {
		return 0, absDuration(f.Index[0].Sub(t))
	}
	if pos == len(f.Index) {
		last := len(f.Index) - 1
		return last, absDuration(t.Sub(f.Index[last]))
	}
	before := absDuration(t.Sub(f.Index[pos-1]))
	after := absDuration(f.Index[pos].Sub(t))
	if before <= after {
		return pos - 1, before
	}
	return pos, after
}

// BarSpacing returns the spacing between the first two index entries, or
// zero for frames shorter than two rows.
func (f *Frame) BarSpacing() time.Duration {
	if len(f.Index) < 2 {
		return 0
	}
	return f.Index[1].Sub(f.Index[0])
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
