package models

import (
	"time"
)

// IndicatorContext records which signal column(s) and detection rule produced
// a zone, so downstream feature extraction never needs to guess. Every
// detection strategy must populate it, even if some fields stay empty.
type IndicatorContext struct {
	PrimaryColumn   string         `json:"primary_column"`
	SecondaryColumn string         `json:"secondary_column,omitempty"`
	Strategy        string         `json:"strategy"`
	Rules           map[string]any `json:"rules,omitempty"`
}

// IsPopulated reports whether the context carries a usable primary column.
func (c IndicatorContext) IsPopulated() bool {
	return c.PrimaryColumn != ""
}

// Zone is a contiguous labeled interval of a time-ordered series.
type Zone struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	StartIndex int                `json:"start_index"`
	EndIndex   int                `json:"end_index"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Duration   int                `json:"duration"`
	Slice      *Frame             `json:"slice,omitempty"`
	Features   map[string]float64 `json:"features"`
	Context    IndicatorContext   `json:"context"`
}

// ExternalZone is a zone description from an external tabular source,
// consumed by the preloaded detection strategy.
type ExternalZone struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Predicate is a named boolean row condition evaluated by the combined
// detection strategy. The name participates in cache keys, so it should
// describe the condition, not just number it.
type Predicate struct {
	Name string
	Fn   func(frame *Frame, row int) bool
}
