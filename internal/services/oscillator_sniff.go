package services

import (
	"math"

	"github.com/quantzone/zonekit/internal/models"
)

// sniffOscillatorColumn scans a frame for the first numeric column, in
// sorted name order, that is not in the exclude list and whose values look
// oscillator-like: either crossing zero or staying within a bounded band
// ([0, 100] or [-1, 1], with 5% slack). Returns "" when nothing qualifies.
//
// This fallback exists only for zones whose indicator context was lost; the
// analyzer never calls it when the context is populated.
func sniffOscillatorColumn(frame *models.Frame, exclude []string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	for _, name := range frame.ColumnNames() {
		if excluded[name] {
			continue
		}
		values, _ := frame.Column(name)
		if looksOscillator(values) {
			return name
		}
	}
	return ""
}

func looksOscillator(values []float64) bool {
	var minV, maxV float64
	seen := false
	hasPositive, hasNegative := false, false

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if !seen {
			minV, maxV = v, v
			seen = true
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		if v > 0 {
			hasPositive = true
		}
		if v < 0 {
			hasNegative = true
		}
	}
	if !seen {
		return false
	}

	if hasPositive && hasNegative {
		return true
	}
	// Percent-style band, e.g. RSI or stochastic.
	if minV >= -5 && maxV <= 105 && maxV-minV > 0 {
		return true
	}
	// Unit band, e.g. correlation-like signals.
	if minV >= -1.05 && maxV <= 1.05 {
		return true
	}
	return false
}
