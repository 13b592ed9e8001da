package services

import (
	"math"

	"github.com/quantzone/zonekit/internal/models"
)

// Default implementations for the five analytical-strategy slots. Each works
// purely off the column names it is handed: nothing in this file knows which
// indicator produced the zone.

func init() {
	_ = RegisterFeature(SlotShape, "default", func() FeatureStrategy { return &ShapeFeatures{} })
	_ = RegisterFeature(SlotDivergence, "default", func() FeatureStrategy { return &DivergenceFeatures{} })
	_ = RegisterFeature(SlotVolatility, "default", func() FeatureStrategy { return &VolatilityFeatures{} })
	_ = RegisterFeature(SlotVolume, "default", func() FeatureStrategy { return &VolumeFeatures{} })
	_ = RegisterFeature(SlotSwing, "default", func() FeatureStrategy { return &SwingFeatures{} })
}

// cleanColumn returns the named column with NaN/Inf rows removed, or nil
// when the column is absent or empty after cleaning.
func cleanColumn(frame *models.Frame, name string) []float64 {
	values, ok := frame.Column(name)
	if !ok {
		return nil
	}
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean = append(clean, v)
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

// linearSlope fits a least-squares line over the values against their row
// positions and returns its slope.
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	mx := (n - 1) / 2
	my := mean(values)
	sxx, sxy := 0.0, 0.0
	for i, v := range values {
		dx := float64(i) - mx
		sxx += dx * dx
		sxy += dx * (v - my)
	}
	if sxx == 0 {
		return 0
	}
	return sxy / sxx
}

// ShapeFeatures describes the geometry of the primary signal inside the zone.
type ShapeFeatures struct{}

func (s *ShapeFeatures) Name() string { return "shape" }

func (s *ShapeFeatures) Extract(frame *models.Frame, primary, secondary string) map[string]float64 {
	values := cleanColumn(frame, primary)
	if values == nil {
		return map[string]float64{}
	}

	peak, peakIdx := values[0], 0
	trough := values[0]
	area := 0.0
	for i, v := range values {
		if math.Abs(v) > math.Abs(peak) {
			peak, peakIdx = v, i
		}
		if v < trough {
			trough = v
		}
		area += v
	}

	features := map[string]float64{
		"mean":     mean(values),
		"area":     area,
		"peak":     peak,
		"trough":   trough,
		"start":    values[0],
		"end":      values[len(values)-1],
		"slope":    linearSlope(values),
		"skewness": skewness(values),
		"kurtosis": kurtosis(values),
	}
	if len(values) > 1 {
		features["peak_position"] = float64(peakIdx) / float64(len(values)-1)
	} else {
		features["peak_position"] = 0
	}
	return features
}

// DivergenceFeatures measures disagreement between price and the primary
// signal over the zone.
type DivergenceFeatures struct{}

func (d *DivergenceFeatures) Name() string { return "divergence" }

func (d *DivergenceFeatures) Extract(frame *models.Frame, primary, secondary string) map[string]float64 {
	signal := cleanColumn(frame, primary)
	price, ok := frame.Column("close")
	if signal == nil || !ok || len(price) < 2 || len(signal) < 2 {
		return map[string]float64{}
	}

	n := len(signal)
	if len(price) < n {
		n = len(price)
	}
	signal = signal[:n]
	price = price[:n]

	priceChange := price[n-1] - price[0]
	signalChange := signal[n-1] - signal[0]

	diverging := 0.0
	if priceChange*signalChange < 0 {
		diverging = 1.0
	}

	features := map[string]float64{
		"price_change":  priceChange,
		"signal_change": signalChange,
		"diverging":     diverging,
		"correlation":   pearson(price, signal),
	}
	if secondary != "" {
		if line := cleanColumn(frame, secondary); line != nil && len(line) >= n {
			features["signal_line_gap"] = signal[n-1] - line[n-1]
		}
	}
	return features
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	ma, mb := mean(a[:n]), mean(b[:n])
	var saa, sbb, sab float64
	for i := 0; i < n; i++ {
		da, db := a[i]-ma, b[i]-mb
		saa += da * da
		sbb += db * db
		sab += da * db
	}
	if saa == 0 || sbb == 0 {
		return 0
	}
	return sab / math.Sqrt(saa*sbb)
}

// VolatilityFeatures measures dispersion of price returns and of the signal
// inside the zone.
type VolatilityFeatures struct{}

func (v *VolatilityFeatures) Name() string { return "volatility" }

func (v *VolatilityFeatures) Extract(frame *models.Frame, primary, secondary string) map[string]float64 {
	features := map[string]float64{}

	if signal := cleanColumn(frame, primary); signal != nil {
		features["signal_std"] = stddev(signal)
	}

	price, ok := frame.Column("close")
	if ok && len(price) >= 2 {
		returns := make([]float64, 0, len(price)-1)
		for i := 1; i < len(price); i++ {
			if price[i-1] != 0 {
				returns = append(returns, price[i]/price[i-1]-1)
			}
		}
		if len(returns) > 0 {
			features["return_std"] = stddev(returns)
			features["return_mean"] = mean(returns)
		}
	}

	high, hasHigh := frame.Column("high")
	low, hasLow := frame.Column("low")
	if hasHigh && hasLow && len(high) > 0 && len(low) == len(high) {
		maxRange := 0.0
		for i := range high {
			if r := high[i] - low[i]; r > maxRange {
				maxRange = r
			}
		}
		features["max_bar_range"] = maxRange
	}
	return features
}

// VolumeFeatures summarizes trading volume behavior inside the zone.
type VolumeFeatures struct{}

func (v *VolumeFeatures) Name() string { return "volume" }

func (v *VolumeFeatures) Extract(frame *models.Frame, primary, secondary string) map[string]float64 {
	volume := cleanColumn(frame, "volume")
	if volume == nil {
		return map[string]float64{}
	}

	total := 0.0
	maxV := volume[0]
	for _, val := range volume {
		total += val
		if val > maxV {
			maxV = val
		}
	}
	return map[string]float64{
		"total": total,
		"mean":  mean(volume),
		"max":   maxV,
		"slope": linearSlope(volume),
	}
}

// SwingFeatures counts turning points and measures amplitude of the primary
// signal inside the zone.
type SwingFeatures struct{}

func (s *SwingFeatures) Name() string { return "swing" }

func (s *SwingFeatures) Extract(frame *models.Frame, primary, secondary string) map[string]float64 {
	values := cleanColumn(frame, primary)
	if values == nil {
		return map[string]float64{}
	}

	peaks, troughs := 0, 0
	for i := 1; i < len(values)-1; i++ {
		if values[i] > values[i-1] && values[i] > values[i+1] {
			peaks++
		}
		if values[i] < values[i-1] && values[i] < values[i+1] {
			troughs++
		}
	}

	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	// Largest peak-to-trough fall of the signal within the zone.
	maxDrawdown := 0.0
	runningMax := values[0]
	for _, v := range values {
		if v > runningMax {
			runningMax = v
		}
		if dd := runningMax - v; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	return map[string]float64{
		"peaks":        float64(peaks),
		"troughs":      float64(troughs),
		"amplitude":    maxV - minV,
		"max_drawdown": maxDrawdown,
	}
}
