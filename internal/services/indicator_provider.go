package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"
	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

// IndicatorProvider computes named indicator columns aligned to a series.
// The pipeline merges its output into the working frame without renaming.
type IndicatorProvider interface {
	// ColumnNames returns the columns a spec would produce, so the Prepare
	// stage can no-op when they already exist.
	ColumnNames(spec models.IndicatorSpec) []string
	Compute(ctx context.Context, spec models.IndicatorSpec, frame *models.Frame) (map[string][]float64, error)
}

// CinarProvider computes indicators with the cinar/indicator library over
// the frame's price columns. Warm-up rows are padded with NaN so every
// output column matches the frame length.
type CinarProvider struct {
	logger *logrus.Logger
}

// NewCinarProvider constructs the default indicator provider.
func NewCinarProvider(logger *logrus.Logger) *CinarProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CinarProvider{logger: logger}
}

// ColumnNames returns the output column names for a spec.
func (p *CinarProvider) ColumnNames(spec models.IndicatorSpec) []string {
	name := strings.ToLower(spec.Name)
	switch name {
	case "rsi":
		return []string{fmt.Sprintf("rsi_%d", paramInt(spec.Params, "period", 14))}
	case "macd":
		return []string{"macd", "macd_signal"}
	case "stoch":
		return []string{"stoch_k", "stoch_d"}
	case "sma":
		return []string{fmt.Sprintf("sma_%d", paramInt(spec.Params, "period", 20))}
	case "ema":
		return []string{fmt.Sprintf("ema_%d", paramInt(spec.Params, "period", 20))}
	case "bbands":
		return []string{"bb_upper", "bb_middle", "bb_lower"}
	case "atr":
		return []string{"atr"}
	case "obv":
		return []string{"obv"}
	default:
		return nil
	}
}

// Compute calculates the requested indicator over the frame.
func (p *CinarProvider) Compute(ctx context.Context, spec models.IndicatorSpec, frame *models.Frame) (map[string][]float64, error) {
	closes, ok := frame.Column("close")
	if !ok {
		return nil, &models.DataShapeError{Strategy: "indicator:" + spec.Name, Column: "close"}
	}

	name := strings.ToLower(spec.Name)
	p.logger.WithFields(logrus.Fields{
		"indicator": name,
		"source":    spec.Source,
		"rows":      frame.Len(),
	}).Debug("Computing indicator")

	switch name {
	case "rsi":
		period := paramInt(spec.Params, "period", 14)
		rsi := momentum.NewRsiWithPeriod[float64](period)
		values := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
		return map[string][]float64{
			fmt.Sprintf("rsi_%d", period): padFront(values, frame.Len()),
		}, nil

	case "macd":
		fast := paramInt(spec.Params, "fast", 12)
		slow := paramInt(spec.Params, "slow", 26)
		signal := paramInt(spec.Params, "signal", 9)
		macd := trend.NewMacdWithPeriod[float64](fast, slow, signal)
		lineChan, signalChan := macd.Compute(helper.SliceToChan(closes))
		line := helper.ChanToSlice(lineChan)
		signalLine := helper.ChanToSlice(signalChan)
		return map[string][]float64{
			"macd":        padFront(line, frame.Len()),
			"macd_signal": padFront(signalLine, frame.Len()),
		}, nil

	case "stoch":
		return p.computeStochastic(frame, spec)

	case "sma":
		period := paramInt(spec.Params, "period", 20)
		sma := trend.NewSmaWithPeriod[float64](period)
		values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes)))
		return map[string][]float64{
			fmt.Sprintf("sma_%d", period): padFront(values, frame.Len()),
		}, nil

	case "ema":
		period := paramInt(spec.Params, "period", 20)
		ema := trend.NewEmaWithPeriod[float64](period)
		values := helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
		return map[string][]float64{
			fmt.Sprintf("ema_%d", period): padFront(values, frame.Len()),
		}, nil

	case "bbands":
		return p.computeBollinger(frame, spec, closes)

	case "atr":
		high, low, err := p.highLow(frame, name)
		if err != nil {
			return nil, err
		}
		atr := volatility.NewAtr[float64]()
		values := helper.ChanToSlice(atr.Compute(
			helper.SliceToChan(high),
			helper.SliceToChan(low),
			helper.SliceToChan(closes),
		))
		return map[string][]float64{"atr": padFront(values, frame.Len())}, nil

	case "obv":
		volumes, ok := frame.Column("volume")
		if !ok {
			return nil, &models.DataShapeError{Strategy: "indicator:" + spec.Name, Column: "volume"}
		}
		obv := volume.NewObv[float64]()
		values := helper.ChanToSlice(obv.Compute(
			helper.SliceToChan(closes),
			helper.SliceToChan(volumes),
		))
		return map[string][]float64{"obv": padFront(values, frame.Len())}, nil

	default:
		return nil, fmt.Errorf("indicator %q not supported by provider %q", spec.Name, spec.Source)
	}
}

// computeStochastic calculates %K and %D by hand over high/low/close.
func (p *CinarProvider) computeStochastic(frame *models.Frame, spec models.IndicatorSpec) (map[string][]float64, error) {
	high, low, err := p.highLow(frame, "stoch")
	if err != nil {
		return nil, err
	}
	closes, _ := frame.Column("close")

	kPeriod := paramInt(spec.Params, "k_period", 14)
	dPeriod := paramInt(spec.Params, "d_period", 3)

	k := make([]float64, frame.Len())
	for i := range k {
		k[i] = math.NaN()
	}
	for i := kPeriod - 1; i < len(closes); i++ {
		highest, lowest := high[i-kPeriod+1], low[i-kPeriod+1]
		for j := i - kPeriod + 2; j <= i; j++ {
			if high[j] > highest {
				highest = high[j]
			}
			if low[j] < lowest {
				lowest = low[j]
			}
		}
		if highest != lowest {
			k[i] = (closes[i] - lowest) / (highest - lowest) * 100
		} else {
			k[i] = 50
		}
	}

	d := make([]float64, frame.Len())
	for i := range d {
		d[i] = math.NaN()
	}
	for i := kPeriod + dPeriod - 2; i < len(k); i++ {
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(dPeriod)
	}

	return map[string][]float64{"stoch_k": k, "stoch_d": d}, nil
}

// computeBollinger derives the three bands from an SMA and a rolling
// standard deviation.
func (p *CinarProvider) computeBollinger(frame *models.Frame, spec models.IndicatorSpec, closes []float64) (map[string][]float64, error) {
	period := paramInt(spec.Params, "period", 20)
	mult := paramFloat(spec.Params, "std_dev", 2.0)

	middle := make([]float64, frame.Len())
	upper := make([]float64, frame.Len())
	lower := make([]float64, frame.Len())
	for i := range middle {
		middle[i], upper[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
	}

	for i := period - 1; i < len(closes); i++ {
		window := closes[i-period+1 : i+1]
		m := mean(window)
		sd := 0.0
		for _, v := range window {
			sd += (v - m) * (v - m)
		}
		sd = math.Sqrt(sd / float64(period))
		middle[i] = m
		upper[i] = m + mult*sd
		lower[i] = m - mult*sd
	}

	return map[string][]float64{"bb_upper": upper, "bb_middle": middle, "bb_lower": lower}, nil
}

func (p *CinarProvider) highLow(frame *models.Frame, indicator string) ([]float64, []float64, error) {
	high, ok := frame.Column("high")
	if !ok {
		return nil, nil, &models.DataShapeError{Strategy: "indicator:" + indicator, Column: "high"}
	}
	low, ok := frame.Column("low")
	if !ok {
		return nil, nil, &models.DataShapeError{Strategy: "indicator:" + indicator, Column: "low"}
	}
	return high, low, nil
}

// padFront left-pads values with NaN to the target length, or trims from the
// front when the library returned extra rows.
func padFront(values []float64, length int) []float64 {
	if len(values) == length {
		return values
	}
	if len(values) > length {
		return values[len(values)-length:]
	}
	padded := make([]float64, length)
	offset := length - len(values)
	for i := 0; i < offset; i++ {
		padded[i] = math.NaN()
	}
	copy(padded[offset:], values)
	return padded
}

func paramInt(params map[string]any, key string, fallback int) int {
	if v, ok := intRule(params, key); ok {
		return v
	}
	return fallback
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	if v, ok := floatRule(params, key); ok {
		return v
	}
	return fallback
}
