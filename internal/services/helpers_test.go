package services

import (
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testIndex(n int) []time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	index := make([]time.Time, n)
	for i := range index {
		index[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return index
}

// sineFrame builds n bars of a drifting close price plus a sine oscillator
// column named "osc" completing the given number of full cycles.
func sineFrame(n int, cycles float64) *models.Frame {
	frame := models.NewFrame(testIndex(n))

	closes := make([]float64, n)
	osc := make([]float64, n)
	volume := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * cycles * float64(i) / float64(n)
		osc[i] = math.Sin(phase)
		closes[i] = 100 + 10*math.Sin(phase/3) + float64(i)*0.01
		high[i] = closes[i] + 0.5
		low[i] = closes[i] - 0.5
		volume[i] = 1000 + 100*math.Cos(phase)
	}

	_ = frame.AddColumn("close", closes)
	_ = frame.AddColumn("high", high)
	_ = frame.AddColumn("low", low)
	_ = frame.AddColumn("volume", volume)
	_ = frame.AddColumn("osc", osc)
	return frame
}

// noisySineFrame is sineFrame with deterministic noise mixed into the
// oscillator and volume, so per-zone features vary across zones.
func noisySineFrame(n int, cycles float64, seed int64) *models.Frame {
	frame := sineFrame(n, cycles)
	rng := rand.New(rand.NewSource(seed))

	osc, _ := frame.Column("osc")
	volume, _ := frame.Column("volume")
	for i := range osc {
		osc[i] += 0.1 * rng.NormFloat64()
		volume[i] += 50 * rng.NormFloat64()
	}
	return frame
}

// signRuns counts the sign runs of values with length >= minLen, zero
// counting as positive. Used as the offline reference for zone counts.
func signRuns(values []float64, minLen int) int {
	count := 0
	runLen := 0
	var lastPositive bool
	for i, v := range values {
		positive := v >= 0
		if i == 0 || positive != lastPositive {
			if runLen >= minLen {
				count++
			}
			runLen = 0
		}
		runLen++
		lastPositive = positive
	}
	if runLen >= minLen {
		count++
	}
	return count
}
