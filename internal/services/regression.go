package services

import (
	"math"
	"sort"

	"github.com/quantzone/zonekit/internal/models"
)

// regressZones fits an OLS model predicting the configured target (zone
// duration, or any feature key) from the remaining shared zone features.
// Returns nil plus a reason when the sample is too small; degraded, not an
// error.
func regressZones(zones []*models.Zone, cfg models.RegressionConfig, validate bool) (*models.RegressionResult, string) {
	minSamples := cfg.MinSamples
	if minSamples < 1 {
		minSamples = 10
	}

	target := cfg.Target
	if target == "" {
		target = "duration"
	}

	predictors := cfg.Features
	if len(predictors) == 0 {
		predictors = sharedFeatureKeys(zones)
	}
	// The target never predicts itself.
	filtered := predictors[:0:0]
	for _, key := range predictors {
		if key != target {
			filtered = append(filtered, key)
		}
	}
	predictors = filtered
	sort.Strings(predictors)
	if len(predictors) == 0 {
		return nil, "no predictor features"
	}

	var rows [][]float64
	var targets []float64
	for _, zone := range zones {
		y, ok := targetValue(zone, target)
		if !ok {
			continue
		}
		row := make([]float64, len(predictors))
		complete := true
		for j, key := range predictors {
			v, present := zone.Features[key]
			if !present || math.IsNaN(v) {
				complete = false
				break
			}
			row[j] = v
		}
		if complete {
			rows = append(rows, row)
			targets = append(targets, y)
		}
	}
	if len(rows) < minSamples {
		return nil, "insufficient samples"
	}

	trainRows, trainTargets := rows, targets
	var testRows [][]float64
	var testTargets []float64
	if validate && len(rows) >= minSamples+2 {
		split := len(rows) * 4 / 5
		trainRows, testRows = rows[:split], rows[split:]
		trainTargets, testTargets = targets[:split], targets[split:]
	}

	columns := transpose(trainRows, len(predictors))
	coefs, intercept, r2, ok := olsFit(columns, trainTargets)
	if !ok {
		return nil, "singular design matrix"
	}

	byName := make(map[string]float64, len(predictors))
	for j, key := range predictors {
		byName[key] = coefs[j]
	}
	result := &models.RegressionResult{
		Target:       target,
		Features:     predictors,
		Coefficients: byName,
		Intercept:    intercept,
		R2:           r2,
		SampleSize:   len(trainRows),
	}

	if len(testRows) > 0 {
		mse := 0.0
		for i, row := range testRows {
			pred := intercept
			for j, v := range row {
				pred += coefs[j] * v
			}
			mse += (testTargets[i] - pred) * (testTargets[i] - pred)
		}
		mse /= float64(len(testRows))
		result.Validation = &models.ValidationResult{
			TrainSize: len(trainRows),
			TestSize:  len(testRows),
			MSE:       mse,
		}
	}
	return result, ""
}

func targetValue(zone *models.Zone, target string) (float64, bool) {
	if target == "duration" {
		return float64(zone.Duration), true
	}
	v, ok := zone.Features[target]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func transpose(rows [][]float64, dims int) [][]float64 {
	columns := make([][]float64, dims)
	for j := 0; j < dims; j++ {
		columns[j] = make([]float64, len(rows))
		for i, row := range rows {
			columns[j][i] = row[j]
		}
	}
	return columns
}
