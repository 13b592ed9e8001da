package models

import (
	"fmt"
	"strings"
	"time"
)

// DetectionConfig selects and parameterizes a detection strategy. It is a
// pure data container: rule semantics belong to the strategy that reads them.
type DetectionConfig struct {
	Strategy      string         `json:"strategy"`
	MinDuration   int            `json:"min_duration"`
	AllowedLabels []string       `json:"allowed_labels,omitempty"`
	Rules         map[string]any `json:"rules,omitempty"`
}

// LabelAllowed reports whether a classification label passes the allowed set.
// An empty set allows everything.
func (c DetectionConfig) LabelAllowed(label string) bool {
	if len(c.AllowedLabels) == 0 {
		return true
	}
	for _, allowed := range c.AllowedLabels {
		if allowed == label {
			return true
		}
	}
	return false
}

// IndicatorSpec describes an indicator computation request handed to the
// indicator provider at the Prepare stage.
type IndicatorSpec struct {
	Source string         `json:"source"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ClusteringConfig parameterizes the optional k-means pass over zone
// features.
type ClusteringConfig struct {
	NumClusters int      `json:"num_clusters"`
	Features    []string `json:"features,omitempty"`
}

// RegressionConfig parameterizes the optional regression over zone features.
// Target "duration" predicts zone duration; any feature key is also valid.
type RegressionConfig struct {
	Target     string   `json:"target"`
	Features   []string `json:"features,omitempty"`
	MinSamples int      `json:"min_samples"`
}

// AnalysisConfig is the full configuration of one pipeline run.
type AnalysisConfig struct {
	Indicator  *IndicatorSpec    `json:"indicator,omitempty"`
	Detection  DetectionConfig   `json:"detection"`
	Clustering *ClusteringConfig `json:"clustering,omitempty"`
	Regression *RegressionConfig `json:"regression,omitempty"`
	Validation bool              `json:"validation"`
}

// FeatureSummary holds distribution statistics for one feature.
type FeatureSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// PopulationStats aggregates zone feature maps, overall and per label.
type PopulationStats struct {
	Overall map[string]FeatureSummary            `json:"overall"`
	ByLabel map[string]map[string]FeatureSummary `json:"by_label"`
}

// TestResult is the outcome of one hypothesis test.
type TestResult struct {
	Name        string             `json:"name"`
	Statistic   float64            `json:"statistic"`
	PValue      float64            `json:"p_value"`
	Significant bool               `json:"significant"`
	Details     map[string]float64 `json:"details,omitempty"`
}

// HypothesisReport bundles the population-level hypothesis tests.
type HypothesisReport struct {
	Normality        *TestResult `json:"normality,omitempty"`
	MetricDifference *TestResult `json:"metric_difference,omitempty"`
	Stationarity     *TestResult `json:"stationarity,omitempty"`
}

// PatternCount is a recurring label sequence and how often it occurred.
type PatternCount struct {
	Labels []string `json:"labels"`
	Count  int      `json:"count"`
}

// SequenceReport holds chronological label-transition analysis.
type SequenceReport struct {
	Transitions map[string]map[string]int `json:"transitions"`
	Patterns    []PatternCount            `json:"patterns,omitempty"`
}

// ClusteringResult is the assignment produced by the optional k-means pass.
type ClusteringResult struct {
	K           int            `json:"k"`
	Features    []string       `json:"features"`
	Assignments map[string]int `json:"assignments"`
	Centroids   [][]float64    `json:"centroids"`
}

// ValidationResult is a holdout evaluation of a fitted regression.
type ValidationResult struct {
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	MSE       float64 `json:"mse"`
}

// RegressionResult is a fitted linear model over zone features.
type RegressionResult struct {
	Target       string             `json:"target"`
	Features     []string           `json:"features"`
	Coefficients map[string]float64 `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
	R2           float64            `json:"r2"`
	SampleSize   int                `json:"sample_size"`
	Validation   *ValidationResult  `json:"validation,omitempty"`
}

// DegradedNote records a sub-analysis that was skipped, with the reason.
// Degradation is not an error: the overall run still succeeds.
type DegradedNote struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
}

// SourceRef identifies the series an analysis ran against without retaining
// the series itself.
type SourceRef struct {
	Fingerprint string   `json:"fingerprint"`
	Rows        int      `json:"rows"`
	Columns     []string `json:"columns"`
}

// RunMetadata is free-form metadata about one analysis run.
type RunMetadata struct {
	Strategy  string            `json:"strategy"`
	Indicator string            `json:"indicator,omitempty"`
	Degraded  []DegradedNote    `json:"degraded,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// AnalysisResult is the immutable bundle produced by one pipeline run.
// It is created once at the end of the run and not mutated afterwards,
// except by an explicit save/load round trip.
type AnalysisResult struct {
	RunID      string            `json:"run_id"`
	Zones      []*Zone           `json:"zones"`
	Stats      *PopulationStats  `json:"stats,omitempty"`
	Hypothesis *HypothesisReport `json:"hypothesis,omitempty"`
	Clustering *ClusteringResult `json:"clustering,omitempty"`
	Sequence   *SequenceReport   `json:"sequence,omitempty"`
	Regression *RegressionResult `json:"regression,omitempty"`
	Source     SourceRef         `json:"source"`
	Metadata   RunMetadata       `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Display mode tokens accepted by Visualize.
const (
	DisplayOverview   = "overview"
	DisplayComparison = "comparison"
	DisplayStatistics = "statistics"
	displayDetail     = "detail:"
)

// Renderer is the external visualization collaborator. The core makes no
// assumption about the rendering technology.
type Renderer interface {
	RenderOverview(result *AnalysisResult, frame *Frame) error
	RenderZoneDetail(zone *Zone, frame *Frame) error
	RenderComparison(zones []*Zone, frame *Frame) error
	RenderStatistics(result *AnalysisResult) error
}

// Visualize delegates rendering of this result to the given renderer.
// Mode is one of "overview", "detail:<zone-id>", "comparison", "statistics".
func (r *AnalysisResult) Visualize(mode string, frame *Frame, renderer Renderer) error {
	if renderer == nil {
		return fmt.Errorf("visualize: renderer is nil")
	}
	switch {
	case mode == DisplayOverview:
		return renderer.RenderOverview(r, frame)
	case mode == DisplayComparison:
		return renderer.RenderComparison(r.Zones, frame)
	case mode == DisplayStatistics:
		return renderer.RenderStatistics(r)
	case strings.HasPrefix(mode, displayDetail):
		zoneID := strings.TrimPrefix(mode, displayDetail)
		for _, zone := range r.Zones {
			if zone.ID == zoneID {
				return renderer.RenderZoneDetail(zone, frame)
			}
		}
		return fmt.Errorf("visualize: zone %q not found in result", zoneID)
	default:
		return fmt.Errorf("visualize: unknown display mode %q", mode)
	}
}
