package services

import (
	"context"

	"github.com/quantzone/zonekit/internal/models"
)

// Builder is the fluent configuration front-end over the Pipeline. It only
// collects: rule parameters pass through verbatim and every semantic check
// belongs to the chosen strategy.
type Builder struct {
	pipeline *Pipeline
	cfg      models.AnalysisConfig
}

// NewBuilder starts a builder over an assembled pipeline.
func NewBuilder(pipeline *Pipeline) *Builder {
	return &Builder{
		pipeline: pipeline,
		cfg: models.AnalysisConfig{
			Detection: models.DetectionConfig{
				MinDuration: 1,
				Rules:       make(map[string]any),
			},
		},
	}
}

// WithIndicator configures the indicator descriptor for the Prepare stage.
func (b *Builder) WithIndicator(source, name string, params map[string]any) *Builder {
	b.cfg.Indicator = &models.IndicatorSpec{Source: source, Name: name, Params: params}
	return b
}

// WithDetection selects the detection strategy by name.
func (b *Builder) WithDetection(strategy string) *Builder {
	b.cfg.Detection.Strategy = strategy
	return b
}

// WithRule forwards one strategy-specific rule parameter verbatim.
func (b *Builder) WithRule(key string, value any) *Builder {
	b.cfg.Detection.Rules[key] = value
	return b
}

// WithMinDuration sets the zone minimum-duration filter.
func (b *Builder) WithMinDuration(bars int) *Builder {
	b.cfg.Detection.MinDuration = bars
	return b
}

// WithAllowedLabels restricts the classification set kept after detection.
func (b *Builder) WithAllowedLabels(labels ...string) *Builder {
	b.cfg.Detection.AllowedLabels = labels
	return b
}

// WithClustering enables the k-means pass over a feature subset. An empty
// feature list means every feature shared by all zones.
func (b *Builder) WithClustering(numClusters int, features ...string) *Builder {
	b.cfg.Clustering = &models.ClusteringConfig{NumClusters: numClusters, Features: features}
	return b
}

// WithRegression enables the regression pass predicting the given target.
func (b *Builder) WithRegression(target string, minSamples int) *Builder {
	b.cfg.Regression = &models.RegressionConfig{Target: target, MinSamples: minSamples}
	return b
}

// WithValidation enables holdout validation of the regression.
func (b *Builder) WithValidation() *Builder {
	b.cfg.Validation = true
	return b
}

// Config returns the collected configuration.
func (b *Builder) Config() models.AnalysisConfig {
	return b.cfg
}

// Run validates that a detection strategy was configured, then executes the
// pipeline.
func (b *Builder) Run(ctx context.Context, frame *models.Frame) (*models.AnalysisResult, error) {
	if b.cfg.Detection.Strategy == "" {
		return nil, &models.ConfigurationError{Missing: "detection strategy"}
	}
	return b.pipeline.Run(ctx, frame, b.cfg)
}
