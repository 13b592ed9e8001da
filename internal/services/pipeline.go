package services

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/cache"
	"github.com/quantzone/zonekit/internal/models"
)

// Pipeline sequences the three analysis stages: Prepare (indicator
// provider), Detect (strategy registry), Analyze (universal analyzer), with
// content-addressable caching in front. Caching is strictly an optimization:
// a hit returns the previously computed immutable result, and cache failures
// degrade to miss behavior.
type Pipeline struct {
	provider IndicatorProvider
	analyzer *UniversalAnalyzer
	cache    *cache.ResultCache
	logger   *logrus.Logger
}

// NewPipeline assembles a pipeline. The cache handle is explicit and owned
// by the caller: there is no ambient process-wide cache. provider and
// resultCache may be nil to disable the Prepare stage and caching.
func NewPipeline(provider IndicatorProvider, analyzer *UniversalAnalyzer, resultCache *cache.ResultCache, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if analyzer == nil {
		analyzer = NewUniversalAnalyzer(logger)
	}
	return &Pipeline{
		provider: provider,
		analyzer: analyzer,
		cache:    resultCache,
		logger:   logger,
	}
}

// Run executes Prepare, Detect and Analyze over the frame, consulting the
// cache first. The frame is modified in place by the Prepare stage (merged
// indicator columns); the returned result is immutable.
func (p *Pipeline) Run(ctx context.Context, frame *models.Frame, cfg models.AnalysisConfig) (*models.AnalysisResult, error) {
	if cfg.Detection.Strategy == "" {
		return nil, &models.ConfigurationError{Missing: "detection strategy"}
	}

	key := p.cacheKey(frame, cfg)
	if p.cache != nil {
		if result, ok := p.cache.Get(ctx, key); ok {
			p.logger.WithFields(logrus.Fields{"key": key}).Debug("Pipeline cache hit")
			return result, nil
		}
	}

	start := time.Now()
	if err := p.prepare(ctx, frame, cfg); err != nil {
		return nil, fmt.Errorf("prepare stage: %w", err)
	}

	zones, err := p.detect(frame, cfg)
	if err != nil {
		return nil, fmt.Errorf("detect stage: %w", err)
	}

	result, err := p.analyzer.Analyze(ctx, zones, frame, cfg)
	if err != nil {
		return nil, fmt.Errorf("analyze stage: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"zones":    len(zones),
		"strategy": cfg.Detection.Strategy,
		"elapsed":  time.Since(start),
	}).Info("Pipeline run complete")

	if p.cache != nil {
		p.cache.Set(ctx, key, result)
	}
	return result, nil
}

// Invalidate removes the cached result for a series and configuration from
// both cache tiers.
func (p *Pipeline) Invalidate(ctx context.Context, frame *models.Frame, cfg models.AnalysisConfig) {
	if p.cache == nil {
		return
	}
	p.cache.Delete(ctx, p.cacheKey(frame, cfg))
}

// cacheKey excludes the configured indicator's output columns from the
// digest so the key is identical before and after Prepare merges them.
func (p *Pipeline) cacheKey(frame *models.Frame, cfg models.AnalysisConfig) string {
	if cfg.Indicator == nil || p.provider == nil {
		return CacheKey(frame, cfg)
	}
	return CacheKey(frame, cfg, p.provider.ColumnNames(*cfg.Indicator)...)
}

// prepare invokes the indicator provider when a descriptor is configured and
// merges its output columns into the working frame. It is a no-op when the
// provider's columns already exist.
func (p *Pipeline) prepare(ctx context.Context, frame *models.Frame, cfg models.AnalysisConfig) error {
	if cfg.Indicator == nil || p.provider == nil {
		return nil
	}

	expected := p.provider.ColumnNames(*cfg.Indicator)
	if len(expected) > 0 {
		present := true
		for _, name := range expected {
			if !frame.HasColumn(name) {
				present = false
				break
			}
		}
		if present {
			p.logger.WithFields(logrus.Fields{"indicator": cfg.Indicator.Name}).Debug("Indicator columns already present, skipping Prepare")
			return nil
		}
	}

	columns, err := p.provider.Compute(ctx, *cfg.Indicator, frame)
	if err != nil {
		return err
	}
	return frame.MergeColumns(columns)
}

func (p *Pipeline) detect(frame *models.Frame, cfg models.AnalysisConfig) ([]*models.Zone, error) {
	strategy, err := NewDetectionStrategy(cfg.Detection.Strategy, p.logger)
	if err != nil {
		return nil, err
	}
	return strategy.Detect(frame, cfg.Detection)
}

// CacheKey computes a content-addressable key from every column on the
// frame plus a canonical serialization of the full configuration. Columns
// named in exclude are left out of the digest; the pipeline passes the
// configured indicator's output columns there so the key is stable whether
// or not Prepare has merged them yet. Identical series and configuration
// always map to the same key.
func CacheKey(frame *models.Frame, cfg models.AnalysisConfig, exclude ...string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	digest := xxhash.New()
	var buf [8]byte
	for _, name := range frame.ColumnNames() {
		if excluded[name] {
			continue
		}
		values, ok := frame.Column(name)
		if !ok {
			continue
		}
		_, _ = digest.WriteString(name)
		for _, v := range values {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = digest.Write(buf[:])
		}
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(frame.Len()))
	_, _ = digest.Write(buf[:])

	_, _ = digest.WriteString(canonicalConfig(cfg))
	return fmt.Sprintf("%016x", digest.Sum64())
}

// frameFingerprint identifies a series by its price-like content.
func frameFingerprint(frame *models.Frame) string {
	digest := xxhash.New()
	var buf [8]byte
	for _, name := range models.PriceColumns {
		values, ok := frame.Column(name)
		if !ok {
			continue
		}
		_, _ = digest.WriteString(name)
		for _, v := range values {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = digest.Write(buf[:])
		}
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

// canonicalConfig renders a configuration deterministically. Rule bags may
// hold values JSON cannot encode (predicates, zone slices), so each value is
// reduced to a stable string first, keyed in sorted order.
func canonicalConfig(cfg models.AnalysisConfig) string {
	type canonical struct {
		Indicator  *models.IndicatorSpec    `json:"indicator,omitempty"`
		Strategy   string                   `json:"strategy"`
		MinDur     int                      `json:"min_duration"`
		Allowed    []string                 `json:"allowed_labels,omitempty"`
		Rules      []string                 `json:"rules"`
		Clustering *models.ClusteringConfig `json:"clustering,omitempty"`
		Regression *models.RegressionConfig `json:"regression,omitempty"`
		Validation bool                     `json:"validation"`
	}

	keys := make([]string, 0, len(cfg.Detection.Rules))
	for key := range cfg.Detection.Rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rules := make([]string, 0, len(keys))
	for _, key := range keys {
		rules = append(rules, key+"="+canonicalRuleValue(cfg.Detection.Rules[key]))
	}

	data, err := json.Marshal(canonical{
		Indicator:  cfg.Indicator,
		Strategy:   cfg.Detection.Strategy,
		MinDur:     cfg.Detection.MinDuration,
		Allowed:    cfg.Detection.AllowedLabels,
		Rules:      rules,
		Clustering: cfg.Clustering,
		Regression: cfg.Regression,
		Validation: cfg.Validation,
	})
	if err != nil {
		// Marshal over plain structs and strings cannot fail in practice.
		return fmt.Sprintf("%+v", cfg)
	}
	return string(data)
}

func canonicalRuleValue(value any) string {
	switch v := value.(type) {
	case []models.Predicate:
		names := make([]string, len(v))
		for i, predicate := range v {
			names[i] = predicate.Name
		}
		return fmt.Sprintf("predicates(%v)", names)
	case []models.ExternalZone:
		digest := xxhash.New()
		for _, zone := range v {
			_, _ = digest.WriteString(zone.ID)
			_, _ = digest.WriteString(zone.Label)
			_, _ = digest.WriteString(zone.StartTime.UTC().Format(time.RFC3339Nano))
			_, _ = digest.WriteString(zone.EndTime.UTC().Format(time.RFC3339Nano))
		}
		return fmt.Sprintf("zones(%d,%016x)", len(v), digest.Sum64())
	default:
		return fmt.Sprintf("%v", v)
	}
}
